package statuscmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/charmbracelet/x/ansi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cienislaw/thirtybees/api"
	statuscmder "github.com/cienislaw/thirtybees/cmd/ntree/status"
	"github.com/cienislaw/thirtybees/pkg/dotdir"
)

var _ = Describe("NewStatusCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := statuscmder.NewStatusCmd()
		Expect(cmd.Use).To(Equal("status"))
	})

	It("rejects any arguments", func() {
		cmd := statuscmder.NewStatusCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("has an --api flag", func() {
		cmd := statuscmder.NewStatusCmd()
		f := cmd.Flags().Lookup("api")
		Expect(f).NotTo(BeNil())
		Expect(f.Shorthand).To(Equal("a"))
		Expect(f.DefValue).To(Equal("http://localhost:8081"))
	})
})

var _ = Describe("Status command execution", func() {
	var (
		tmpDir string
		server *httptest.Server
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/tree/status" {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(api.StatusResponse{Consistent: true, Bootstrapped: true, Nodes: 7})
		}))
		DeferCleanup(server.Close)
	})

	run := func(args ...string) string {
		var out bytes.Buffer
		cmd := statuscmder.NewStatusCmd()
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		Expect(cmd.Execute()).To(Succeed())
		return ansi.Strip(out.String())
	}

	It("suggests init without a .ntree directory", func() {
		out := run("--api", server.URL)
		Expect(out).To(ContainSubstring("Run 'ntree init'"))
		Expect(out).To(ContainSubstring("Selection: none"))
	})

	It("shows the selection and server state", func() {
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".ntree"), 0o755)).To(Succeed())
		Expect(dotdir.NewManager().SaveSelection(&dotdir.Selection{NodeID: 3, TenantID: 1}, "")).To(Succeed())

		out := run("--api", server.URL)
		Expect(out).To(ContainSubstring("Selection: node #3, tenant #1"))
		Expect(out).To(ContainSubstring("Nodes: 7"))
		Expect(out).To(ContainSubstring("✓ Bootstrapped"))
		Expect(out).To(ContainSubstring("✓ Consistent"))
	})

	It("reports an unreachable server without failing", func() {
		server.Close()
		out := run("--api", server.URL)
		Expect(out).To(ContainSubstring("API server: requesting status from API"))
	})
})
