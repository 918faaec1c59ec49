package servecmder_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/cienislaw/thirtybees/cmd/ntree/serve"
)

func freeAddr() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	addr := l.Addr().String()
	Expect(l.Close()).To(Succeed())
	return addr
}

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
	})

	It("registers serve and storage flags from the registry", func() {
		cmd := servecmder.NewServeCmd()

		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8081"))

		Expect(cmd.Flags().Lookup("eventstream").DefValue).To(Equal("nop"))
		Expect(cmd.Flags().Lookup("kafka-topic").DefValue).To(Equal("ntree.tree.changed"))
		Expect(cmd.Flags().Lookup("queue-size").DefValue).To(Equal("256"))
		Expect(cmd.Flags().Lookup("max-batch").DefValue).To(Equal("64"))
		Expect(cmd.Flags().Lookup("driver")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("json-logs")).NotTo(BeNil())
		Expect(cmd.Flags().Lookup("log-file").DefValue).To(BeEmpty())
	})
})

var _ = Describe("Serve command execution", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("HOME", GinkgoT().TempDir())
		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(GinkgoT().TempDir())).To(Succeed())
		DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })
	})

	It("serves until the context is cancelled", func() {
		addr := freeAddr()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var logs bytes.Buffer
		cmd := servecmder.NewServeCmd()
		cmd.SetErr(&logs)
		cmd.SetArgs([]string{"--listen", addr, "--driver", "memory", "--json-logs"})

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- cmd.ExecuteContext(ctx)
		}()

		Eventually(func() int {
			resp, err := http.Get("http://" + addr + "/ping")
			if err != nil {
				return 0
			}
			resp.Body.Close()
			return resp.StatusCode
		}).WithTimeout(5 * time.Second).Should(Equal(http.StatusOK))

		resp, err := http.Get("http://" + addr + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
	})

	It("writes JSON logs to --log-file alongside the terminal", func() {
		addr := freeAddr()
		logFile := filepath.Join(GinkgoT().TempDir(), "ntree.log")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var terminal bytes.Buffer
		cmd := servecmder.NewServeCmd()
		cmd.SetErr(&terminal)
		cmd.SetArgs([]string{"--listen", addr, "--driver", "memory", "--log-file", logFile})

		done := make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- cmd.ExecuteContext(ctx)
		}()

		Eventually(func() error {
			resp, err := http.Get("http://" + addr + "/ping")
			if err == nil {
				resp.Body.Close()
			}
			return err
		}).WithTimeout(5 * time.Second).Should(Succeed())

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))

		data, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		var found bool
		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			var rec map[string]any
			Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed())
			if rec["msg"] == "shutting down" {
				found = true
			}
		}
		Expect(found).To(BeTrue())
		Expect(terminal.String()).To(ContainSubstring("shutting down"))
	})

	It("fails when the log file cannot be opened", func() {
		cmd := servecmder.NewServeCmd()
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--listen", freeAddr(), "--driver", "memory",
			"--log-file", filepath.Join(GinkgoT().TempDir(), "missing", "ntree.log")})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("opening log file")))
	})

	It("fails for an unknown storage driver", func() {
		cmd := servecmder.NewServeCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--listen", freeAddr(), "--driver", "mysql"})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring(`unknown storage driver "mysql"`)))
	})
})
