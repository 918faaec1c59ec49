// Package statuscmder provides the status command for displaying the CLI
// selection and the state of a running API server.
package statuscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/api"
	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/dotdir"
)

const statusLongDesc string = `Show the current selection and the API server state.

Reads the local .ntree/ directory (or ~/.ntree/) to display the selected
node and tenant, then asks the API server at --api whether its tree is
bootstrapped and consistent.

Examples:
  ntree status
  ntree status --api http://localhost:9090`

const statusShortDesc string = "Show selection and server state"

func NewStatusCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd)
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &apiTarget)

	return cmd
}

func runStatus(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	cfg, configDir, err := engine.LoadConfig(cmd)
	if err != nil {
		return err
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return err
	}
	if dir == "" {
		fmt.Fprintf(out, "  %s No .ntree directory. Run 'ntree init' to create one.\n", cliui.DimStyle.Render("●"))
	} else {
		fmt.Fprintf(out, "\n  %s\n", cliui.KeyValue("Directory", dir))
	}

	sel, err := engine.Selection(cmd)
	if err != nil {
		return fmt.Errorf("loading selection: %w", err)
	}
	switch {
	case sel.NodeID == 0 && sel.TenantID == 0:
		fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Selection", "none"))
	default:
		fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Selection", fmt.Sprintf("node #%d, tenant #%d", sel.NodeID, sel.TenantID)))
	}

	status, err := fetchStatus(cmd.Context(), cfg.Client.APITarget)
	if err != nil {
		fmt.Fprintf(out, "  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render("API server: "+err.Error()))
		return nil
	}

	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("API server", cfg.Client.APITarget))
	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Nodes", fmt.Sprintf("%d", status.Nodes)))
	fmt.Fprintf(out, "  %s %s\n", mark(status.Bootstrapped), "Bootstrapped")
	fmt.Fprintf(out, "  %s %s\n\n", mark(status.Consistent), "Consistent")
	return nil
}

func mark(ok bool) string {
	if ok {
		return cliui.SuccessMark
	}
	return cliui.FailMark
}

// fetchStatus calls the API to get the tree status.
func fetchStatus(ctx context.Context, target string) (*api.StatusResponse, error) {
	url := target + "/v1/tree/status"

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting status from API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("parsing API response: %w", err)
	}

	return &status, nil
}
