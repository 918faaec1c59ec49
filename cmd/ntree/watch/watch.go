// Package watchcmder provides the watch command, which follows the change
// stream of a running API server.
package watchcmder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/eventstream"
	"github.com/cienislaw/thirtybees/pkg/sse"
)

const watchLongDesc string = `Follow committed tree changes from a running API server.

Connects to the server's /v1/events stream and prints one line per change
until interrupted, until --count changes were seen, or until the server
closes the stream.

Examples:
  ntree watch
  ntree watch --op create,delete
  ntree watch --count 1 --json
  ntree watch --raw`

const watchShortDesc string = "Follow tree changes"

type watchCommander struct {
	apiTarget string
	count     int
	ops       string
	jsonOut   bool
	raw       bool
}

func NewWatchCmd() *cobra.Command {
	cmder := &watchCommander{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: watchShortDesc,
		Long:  watchLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := engine.LoadConfig(cmd)
			if err != nil {
				return err
			}
			cmder.apiTarget = cfg.Client.APITarget
			return cmder.run(cmd)
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().IntVarP(&cmder.count, "count", "n", 0, "Stop after this many changes (0 follows forever)")
	cmd.Flags().StringVar(&cmder.ops, "op", "", "Comma separated operations to show (e.g. create,delete)")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print each change as a JSON line")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "Print the raw event stream")
	cmd.MarkFlagsMutuallyExclusive("json", "raw")

	return cmd
}

func (c *watchCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	target := strings.TrimRight(c.apiTarget, "/") + "/v1/events"
	if c.ops != "" {
		target += "?op=" + url.QueryEscape(c.ops)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// No client timeout: the stream stays open until one side ends it.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to change stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reader *sse.TeeReader
	if c.raw {
		reader = sse.NewTeeReader(resp.Body, out)
	} else {
		reader = sse.NewReader(resp.Body)
		fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", cliui.DimStyle.Render("Watching "+c.apiTarget+" ..."))
	}

	seen := 0
	for c.count == 0 || seen < c.count {
		ev, err := reader.Next()
		if err != nil {
			if cmd.Context().Err() != nil {
				return nil
			}
			return fmt.Errorf("reading change stream: %w", err)
		}
		if ev == nil {
			if !c.raw {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", cliui.DimStyle.Render("Stream closed."))
			}
			return nil
		}
		if ev.Type != eventstream.EventTypeTreeChanged {
			continue
		}

		seen++
		if c.raw {
			continue
		}

		var change eventstream.TreeChangedEvent
		if err := json.Unmarshal([]byte(ev.Data), &change); err != nil {
			return fmt.Errorf("decoding event %s: %w", ev.ID, err)
		}

		if c.jsonOut {
			fmt.Fprintln(out, ev.Data)
			continue
		}
		fmt.Fprintln(out, formatChange(&change))
	}

	return nil
}

// formatChange renders one change as a single line:
//
//	12:04:05 create nodes #7 parent #2 (6 nodes, rebuilt)
func formatChange(ev *eventstream.TreeChangedEvent) string {
	var b strings.Builder

	b.WriteString(cliui.DimStyle.Render(ev.EmittedAt.Local().Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(cliui.KeyStyle.Render(ev.Change.Op))

	if len(ev.Change.NodeIDs) > 0 {
		ids := make([]string, len(ev.Change.NodeIDs))
		for i, id := range ev.Change.NodeIDs {
			ids[i] = fmt.Sprintf("#%d", id)
		}
		b.WriteString(" nodes " + cliui.ValueStyle.Render(strings.Join(ids, ",")))
	}
	if ev.Change.ParentID != 0 {
		b.WriteString(fmt.Sprintf(" parent #%d", ev.Change.ParentID))
	}
	if ev.Change.TenantID != 0 {
		b.WriteString(fmt.Sprintf(" tenant #%d", ev.Change.TenantID))
	}

	detail := fmt.Sprintf("%d nodes", ev.Change.NodeCount)
	if ev.Change.Rebuilt {
		detail += ", rebuilt"
	}
	b.WriteString(" " + cliui.DimStyle.Render("("+detail+")"))

	return b.String()
}
