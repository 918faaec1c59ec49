package nodecmder

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// pathNameLen is the display width of one path segment, ellipsis included.
const pathNameLen = 24

const showLongDesc string = `Show a category, its interval and its tenant memberships.

With no id the selected node is shown.

Examples:
  ntree show 5
  ntree show`

const showShortDesc string = "Show a category"

func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id ntree.NodeID
			if len(args) == 1 {
				var err error
				if id, err = engine.ParseNodeID(args[0]); err != nil {
					return err
				}
			} else {
				sel, err := engine.Selection(cmd)
				if err != nil {
					return err
				}
				if sel.NodeID == 0 {
					return fmt.Errorf("no node selected, pass an id or run 'ntree use <id>'")
				}
				id = ntree.NodeID(sel.NodeID)
			}
			return runShow(cmd, id)
		},
	}

	engine.AddStorageFlags(cmd)

	return cmd
}

func runShow(cmd *cobra.Command, id ntree.NodeID) error {
	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	n, err := e.Tree.Node(id)
	if err != nil {
		return err
	}
	path, err := e.Tree.Path(id)
	if err != nil {
		return err
	}
	descendants, err := e.Tree.DescendantsOf(id)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(path))
	for _, p := range path {
		names = append(names, ansi.Truncate(p.Name, pathNameLen, "..."))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Node", engine.Label(n)))
	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Path", strings.Join(names, " / ")))
	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Interval", fmt.Sprintf("[%d, %d] depth %d", n.Left, n.Right, n.Depth)))
	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Descendants", fmt.Sprintf("%d", len(descendants))))
	if n.IsRootCategory {
		fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Root category", "yes"))
	}

	fmt.Fprintln(out)
	for _, t := range e.Tree.Tenants() {
		pos, err := e.Tree.Positions(cmd.Context(), t.ID)
		if err != nil {
			return err
		}
		p, ok := pos[id]
		switch {
		case !ok:
			fmt.Fprintf(out, "  %s %s\n", cliui.DimStyle.Render("-"), cliui.DimStyle.Render(t.Name+" (not a member)"))
		case p.Active:
			fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark, fmt.Sprintf("%s position %d", t.Name, p.Position))
		default:
			fmt.Fprintf(out, "  %s %s\n", cliui.FailMark, fmt.Sprintf("%s position %d, inactive", t.Name, p.Position))
		}
	}
	fmt.Fprintln(out)

	return nil
}
