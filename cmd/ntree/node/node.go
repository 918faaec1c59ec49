// Package nodecmder provides the commands that create, move, reorder and
// inspect categories in the local store.
package nodecmder

import (
	"fmt"
	"io"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

func printDone(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark, fmt.Sprintf(format, args...))
}

func label(e *engine.Engine, id ntree.NodeID) string {
	if n, ok := e.Tree.Snapshot().Node(id); ok {
		return engine.Label(n)
	}
	return fmt.Sprintf("#%d", id)
}
