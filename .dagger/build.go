package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/ntree/internal/dagger"
)

// Build returns a directory holding the ntree binary for the container's
// platform. The SQLite driver needs cgo, so builds run in goContainer rather
// than cross-compiling.
func (n *Ntree) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	return n.goContainer().
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", "/out/", "./cli/ntree"}).
		Directory("/out")
}

// BuildRelease compiles a versioned binary with embedded version info
func (n *Ntree) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/cienislaw/thirtybees/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/cienislaw/thirtybees/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/cienislaw/thirtybees/pkg/utils.Buildtime=%s'", buildtime),
	}

	return n.Build(ctx, strings.Join(ldflags, " "))
}
