// Package initcmder provides the init command for initializing a local .ntree
// directory and bootstrapping the category tree.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cienislaw/thirtybees/cmd/ntree/engine"
	"github.com/cienislaw/thirtybees/pkg/cliui"
	"github.com/cienislaw/thirtybees/pkg/config"
	"github.com/cienislaw/thirtybees/pkg/dotdir"
	"github.com/cienislaw/thirtybees/pkg/ntree"
)

type initCommander struct {
	tenantName  string
	noBootstrap bool
}

const initLongDesc string = `Initialize a new .ntree/ directory and bootstrap the tree.

Creates a local .ntree/ directory in the current working directory (or the
directory given by --config-dir) holding config.toml and, by default, the
SQLite database. The local directory takes precedence over ~/.ntree/.

Unless --no-bootstrap is given, the store is then bootstrapped with the
structural root, a "Home" root category and a first tenant rooted at Home.
Running init again is safe.

Examples:
  ntree init
  ntree init --tenant-name storefront
  ntree init --driver postgres --postgres postgres://localhost/ntree`

const initShortDesc string = "Initialize .ntree/ and bootstrap the tree"

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVar(&cmder.tenantName, "tenant-name", "default", "Name of the first tenant")
	cmd.Flags().BoolVar(&cmder.noBootstrap, "no-bootstrap", false, "Only create the directory and config")
	engine.AddStorageFlags(cmd)

	return cmd
}

func (c *initCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	configDir, _ := cmd.Flags().GetString("config-dir")

	dir, err := c.ensureDir(configDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark, cliui.KeyValue("Directory", dir))

	if err := writeDefaultConfig(out, dir); err != nil {
		return err
	}

	if c.noBootstrap {
		return nil
	}
	return c.bootstrap(cmd, out)
}

func (c *initCommander) ensureDir(configDir string) (string, error) {
	manager := dotdir.NewManager()
	if configDir != "" {
		return manager.Target(configDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return manager.Init(cwd)
}

// writeDefaultConfig creates config.toml with default values unless one
// already exists.
func writeDefaultConfig(out io.Writer, dir string) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if _, err := os.Stat(cfger.GetTarget()); err == nil {
		fmt.Fprintf(out, "  %s %s\n", cliui.DimStyle.Render("●"), cliui.KeyValue("Config", cfger.GetTarget()+" (kept)"))
		return nil
	}

	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.SuccessMark, cliui.KeyValue("Config", cfger.GetTarget()))
	return nil
}

func (c *initCommander) bootstrap(cmd *cobra.Command, out io.Writer) error {
	e, err := engine.FromCommand(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.Tree.Bootstrapped() {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("Tree already bootstrapped."))
		return nil
	}

	var tenant *ntree.Tenant
	err = cliui.Step(out, "Bootstrapping tree", func() error {
		var err error
		tenant, err = e.Tree.Bootstrap(cmd.Context(), c.tenantName)
		return err
	})
	if errors.Is(err, ntree.ErrAlreadyBootstrapped) {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("Tree already bootstrapped."))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s\n", cliui.KeyValue("Tenant", fmt.Sprintf("%s (#%d, root #%d)", tenant.Name, tenant.ID, tenant.RootID)))
	return nil
}
