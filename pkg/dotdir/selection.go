package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	selectionFile = "selection.json"
)

// Selection is the node and tenant the CLI works against when a command is
// given no explicit --parent or --tenant.
type Selection struct {
	// NodeID is the selected node.
	NodeID int64 `json:"node_id"`

	// TenantID is the selected tenant. Zero means the default tenant.
	TenantID int64 `json:"tenant_id,omitempty"`
}

// LoadSelection loads the selection from a target .ntree/selection.json.
// Returns nil, nil if nothing is selected.
func (m *Manager) LoadSelection(overrideDir string) (*Selection, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, selectionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading selection: %w", err)
	}

	sel := &Selection{}
	if err := json.Unmarshal(data, sel); err != nil {
		return nil, fmt.Errorf("parsing selection: %w", err)
	}

	return sel, nil
}

// SaveSelection persists sel to a target .ntree/selection.json.
func (m *Manager) SaveSelection(sel *Selection, overrideDir string) error {
	if sel == nil {
		return errors.New("cannot save nil selection")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.New("no .ntree directory found, run 'ntree init' first")
	}

	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling selection: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, selectionFile), data, 0o600); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}

	return nil
}

// ClearSelection removes the selection file.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearSelection(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, selectionFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing selection: %w", err)
	}

	return nil
}
