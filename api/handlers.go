package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// StatusResponse summarizes the published snapshot.
type StatusResponse struct {
	Consistent      bool           `json:"consistent"`
	Bootstrapped    bool           `json:"bootstrapped"`
	Nodes           int            `json:"nodes"`
	BuiltAt         time.Time      `json:"built_at"`
	DefaultTenant   ntree.TenantID `json:"default_tenant,omitempty"`
	ReferenceTenant ntree.TenantID `json:"reference_tenant,omitempty"`
}

// CheckResponse is the outcome of a full consistency check.
type CheckResponse struct {
	Consistent bool   `json:"consistent"`
	Error      string `json:"error,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStatus reports whether the tree is consistent and how large it is.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := s.tree.Snapshot()
	resp := StatusResponse{
		Consistent:      s.tree.IsConsistent(),
		Bootstrapped:    snap.Root() != nil,
		Nodes:           snap.Len(),
		BuiltAt:         snap.BuiltAt(),
		ReferenceTenant: s.tree.ReferenceTenant(),
	}
	if def, ok := s.tree.DefaultTenant(); ok {
		resp.DefaultTenant = def.ID
	}
	return c.JSON(resp)
}

// handleRebuild recomputes every interval from the stored parent links.
func (s *Server) handleRebuild(c *fiber.Ctx) error {
	if err := s.tree.ForceRebuild(c.UserContext()); err != nil {
		return s.fail(c, err)
	}
	return s.handleStatus(c)
}

// handleCheck verifies stored intervals and positions. An inconsistent tree
// is reported in the body; only store failures are errors.
func (s *Server) handleCheck(c *fiber.Ctx) error {
	err := s.tree.Check(c.UserContext())
	if err == nil {
		return c.JSON(CheckResponse{Consistent: true})
	}

	var se *ntree.StoreError
	if errors.As(err, &se) {
		return s.fail(c, err)
	}
	return c.JSON(CheckResponse{Consistent: false, Error: err.Error()})
}

// nodeParam parses the :id path parameter.
func nodeParam(c *fiber.Ctx, name string) (ntree.NodeID, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid node id %q", raw)
	}
	return ntree.NodeID(id), nil
}

// tenantParam parses a tenant id. An empty value or zero selects the default
// tenant.
func (s *Server) tenantParam(raw string) (ntree.TenantID, error) {
	var id int64
	if raw != "" {
		var err error
		id, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 0 {
			return 0, badRequest("invalid tenant id %q", raw)
		}
	}
	return s.resolveTenant(id)
}

func (s *Server) resolveTenant(id int64) (ntree.TenantID, error) {
	if id != 0 {
		return ntree.TenantID(id), nil
	}
	def, ok := s.tree.DefaultTenant()
	if !ok {
		return 0, ntree.ErrNotBootstrapped
	}
	return def.ID, nil
}
