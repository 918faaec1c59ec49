package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// CreateTenantRequest is the body of POST /v1/tenants.
type CreateTenantRequest struct {
	Name   string `json:"name" validate:"required,max=255"`
	RootID int64  `json:"root_id" validate:"required,gt=0"`
}

func (s *Server) handleListTenants(c *fiber.Ctx) error {
	return c.JSON(s.tree.Tenants())
}

func (s *Server) handleCreateTenant(c *fiber.Ctx) error {
	var req CreateTenantRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	var created *ntree.Tenant
	err := s.submit(c, ntree.OpCreateTenant, func(ctx context.Context, b *ntree.Batch) error {
		tn, err := b.CreateTenant(ctx, req.Name, ntree.NodeID(req.RootID))
		created = tn
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

// handleTenantTree renders the whole tree of a tenant. With active=true
// hidden nodes and their subtrees are left out.
func (s *Server) handleTenantTree(c *fiber.Ctx) error {
	tenant, err := s.tenantParam(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}

	root, err := s.tree.TenantTree(c.UserContext(), tenant, c.QueryBool("active", false))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(root)
}
