package api

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

// CreateNodeRequest is the body of POST /v1/nodes. A zero parent_id places
// the node under the default tenant's root and an empty tenants list joins
// every tenant.
type CreateNodeRequest struct {
	ParentID       int64   `json:"parent_id" validate:"gte=0"`
	Name           string  `json:"name" validate:"required,max=255"`
	IsRootCategory bool    `json:"is_root_category"`
	Tenants        []int64 `json:"tenants" validate:"dive,gt=0"`
	Inactive       bool    `json:"inactive"`
}

// ReparentRequest is the body of PUT /v1/nodes/:id/parent.
type ReparentRequest struct {
	ParentID int64 `json:"parent_id" validate:"required,gt=0"`
}

// PositionRequest is the body of PUT /v1/nodes/:id/position. Without a
// position the node moves a single step in the given direction.
type PositionRequest struct {
	TenantID  int64  `json:"tenant_id" validate:"gte=0"`
	Direction string `json:"direction" validate:"omitempty,oneof=auto up down"`
	Position  *int   `json:"position" validate:"omitempty,gte=0"`
}

// ActiveRequest is the body of PUT /v1/nodes/:id/active.
type ActiveRequest struct {
	TenantID int64 `json:"tenant_id" validate:"gte=0"`
	Active   *bool `json:"active" validate:"required"`
}

// PathRequest is the body of POST /v1/paths. The path is "/" separated and
// resolved below parent_id, or below the default tenant's root when zero.
type PathRequest struct {
	ParentID int64  `json:"parent_id" validate:"gte=0"`
	Path     string `json:"path" validate:"required,max=4096"`
}

// DeleteResponse lists every node removed with the subtree.
type DeleteResponse struct {
	Deleted []ntree.NodeID `json:"deleted"`
}

// parseBody decodes and validates the request body into req.
func (s *Server) parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return badRequest("invalid request body")
	}
	return s.validate.Struct(req)
}

// submit runs apply through the batcher under the request's context.
func (s *Server) submit(c *fiber.Ctx, op ntree.Op, apply func(ctx context.Context, b *ntree.Batch) error) error {
	return s.batcher.Submit(c.UserContext(), string(op), apply)
}

// fresh returns the snapshot copy of id so callers see rebuilt intervals,
// falling back to n when the snapshot does not have it.
func (s *Server) fresh(id ntree.NodeID, n *ntree.Node) *ntree.Node {
	if got, err := s.tree.Node(id); err == nil {
		return got
	}
	return n
}

func (s *Server) handleCreateNode(c *fiber.Ctx) error {
	var req CreateNodeRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	cr := ntree.CreateRequest{
		ParentID:       ntree.NodeID(req.ParentID),
		Name:           req.Name,
		IsRootCategory: req.IsRootCategory,
		Inactive:       req.Inactive,
	}
	for _, t := range req.Tenants {
		cr.Tenants = append(cr.Tenants, ntree.TenantID(t))
	}

	var created *ntree.Node
	err := s.submit(c, ntree.OpCreate, func(ctx context.Context, b *ntree.Batch) error {
		n, err := b.Create(ctx, cr)
		created = n
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(s.fresh(created.ID, created))
}

func (s *Server) handleGetNode(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}

	n, err := s.tree.Node(id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(n)
}

func (s *Server) handleAncestors(c *fiber.Ctx) error {
	return s.nodeList(c, s.tree.AncestorsOf)
}

func (s *Server) handleDescendants(c *fiber.Ctx) error {
	return s.nodeList(c, s.tree.DescendantsOf)
}

func (s *Server) handlePath(c *fiber.Ctx) error {
	return s.nodeList(c, s.tree.Path)
}

func (s *Server) nodeList(c *fiber.Ctx, query func(ntree.NodeID) ([]*ntree.Node, error)) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}

	nodes, err := query(id)
	if err != nil {
		return s.fail(c, err)
	}
	if nodes == nil {
		nodes = []*ntree.Node{}
	}
	return c.JSON(nodes)
}

func (s *Server) handleChildren(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	tenant, err := s.tenantParam(c.Query("tenant"))
	if err != nil {
		return s.fail(c, err)
	}

	children, err := s.tree.Children(c.UserContext(), id, tenant, c.QueryBool("active", false))
	if err != nil {
		return s.fail(c, err)
	}
	if children == nil {
		children = []*ntree.TreeNode{}
	}
	return c.JSON(children)
}

func (s *Server) handleReparent(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	var req ReparentRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}

	err = s.submit(c, ntree.OpReparent, func(ctx context.Context, b *ntree.Batch) error {
		return b.Reparent(ctx, id, ntree.NodeID(req.ParentID))
	})
	if err != nil {
		return s.fail(c, err)
	}

	n, err := s.tree.Node(id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(n)
}

func (s *Server) handleDeleteNode(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}

	var deleted []ntree.NodeID
	err = s.submit(c, ntree.OpDelete, func(ctx context.Context, b *ntree.Batch) error {
		ids, err := b.Delete(ctx, id)
		deleted = ids
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(DeleteResponse{Deleted: deleted})
}

func (s *Server) handleReorder(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	var req PositionRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	tenant, err := s.resolveTenant(req.TenantID)
	if err != nil {
		return s.fail(c, err)
	}
	dir, err := ntree.ParseDirection(req.Direction)
	if err != nil {
		return s.fail(c, err)
	}

	var apply func(ctx context.Context, b *ntree.Batch) error
	switch {
	case req.Position != nil:
		target := *req.Position
		apply = func(ctx context.Context, b *ntree.Batch) error {
			return b.Reorder(ctx, id, tenant, dir, target)
		}
	case dir == ntree.DirectionUp:
		apply = func(ctx context.Context, b *ntree.Batch) error {
			return b.MoveUp(ctx, id, tenant)
		}
	case dir == ntree.DirectionDown:
		apply = func(ctx context.Context, b *ntree.Batch) error {
			return b.MoveDown(ctx, id, tenant)
		}
	default:
		return s.fail(c, badRequest("position is required unless direction is up or down"))
	}

	if err := s.submit(c, ntree.OpReorder, apply); err != nil {
		return s.fail(c, err)
	}
	return s.respondChildren(c, id, tenant)
}

// respondChildren answers a position change with the reordered siblings of id.
func (s *Server) respondChildren(c *fiber.Ctx, id ntree.NodeID, tenant ntree.TenantID) error {
	n, err := s.tree.Node(id)
	if err != nil {
		return s.fail(c, err)
	}
	siblings, err := s.tree.Children(c.UserContext(), n.ParentID, tenant, false)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(siblings)
}

func (s *Server) handleSetActive(c *fiber.Ctx) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	var req ActiveRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	tenant, err := s.resolveTenant(req.TenantID)
	if err != nil {
		return s.fail(c, err)
	}

	err = s.submit(c, ntree.OpSetActive, func(ctx context.Context, b *ntree.Batch) error {
		return b.SetActive(ctx, id, tenant, *req.Active)
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleAddToTenant(c *fiber.Ctx) error {
	return s.membership(c, ntree.OpAddToTenant, func(ctx context.Context, b *ntree.Batch, id ntree.NodeID, tenant ntree.TenantID) error {
		return b.AddToTenant(ctx, id, tenant)
	})
}

func (s *Server) handleRemoveFromTenant(c *fiber.Ctx) error {
	return s.membership(c, ntree.OpRemoveTenant, func(ctx context.Context, b *ntree.Batch, id ntree.NodeID, tenant ntree.TenantID) error {
		return b.RemoveFromTenant(ctx, id, tenant)
	})
}

func (s *Server) membership(c *fiber.Ctx, op ntree.Op, apply func(context.Context, *ntree.Batch, ntree.NodeID, ntree.TenantID) error) error {
	id, err := nodeParam(c, "id")
	if err != nil {
		return s.fail(c, err)
	}
	tenant, err := s.tenantParam(c.Params("tenant"))
	if err != nil {
		return s.fail(c, err)
	}

	err = s.submit(c, op, func(ctx context.Context, b *ntree.Batch) error {
		return apply(ctx, b, id, tenant)
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleResolvePath(c *fiber.Ctx) error {
	var parent int64
	if raw := c.Query("parent"); raw != "" {
		var err error
		if parent, err = strconv.ParseInt(raw, 10, 64); err != nil || parent < 0 {
			return s.fail(c, badRequest("invalid parent id %q", raw))
		}
	}

	n, err := s.tree.ResolvePath(ntree.NodeID(parent), c.Query("path"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(n)
}

// handleEnsurePath answers 200 with the existing node, or 201 once the
// missing segments were created.
func (s *Server) handleEnsurePath(c *fiber.Ctx) error {
	var req PathRequest
	if err := s.parseBody(c, &req); err != nil {
		return s.fail(c, err)
	}
	parent := ntree.NodeID(req.ParentID)

	if n, err := s.tree.ResolvePath(parent, req.Path); err == nil {
		return c.JSON(n)
	}

	var leaf *ntree.Node
	err := s.submit(c, ntree.OpCreate, func(ctx context.Context, b *ntree.Batch) error {
		n, err := b.EnsurePath(ctx, parent, req.Path)
		leaf = n
		return err
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(s.fresh(leaf.ID, leaf))
}
