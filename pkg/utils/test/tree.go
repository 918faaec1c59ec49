package testutils

import (
	"context"

	"github.com/cienislaw/thirtybees/pkg/ntree"
	"github.com/cienislaw/thirtybees/pkg/storage/inmemory"
)

// Catalog is a small bootstrapped tree used across tests:
//
//	Root
//	└── Home
//	    ├── Shoes
//	    │   └── Boots
//	    └── Hats
type Catalog struct {
	Tree   *ntree.Tree
	Store  *FaultyStore
	Tenant ntree.Tenant

	Root, Home, Shoes, Hats, Boots ntree.NodeID
}

// NewCatalog builds a Catalog on a fresh in-memory driver.
func NewCatalog(ctx context.Context, opts ...ntree.Option) (*Catalog, error) {
	store := NewFaultyStore(inmemory.NewDriver())

	tree, err := ntree.New(ctx, store, opts...)
	if err != nil {
		return nil, err
	}

	tenant, err := tree.Bootstrap(ctx, "default")
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		Tree:   tree,
		Store:  store,
		Tenant: *tenant,
		Root:   tree.Snapshot().Root().ID,
		Home:   tenant.RootID,
	}

	for _, step := range []struct {
		parent *ntree.NodeID
		name   string
		id     *ntree.NodeID
	}{
		{&c.Home, "Shoes", &c.Shoes},
		{&c.Home, "Hats", &c.Hats},
		{&c.Shoes, "Boots", &c.Boots},
	} {
		n, err := tree.Create(ctx, ntree.CreateRequest{ParentID: *step.parent, Name: step.name})
		if err != nil {
			return nil, err
		}
		*step.id = n.ID
	}

	return c, nil
}
