package ntree

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PathNotFoundError is returned when a segment of a category path has no
// matching child.
type PathNotFoundError struct {
	Parent  NodeID
	Segment string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("no category %q under node %d", e.Segment, e.Parent)
}

// SplitPath breaks a "/" separated category path into its trimmed, non-empty
// segments.
func SplitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// ResolvePath walks path down from parent, matching each segment against
// child names without regard to case. A zero parent starts at the default
// tenant's root. When siblings share a name the lowest id wins.
func (t *Tree) ResolvePath(parent NodeID, path string) (*Node, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, ErrEmptyPath
	}
	if parent == 0 {
		if parent = t.home(); parent == 0 {
			return nil, ErrNotBootstrapped
		}
	}

	snap := t.Snapshot()
	cur, ok := snap.Node(parent)
	if !ok {
		return nil, NotFoundError{ID: parent}
	}
	for _, seg := range segs {
		var next *Node
		for _, c := range snap.FindByName(cur.ID, seg) {
			if next == nil || c.ID < next.ID {
				next = c
			}
		}
		if next == nil {
			return nil, &PathNotFoundError{Parent: cur.ID, Segment: seg}
		}
		cur = next
	}
	return cur, nil
}

// EnsurePath resolves path like ResolvePath and creates every missing
// segment in one batch. Nothing is written when the whole path exists.
func (t *Tree) EnsurePath(ctx context.Context, parent NodeID, path string) (*Node, error) {
	n, err := t.ResolvePath(parent, path)
	if err == nil {
		return n, nil
	}
	var missing *PathNotFoundError
	if !errors.As(err, &missing) {
		return nil, err
	}

	_, err = t.mutate(ctx, OpCreate, func(ctx context.Context, b *Batch) error {
		var err error
		n, err = b.EnsurePath(ctx, parent, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return t.Node(n.ID)
}

// EnsurePath walks path from parent inside the batch, creating each missing
// segment as a child of the previous one. New nodes join every tenant.
func (b *Batch) EnsurePath(ctx context.Context, parent NodeID, path string) (*Node, error) {
	segs := SplitPath(path)
	if len(segs) == 0 {
		return nil, ErrEmptyPath
	}
	if parent == 0 {
		if parent = b.home(); parent == 0 {
			return nil, ErrNotBootstrapped
		}
	}

	cur, err := b.node(parent)
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		var next *Node
		for _, id := range b.g.childrenOf(cur.ID) {
			if c := b.g.nodes[id]; strings.EqualFold(c.Name, seg) {
				next = c
				break
			}
		}
		if next == nil {
			created, err := b.Create(ctx, CreateRequest{ParentID: cur.ID, Name: seg})
			if err != nil {
				return nil, err
			}
			next = b.g.nodes[created.ID]
		}
		cur = next
	}
	return cur.Clone(), nil
}
