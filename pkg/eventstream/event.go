package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/cienislaw/thirtybees/pkg/ntree"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTreeChanged is emitted after a tree mutation commits.
	EventTypeTreeChanged = "ntree.tree.changed"
)

// TreeChangedEvent is a transport-neutral event payload for a committed
// tree mutation.
type TreeChangedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`
	Change        TreeChange  `json:"change"`
}

// EventSource identifies the instance that committed the change.
type EventSource struct {
	Instance string `json:"instance,omitempty"`
	Driver   string `json:"driver,omitempty"`
}

// TreeChange describes what the mutation touched.
type TreeChange struct {
	Op        string  `json:"op"`
	NodeIDs   []int64 `json:"node_ids,omitempty"`
	ParentID  int64   `json:"parent_id,omitempty"`
	TenantID  int64   `json:"tenant_id,omitempty"`
	Rebuilt   bool    `json:"rebuilt"`
	NodeCount int     `json:"node_count"`
}

// NewTreeChangedEvent builds a V1 event for change with a fresh id.
func NewTreeChangedEvent(source EventSource, change ntree.Change) *TreeChangedEvent {
	ids := make([]int64, len(change.NodeIDs))
	for i, id := range change.NodeIDs {
		ids[i] = int64(id)
	}

	return &TreeChangedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTreeChanged,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Source:        source,
		Change: TreeChange{
			Op:        string(change.Op),
			NodeIDs:   ids,
			ParentID:  int64(change.ParentID),
			TenantID:  int64(change.TenantID),
			Rebuilt:   change.Rebuilt,
			NodeCount: change.NodeCount,
		},
	}
}
