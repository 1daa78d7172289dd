package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// ActionType categorizes a mutating action in the audit log.
type ActionType string

const (
	ActionInsert      ActionType = "insert"
	ActionUpdate      ActionType = "update"
	ActionLink        ActionType = "link"
	ActionDelete      ActionType = "delete"
	ActionSplitAssign ActionType = "split-assign"
)

// AuditEntry is one append-only record of a mutating action, with
// before/after snapshots. Entries are created exactly once per action
// and never updated or deleted.
type AuditEntry struct {
	ID          int64           `json:"entry_id"`
	Action      ActionType      `json:"action_type"`
	EntityTable string          `json:"entity_table"`
	EntityID    string          `json:"entity_id"`
	Before      json.RawMessage `json:"before_snapshot,omitempty"`
	After       json.RawMessage `json:"after_snapshot,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Reason      string          `json:"reason"`
}

// NewAuditEntry builds an audit entry, marshalling the before/after
// snapshots to JSON. Either snapshot may be nil (e.g. before on insert,
// after on delete).
func NewAuditEntry(action ActionType, table, entityID string, before, after interface{}, reason string) (*AuditEntry, error) {
	entry := &AuditEntry{
		Action:      action,
		EntityTable: table,
		EntityID:    entityID,
		Timestamp:   time.Now().UTC(),
		Reason:      reason,
	}

	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			return nil, fmt.Errorf("marshal before snapshot: %w", err)
		}
		entry.Before = data
	}
	if after != nil {
		data, err := json.Marshal(after)
		if err != nil {
			return nil, fmt.Errorf("marshal after snapshot: %w", err)
		}
		entry.After = data
	}

	return entry, nil
}
