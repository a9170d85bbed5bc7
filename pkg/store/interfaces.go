package store

import (
	"context"
	"time"
)

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
	ListState(ctx context.Context, prefix string) (map[string]string, error)
}

// CommandEvent is one journal entry for a command issued to the vehicle.
type CommandEvent struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Command   string    `json:"command"`
	Detail    string    `json:"detail,omitempty"`
	Success   bool      `json:"success"`
	CreatedAt time.Time `json:"created_at"`
}

// EventStore handles the command journal.
type EventStore interface {
	RecordEvent(ctx context.Context, ev *CommandEvent) error
	RecentEvents(ctx context.Context, limit int) ([]CommandEvent, error)
}

// Store is the aggregate of all persistence interfaces.
type Store interface {
	StateStore
	EventStore
	Close() error
}
