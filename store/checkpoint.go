package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a checkpoint or thread has nothing stored.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint is the state of one conversation thread after a graph node ran.
type Checkpoint struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	NodeName  string          `json:"node_name"`
	State     json.RawMessage `json:"state"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Version   int             `json:"version"`
}

// NewCheckpoint encodes state as JSON and stamps a fresh ID and timestamp.
func NewCheckpoint(threadID, nodeName string, state any, version int) (*Checkpoint, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return &Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		NodeName:  nodeName,
		State:     data,
		Metadata:  map[string]any{},
		Timestamp: time.Now().UTC(),
		Version:   version,
	}, nil
}

// Decode unmarshals the checkpoint state into v.
func (c *Checkpoint) Decode(v any) error {
	if err := json.Unmarshal(c.State, v); err != nil {
		return fmt.Errorf("failed to unmarshal state of checkpoint %s: %w", c.ID, err)
	}
	return nil
}

// CheckpointStore persists checkpoints grouped by thread.
type CheckpointStore interface {
	// Save stores a checkpoint, replacing any checkpoint with the same ID
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load retrieves a checkpoint by ID
	Load(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// List returns the checkpoints of a thread ordered by ascending version
	List(ctx context.Context, threadID string) ([]*Checkpoint, error)

	// Latest returns the checkpoint with the highest version for a thread
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Delete removes a checkpoint
	Delete(ctx context.Context, checkpointID string) error

	// Clear removes all checkpoints of a thread
	Clear(ctx context.Context, threadID string) error
}
