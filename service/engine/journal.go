package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/vetflow/internal/clock"
	"github.com/viant/vetflow/service/store"
)

// Attempt states. A record in started state means a connector call may have
// happened; the engine never calls again for the same task while any record
// exists.
const (
	attemptStarted   = "started"
	attemptDelivered = "delivered"
)

// attempt is the write-ahead record persisted before every connector call,
// keyed by the task correlation id. It closes the duplicate-delivery window
// between a successful external call and the terminal file move.
type attempt struct {
	TaskID     string    `json:"taskId"`
	Name       string    `json:"name"`
	Connector  string    `json:"connector"`
	State      string    `json:"state"`
	ExternalID string    `json:"externalId,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// journal stores attempt records in the workspace journal store.
type journal struct {
	workspace *store.Workspace
}

func (j *journal) name(taskID string) string {
	return taskID + ".json"
}

// lookup returns the attempt record for taskID, or nil when none exists.
func (j *journal) lookup(ctx context.Context, taskID string) (*attempt, error) {
	exists, err := j.workspace.Exists(ctx, store.Journal, j.name(taskID))
	if err != nil || !exists {
		return nil, err
	}
	data, err := j.workspace.Read(ctx, store.Journal, j.name(taskID))
	if err != nil {
		return nil, err
	}
	record := &attempt{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("corrupt journal record for %s: %w", taskID, err)
	}
	return record, nil
}

// begin writes a started record and returns it. The record must be durable
// before the connector is invoked.
func (j *journal) begin(ctx context.Context, taskID, name, connector string) (*attempt, error) {
	now := clock.Now().UTC()
	record := &attempt{
		TaskID:    taskID,
		Name:      name,
		Connector: connector,
		State:     attemptStarted,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := j.save(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// delivered upgrades the record after a successful call, before the file
// move. A crash after this point is recovered by completing the move.
func (j *journal) delivered(ctx context.Context, record *attempt, externalID string) error {
	record.State = attemptDelivered
	record.ExternalID = externalID
	record.UpdatedAt = clock.Now().UTC()
	return j.save(ctx, record)
}

// clear removes the record once the task reached a terminal store.
func (j *journal) clear(ctx context.Context, taskID string) error {
	return j.workspace.Delete(ctx, store.Journal, j.name(taskID))
}

func (j *journal) save(ctx context.Context, record *attempt) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode journal record for %s: %w", record.TaskID, err)
	}
	return j.workspace.Put(ctx, store.Journal, j.name(record.TaskID), data)
}
