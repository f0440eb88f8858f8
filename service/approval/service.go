package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/vetflow/internal/clock"
	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/correlation"
	"github.com/viant/vetflow/service/store"
)

// Pending is a draft awaiting a decision.
type Pending struct {
	Name string
	Task *model.Task
}

// Decision records one approval or rejection. Each decision authorizes
// exactly the one correlated draft, never pending work at large.
type Decision struct {
	ID        string
	Name      string
	Approved  bool
	Reason    string
	DecidedAt time.Time
}

// Service is the approval gate. It holds no business logic: a decision is a
// single atomic move between the pending-approval store and approved or
// rejected, plus an audit entry. Anything able to move a file can authorize
// the same way; this service is the programmatic path.
type Service struct {
	workspace *store.Workspace
	ledger    *audit.Ledger
	listeners []func(*Decision)
}

// Option customises the gate.
type Option func(*Service)

// WithDecisionListener registers a callback invoked after every decision.
func WithDecisionListener(fn func(*Decision)) Option {
	return func(s *Service) { s.listeners = append(s.listeners, fn) }
}

// New creates an approval gate over the workspace.
func New(workspace *store.Workspace, ledger *audit.Ledger, options ...Option) *Service {
	s := &Service{workspace: workspace, ledger: ledger}
	for _, option := range options {
		option(s)
	}
	return s
}

// ListPending returns the drafts currently awaiting a decision, in stable
// name order.
func (s *Service) ListPending(ctx context.Context) ([]*Pending, error) {
	names, err := s.workspace.List(ctx, store.PendingApproval)
	if err != nil {
		return nil, err
	}
	var pending []*Pending
	for _, name := range names {
		if model.IsMetadata(name) {
			continue
		}
		data, err := s.workspace.Read(ctx, store.PendingApproval, name)
		if err != nil {
			continue
		}
		task, err := model.DecodeTask(name, data)
		if err != nil {
			continue
		}
		pending = append(pending, &Pending{Name: name, Task: task})
	}
	return pending, nil
}

// Decide moves the draft identified by id (task correlation id or exact
// filename) into approved or rejected. The move is the sole authorization
// signal the engine trusts.
func (s *Service) Decide(ctx context.Context, id string, approved bool, reason string) (*Decision, error) {
	if id == "" {
		return nil, fmt.Errorf("empty id")
	}
	name, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	destination := store.Rejected
	action := "reject"
	if approved {
		destination = store.Approved
		action = "approve"
	}
	if err := s.workspace.Move(ctx, name, store.PendingApproval, destination); err != nil {
		return nil, err
	}
	if !approved && reason != "" {
		note := fmt.Sprintf("# Rejection\n\n- Task: %s\n- Reason: %s\n", name, reason)
		_ = s.workspace.Put(ctx, store.Rejected, model.Stem(name)+"_reason.md", []byte(note))
	}
	decision := &Decision{
		ID:        id,
		Name:      name,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: clock.Now(),
	}
	s.ledger.Append(audit.Entry{
		Actor:  "approval",
		Action: action,
		Target: name,
		Status: audit.StatusSuccess,
		Detail: reason,
	})
	for _, fn := range s.listeners {
		fn(decision)
	}
	return decision, nil
}

// resolve maps id to the single matching file in pending-approval. An exact
// filename wins; otherwise the embedded correlation id decides.
func (s *Service) resolve(ctx context.Context, id string) (string, error) {
	if exists, _ := s.workspace.Exists(ctx, store.PendingApproval, id); exists {
		return id, nil
	}
	return correlation.Resolve(ctx, s.workspace, store.PendingApproval, id)
}
