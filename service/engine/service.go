package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
	"github.com/viant/vetflow/policy"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/connector"
	"github.com/viant/vetflow/service/correlation"
	"github.com/viant/vetflow/service/store"
	"github.com/viant/vetflow/tracing"
)

// Config represents engine configuration.
type Config struct {
	// ScanInterval between approved-store scans.
	ScanInterval time.Duration

	// SubmitTimeout bounds every single connector call.
	SubmitTimeout time.Duration

	// CallDelay is the fixed pause between consecutive external calls,
	// the only outbound rate limiting applied.
	CallDelay time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		ScanInterval:  30 * time.Second,
		SubmitTimeout: 30 * time.Second,
		CallDelay:     2 * time.Second,
	}
}

// Service turns approved drafts into external effects. It owns the move out
// of the approved store and trusts file presence there as the sole
// authorization signal.
type Service struct {
	config    Config
	workspace *store.Workspace
	registry  *connector.Registry
	policy    *policy.Policy
	ledger    *audit.Ledger
	journal   *journal
	lastCall  time.Time
	sleep     func(time.Duration)

	// scanMux makes a scan self-exclusive: an overlapping invocation
	// would read a sibling scan's in-flight journal record and misread it
	// as a crashed attempt.
	scanMux sync.Mutex
}

// Option customises the engine.
type Option func(*Service)

// WithConfig sets the engine configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithSleep overrides the delay function, for tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Service) { s.sleep = fn }
}

// New creates an execution engine.
func New(workspace *store.Workspace, registry *connector.Registry, contentPolicy *policy.Policy, ledger *audit.Ledger, options ...Option) (*Service, error) {
	if workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("connector registry is required")
	}
	if contentPolicy == nil {
		contentPolicy = policy.New(policy.DefaultConfig())
	}
	s := &Service{
		config:    DefaultConfig(),
		workspace: workspace,
		registry:  registry,
		policy:    contentPolicy,
		ledger:    ledger,
		journal:   &journal{workspace: workspace},
		sleep:     time.Sleep,
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Interval returns the configured scan interval.
func (s *Service) Interval() time.Duration { return s.config.ScanInterval }

// ScanApproved enumerates the approved store and processes every draft in
// stable order. A failure on one draft never aborts its siblings; a failure
// listing the store aborts the cycle and is loudly logged.
func (s *Service) ScanApproved(ctx context.Context) (err error) {
	s.scanMux.Lock()
	defer s.scanMux.Unlock()
	ctx, span := tracing.StartSpan(ctx, "engine.scanApproved", "INTERNAL")
	defer tracing.EndSpan(span, err)

	names, err := s.workspace.List(ctx, store.Approved)
	if err != nil {
		log.Printf("engine: cannot scan approved store: %v", err)
		return err
	}
	for _, name := range names {
		if model.IsMetadata(name) || strings.HasSuffix(model.Stem(name), "_reason") {
			continue
		}
		if pErr := s.processOne(ctx, name); pErr != nil {
			log.Printf("engine: failed to process %s: %v", name, pErr)
		}
	}
	return nil
}

func (s *Service) processOne(ctx context.Context, name string) error {
	data, err := s.workspace.Read(ctx, store.Approved, name)
	if err != nil {
		// Claimed or moved away between list and read.
		return nil
	}
	task, err := model.DecodeTask(name, data)
	if err != nil {
		return s.reject(ctx, name, audit.StatusFailedValidation, fmt.Sprintf("undecodable task: %v", err))
	}

	// A prior attempt for this task means the connector may already have
	// been called; never call again.
	record, err := s.journal.lookup(ctx, task.ID)
	if err != nil {
		return err
	}
	if record != nil {
		return s.recover(ctx, name, task, record)
	}

	vendor := s.registry.Lookup(task.Kind)
	if vendor == nil {
		return s.reject(ctx, name, audit.StatusFailedValidation, fmt.Sprintf("no connector for kind %s", task.Kind))
	}

	// Re-validate even though the draft was validated at creation time:
	// approval may have been granted long after drafting, or the file may
	// have been edited while pending.
	if reasons := s.policy.Validate(task.Payload, vendor.MaxPayload()); len(reasons) > 0 {
		return s.reject(ctx, name, audit.StatusFailedValidation, strings.Join(reasons, "; "))
	}
	payload, note := s.policy.Conform(task.Payload, vendor.MaxPayload())
	task.Payload = payload

	record, err = s.journal.begin(ctx, task.ID, name, vendor.Name())
	if err != nil {
		return fmt.Errorf("failed to journal attempt for %s: %w", name, err)
	}

	s.throttle()
	callCtx, cancel := context.WithTimeout(ctx, s.config.SubmitTimeout)
	result, err := vendor.Submit(callCtx, task)
	cancel()
	s.lastCall = time.Now()

	if err != nil {
		err = types.NewDeliveryError(vendor.Name(), err)
		if rErr := s.reject(ctx, name, audit.StatusFailedDelivery, err.Error()); rErr != nil {
			return rErr
		}
		return s.journal.clear(ctx, task.ID)
	}

	if err := s.journal.delivered(ctx, record, result.ExternalID); err != nil {
		log.Printf("engine: failed to journal delivery for %s: %v", name, err)
	}
	return s.complete(ctx, name, task, result, note)
}

// recover finishes a task whose previous attempt was interrupted.
func (s *Service) recover(ctx context.Context, name string, task *model.Task, record *attempt) error {
	switch record.State {
	case attemptDelivered:
		// The call succeeded but the crash preceded the move; finish it
		// without touching the connector.
		result := &types.Result{ExternalID: record.ExternalID, Detail: "recovered from journal"}
		return s.complete(ctx, name, task, result, "")
	default:
		// Outcome unknown; re-calling risks a duplicate external effect.
		// Route to rejected for human resubmission.
		if err := s.reject(ctx, name, audit.StatusFailedDelivery, "prior delivery attempt with unknown outcome"); err != nil {
			return err
		}
		return s.journal.clear(ctx, task.ID)
	}
}

func (s *Service) complete(ctx context.Context, name string, task *model.Task, result *types.Result, note string) error {
	if err := s.workspace.Move(ctx, name, store.Approved, store.Completed); err != nil {
		return err
	}
	detail := "external_id=" + result.ExternalID
	if note != "" {
		detail += "; " + note
	}
	sidecar := model.RenderMetadata(task, name, "delivered "+detail, len(task.Payload))
	_ = s.workspace.Put(ctx, store.Completed, model.MetadataName(name), []byte(sidecar))
	s.ledger.Append(audit.Entry{
		Actor:  "engine",
		Action: "submit",
		Target: name,
		Status: audit.StatusSuccess,
		Detail: detail,
	})
	if err := s.journal.clear(ctx, task.ID); err != nil {
		log.Printf("engine: failed to clear journal for %s: %v", task.ID, err)
	}
	s.completeOrigin(ctx, task)
	return nil
}

// completeOrigin moves the originating request out of needs-action when the
// delivered draft references one. Ambiguity is surfaced, never guessed.
func (s *Service) completeOrigin(ctx context.Context, task *model.Task) {
	originID := task.Meta["origin_id"]
	if originID == "" {
		return
	}
	origin, err := correlation.Resolve(ctx, s.workspace, store.NeedsAction, originID)
	if err != nil {
		s.ledger.Append(audit.Entry{
			Actor:  "engine",
			Action: "correlate",
			Target: originID,
			Status: audit.StatusInfo,
			Detail: err.Error(),
		})
		return
	}
	if err := s.workspace.Move(ctx, origin, store.NeedsAction, store.Completed); err != nil {
		log.Printf("engine: failed to complete origin %s: %v", origin, err)
		return
	}
	s.ledger.Append(audit.Entry{
		Actor:  "engine",
		Action: "correlate",
		Target: origin,
		Status: audit.StatusSuccess,
		Detail: "origin of delivered draft",
	})
}

func (s *Service) reject(ctx context.Context, name, status, detail string) error {
	if err := s.workspace.Move(ctx, name, store.Approved, store.Rejected); err != nil {
		return err
	}
	note := fmt.Sprintf("# Rejection\n\n- Task: %s\n- Status: %s\n- Reason: %s\n", name, status, detail)
	_ = s.workspace.Put(ctx, store.Rejected, model.Stem(name)+"_reason.md", []byte(note))
	s.ledger.Append(audit.Entry{
		Actor:  "engine",
		Action: "submit",
		Target: name,
		Status: status,
		Detail: detail,
	})
	return nil
}

// throttle enforces the fixed delay between consecutive external calls.
func (s *Service) throttle() {
	if s.config.CallDelay <= 0 || s.lastCall.IsZero() {
		return
	}
	if elapsed := time.Since(s.lastCall); elapsed < s.config.CallDelay {
		s.sleep(s.config.CallDelay - elapsed)
	}
}
