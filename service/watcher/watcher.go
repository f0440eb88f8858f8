package watcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/correlation"
	"github.com/viant/vetflow/service/store"
	"github.com/viant/vetflow/tracing"
)

// Item is one inbound item detected at a source.
type Item struct {
	// ID is the source-native identity used for dedup (message id, file
	// name). Never guessed from content.
	ID      string
	Kind    model.Kind
	Payload string
	Meta    map[string]string
}

// Source detects inbound items. Poll may return items the service has seen
// before; the seen-index filters them.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]Item, error)
}

// Claimer is implemented by sources that can consume an item at the source
// once it has been materialized (delete a drop-folder file, mark a message
// read). Claim runs after the task file and its index entry are durable, so
// a claim failure can never lose work, only leave a no-op leftover.
type Claimer interface {
	Claim(ctx context.Context, item Item) error
}

// Config represents watcher service configuration.
type Config struct {
	// Interval between poll cycles.
	Interval time.Duration

	// PollTimeout bounds one poll cycle including source calls, so a hung
	// vendor call cannot stall the cycle indefinitely.
	PollTimeout time.Duration
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		PollTimeout: 2 * time.Minute,
	}
}

// Service polls one source and materializes new items as task files in the
// needs-action store.
type Service struct {
	source    Source
	workspace *store.Workspace
	index     *correlation.Index
	ledger    *audit.Ledger
	config    Config
}

// Option customises the watcher service.
type Option func(*Service)

// WithConfig sets the watcher configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// New creates a watcher for source.
func New(source Source, workspace *store.Workspace, index *correlation.Index, ledger *audit.Ledger, options ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if workspace == nil {
		return nil, fmt.Errorf("workspace is required")
	}
	s := &Service{
		source:    source,
		workspace: workspace,
		index:     index,
		ledger:    ledger,
		config:    DefaultConfig(),
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// Name returns the source name; it doubles as the audit actor.
func (s *Service) Name() string { return s.source.Name() }

// Interval returns the configured polling interval.
func (s *Service) Interval() time.Duration { return s.config.Interval }

// Poll runs one cycle: query the source, materialize every unseen item.
// A source failure aborts only this cycle; a failure on one item never
// aborts the remaining items.
func (s *Service) Poll(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("watcher.poll %s", s.source.Name()), "INTERNAL")
	defer tracing.EndSpan(span, err)
	if s.config.PollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.PollTimeout)
		defer cancel()
	}

	items, err := s.source.Poll(ctx)
	if err != nil {
		err = types.NewSourceUnavailableError(s.source.Name(), err)
		s.ledger.Append(audit.Entry{
			Actor:  s.source.Name(),
			Action: "poll",
			Target: s.source.Name(),
			Status: audit.StatusFailedSource,
			Detail: err.Error(),
		})
		return err
	}

	materialized := 0
	fresh := 0
	for _, item := range items {
		if s.index.Seen(item.ID) {
			continue
		}
		fresh++
		if mErr := s.materialize(ctx, item); mErr != nil {
			log.Printf("watcher %s: failed to materialize item %s: %v", s.source.Name(), item.ID, mErr)
			s.ledger.Append(audit.Entry{
				Actor:  s.source.Name(),
				Action: "materialize",
				Target: item.ID,
				Status: audit.StatusFailedSource,
				Detail: mErr.Error(),
			})
			continue
		}
		materialized++
	}
	s.ledger.Append(audit.Entry{
		Actor:  s.source.Name(),
		Action: "poll",
		Target: s.source.Name(),
		Status: audit.StatusInfo,
		Detail: fmt.Sprintf("found=%d new=%d materialized=%d", len(items), fresh, materialized),
	})
	return nil
}

func (s *Service) materialize(ctx context.Context, item Item) error {
	task := model.NewTask(item.Kind, s.source.Name(), item.Payload)
	task.Meta = item.Meta
	data, err := task.Encode()
	if err != nil {
		return err
	}
	name := task.Filename()
	if err := s.workspace.Put(ctx, store.NeedsAction, name, data); err != nil {
		return err
	}
	sidecar := model.RenderMetadata(task, name, "materialized from "+s.source.Name(), len(data))
	if err := s.workspace.Put(ctx, store.NeedsAction, model.MetadataName(name), []byte(sidecar)); err != nil {
		return err
	}
	if err := s.index.Mark(ctx, item.ID, task.ID); err != nil {
		return err
	}
	if claimer, ok := s.source.(Claimer); ok {
		if err := claimer.Claim(ctx, item); err != nil {
			log.Printf("watcher %s: failed to claim item %s: %v", s.source.Name(), item.ID, err)
		}
	}
	s.ledger.Append(audit.Entry{
		Actor:  s.source.Name(),
		Action: "materialize",
		Target: name,
		Status: audit.StatusSuccess,
		Detail: "task=" + task.ID,
	})
	return nil
}
