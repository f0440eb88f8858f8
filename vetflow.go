package vetflow

import (
	"fmt"
	"path"
	"time"

	"github.com/viant/afs"

	"github.com/viant/vetflow/config"
	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/policy"
	"github.com/viant/vetflow/service/approval"
	"github.com/viant/vetflow/service/audit"
	"github.com/viant/vetflow/service/connector"
	"github.com/viant/vetflow/service/connector/erp"
	"github.com/viant/vetflow/service/connector/nop"
	"github.com/viant/vetflow/service/connector/social"
	"github.com/viant/vetflow/service/correlation"
	"github.com/viant/vetflow/service/engine"
	"github.com/viant/vetflow/service/scheduler"
	"github.com/viant/vetflow/service/store"
	"github.com/viant/vetflow/service/watcher"
	"github.com/viant/vetflow/service/watcher/dropfolder"
	"github.com/viant/vetflow/tracing"
)

// Service aggregates the workflow components: workspace, ledger, gate,
// watchers and engine, wired once at startup and passed by reference.
type Service struct {
	config     *config.Config
	fs         afs.Service
	workspace  *store.Workspace
	ledger     *audit.Ledger
	policy     *policy.Policy
	registry   *connector.Registry
	gate       *approval.Service
	engine     *engine.Service
	watchers   []*watcher.Service
	scheduler  *scheduler.Service
	connectors []connector.Service
	sources    []sourceBinding
	useNop     bool
}

type sourceBinding struct {
	source   watcher.Source
	interval time.Duration
}

// New builds a fully wired service from the supplied options.
func New(options ...Option) (*Service, error) {
	s := &Service{}
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = &config.Config{}
		s.config.Init()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	cfg := s.config
	if cfg.Tracing.Enabled {
		if err := tracing.Init("vetflow", "1.0", cfg.Tracing.OutputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	var err error
	if s.workspace, err = store.New(s.fs, cfg.BaseURL); err != nil {
		return err
	}
	if s.ledger, err = audit.New(cfg.Ledger); err != nil {
		return err
	}
	s.policy = policy.New(cfg.Policy)
	if err = s.initConnectors(); err != nil {
		return err
	}
	engineConfig, err := s.engineConfig()
	if err != nil {
		return err
	}
	if s.engine, err = engine.New(s.workspace, s.registry, s.policy, s.ledger, engine.WithConfig(engineConfig)); err != nil {
		return err
	}
	s.gate = approval.New(s.workspace, s.ledger)
	if err = s.initWatchers(); err != nil {
		return err
	}
	return s.initScheduler()
}

func (s *Service) initConnectors() error {
	cfg := s.config
	s.registry = connector.NewRegistry(s.connectors...)
	if cfg.Connectors.Social != nil {
		s.registry.Register(social.New(*cfg.Connectors.Social))
	}
	if cfg.Connectors.ERP != nil {
		s.registry.Register(erp.New(*cfg.Connectors.ERP))
	}
	if s.useNop {
		kinds := []model.Kind{model.KindSocialPost, model.KindEmailDraft, model.KindInvoiceRequest, model.KindNote}
		for _, kind := range kinds {
			if s.registry.Lookup(kind) == nil {
				s.registry.Register(nop.New(kind))
			}
		}
	}
	return nil
}

func (s *Service) initWatchers() error {
	cfg := s.config
	bindings := append([]sourceBinding(nil), s.sources...)
	for _, wc := range cfg.Watchers {
		interval, err := config.ParseInterval(wc.Interval, time.Minute)
		if err != nil {
			return err
		}
		switch wc.Name {
		case "dropfolder":
			bindings = append(bindings, sourceBinding{source: dropfolder.New(s.workspace), interval: interval})
		case "gmail":
			// The gmail source needs an authorized client; it is attached
			// through WithSource by the caller owning the OAuth artifacts.
			if !s.hasSource("gmail") {
				return fmt.Errorf("watcher gmail requires an authorized source: configure connectors.email or attach one with WithSource")
			}
		default:
			return fmt.Errorf("unknown watcher: %s", wc.Name)
		}
	}
	for _, binding := range bindings {
		index, err := correlation.NewIndex(s.fs, path.Join(cfg.BaseURL, ".index", binding.source.Name()+".json"))
		if err != nil {
			return err
		}
		service, err := watcher.New(binding.source, s.workspace, index, s.ledger,
			watcher.WithConfig(watcher.Config{Interval: binding.interval, PollTimeout: 2 * time.Minute}))
		if err != nil {
			return err
		}
		s.watchers = append(s.watchers, service)
	}
	return nil
}

func (s *Service) hasSource(name string) bool {
	for _, binding := range s.sources {
		if binding.source.Name() == name {
			return true
		}
	}
	return false
}

func (s *Service) initScheduler() error {
	sched, err := scheduler.New()
	if err != nil {
		return err
	}
	for _, w := range s.watchers {
		watch := w
		if err := sched.Register(scheduler.Job{
			Name:     "watcher." + watch.Name(),
			Interval: watch.Interval(),
			Run:      watch.Poll,
		}); err != nil {
			return err
		}
	}
	if err := sched.Register(scheduler.Job{
		Name:     "engine.scan",
		Interval: s.engine.Interval(),
		Run:      s.engine.ScanApproved,
	}); err != nil {
		return err
	}
	s.scheduler = sched
	return nil
}

func (s *Service) engineConfig() (engine.Config, error) {
	ret := engine.DefaultConfig()
	var err error
	if ret.ScanInterval, err = config.ParseInterval(s.config.Engine.ScanInterval, ret.ScanInterval); err != nil {
		return ret, err
	}
	if ret.SubmitTimeout, err = config.ParseInterval(s.config.Engine.SubmitTimeout, ret.SubmitTimeout); err != nil {
		return ret, err
	}
	if ret.CallDelay, err = config.ParseInterval(s.config.Engine.CallDelay, ret.CallDelay); err != nil {
		return ret, err
	}
	return ret, nil
}

// Workspace returns the store workspace.
func (s *Service) Workspace() *store.Workspace { return s.workspace }

// Ledger returns the audit ledger.
func (s *Service) Ledger() *audit.Ledger { return s.ledger }

// Approval returns the approval gate.
func (s *Service) Approval() *approval.Service { return s.gate }

// Engine returns the execution engine.
func (s *Service) Engine() *engine.Service { return s.engine }

// Registry returns the connector registry.
func (s *Service) Registry() *connector.Registry { return s.registry }

// Watchers returns the configured watcher services.
func (s *Service) Watchers() []*watcher.Service { return s.watchers }
