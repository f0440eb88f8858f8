package vetflow

import (
	"time"

	"github.com/viant/afs"

	"github.com/viant/vetflow/config"
	"github.com/viant/vetflow/service/connector"
	"github.com/viant/vetflow/service/watcher"
)

// Option customises the aggregated service.
type Option func(*Service)

// WithConfig supplies the configuration; it must be initialised.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) { s.config = cfg }
}

// WithAFS overrides the file system service, mainly for tests.
func WithAFS(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithConnectors registers additional connectors; a configured vendor
// connector for the same kind takes precedence.
func WithConnectors(services ...connector.Service) Option {
	return func(s *Service) { s.connectors = append(s.connectors, services...) }
}

// WithSource attaches a watcher source with its polling interval, e.g. a
// gmail source constructed with the deployment's OAuth client.
func WithSource(source watcher.Source, interval time.Duration) Option {
	return func(s *Service) {
		s.sources = append(s.sources, sourceBinding{source: source, interval: interval})
	}
}

// WithNopConnectors fills every kind lacking a vendor connector with a nop
// connector. Intended for dry runs and tests.
func WithNopConnectors() Option {
	return func(s *Service) { s.useNop = true }
}
