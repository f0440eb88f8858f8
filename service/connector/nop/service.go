// Package nop provides a connector that performs no external effect. Useful
// for dry runs and as a default for kinds without a vendor binding.
package nop

import (
	"context"

	"github.com/viant/vetflow/model"
	"github.com/viant/vetflow/model/types"
)

// Service accepts every submission and fabricates an external id.
type Service struct {
	kind model.Kind
}

// New creates a nop connector for the given kind.
func New(kind model.Kind) *Service {
	return &Service{kind: kind}
}

func (s *Service) Name() string { return "nop" }

func (s *Service) Kind() model.Kind { return s.kind }

func (s *Service) MaxPayload() int { return 0 }

// Submit succeeds unconditionally.
func (s *Service) Submit(_ context.Context, task *model.Task) (*types.Result, error) {
	return &types.Result{ExternalID: "nop-" + task.ID, Detail: "no external effect"}, nil
}
