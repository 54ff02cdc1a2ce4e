package crew

import (
	"context"
	"fmt"

	"github.com/caseflow/caseflow/model/types"
)

type StatusInput struct {
	RunID string `json:"runID,omitempty"`
}

func (i *StatusInput) Validate(ctx context.Context) error {
	if i.RunID == "" {
		return fmt.Errorf("runID is required")
	}
	return nil
}

type StatusOutput struct {
	State  string
	Output map[string]interface{}
}

func (s *Service) status(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*StatusInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}

	if err := input.Validate(ctx); err != nil {
		return err
	}

	aRun, err := s.runDao.Load(ctx, input.RunID)
	if err != nil {
		return err
	}

	output, ok := out.(*StatusOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	output.State = aRun.State
	output.Output = aRun.Session.State
	return nil
}
