package crew

import (
	"context"
	"fmt"
	"time"

	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/runtime/execution"
)

type WaitInput struct {
	RunID             string `json:"runID,omitempty"`
	TimeoutInMs       int    `json:"timeoutMs,omitempty"`
	PoolFrequencyInMs int    `json:"poolTimeMs,omitempty"`
}

func (i *WaitInput) Init(ctx context.Context) {
	if i.PoolFrequencyInMs == 0 {
		i.PoolFrequencyInMs = 200
	}
	if i.TimeoutInMs == 0 {
		i.TimeoutInMs = 300000 //5 min
	}
}

func (i *WaitInput) Validate(ctx context.Context) error {
	if i.RunID == "" {
		return fmt.Errorf("runID is required")
	}
	return nil
}

// WaitOutput represents a wait output
type WaitOutput execution.RunOutput

// WaitForRun waits for a run to complete
func (s *Service) WaitForRun(ctx context.Context, id string, timeoutMs int) (*WaitOutput, error) {
	input := &WaitInput{RunID: id}
	input.TimeoutInMs = timeoutMs
	input.Init(ctx)
	output := &WaitOutput{}
	return output, s.wait(ctx, input, output)
}

func (s *Service) wait(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*WaitInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}
	input.Init(ctx)

	if err := input.Validate(ctx); err != nil {
		return err
	}

	output, ok := out.(*WaitOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}

	poolFrequency := time.Millisecond * time.Duration(input.PoolFrequencyInMs)
	var expiry time.Time
	if input.TimeoutInMs > 0 {
		expiry = time.Now().Add(time.Millisecond * time.Duration(input.TimeoutInMs))
	}

	//Always populate run ID so that caller can correlate the result even
	//when the crew finishes with an error or times-out.
	output.RunID = input.RunID

outer:
	for {
		aRun, err := s.runDao.Load(ctx, input.RunID)
		if err != nil {
			return err
		}
		// Finished only when allocator sets final state.
		if aRun.State == execution.StateCompleted || aRun.State == execution.StateFailed {
			break outer // done
		}

		if !expiry.IsZero() && time.Now().After(expiry) {
			output.Timeout = true
			break outer // timeout reached
		}
		time.Sleep(poolFrequency)

	}
	aRun, err := s.runDao.Load(ctx, input.RunID)
	if err != nil {
		return err
	}

	output.State = aRun.State
	output.Output = aRun.Session.State
	output.Errors = aRun.Errors
	finishedAt := aRun.FinishedAt
	if finishedAt == nil {
		ts := time.Now()
		finishedAt = &ts
	}
	output.TimeTaken = finishedAt.Sub(aRun.CreatedAt)
	return nil
}
