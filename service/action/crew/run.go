package crew

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/runtime/execution"
)

type RunInput struct {
	// Name refers to a crew already registered with the crew DAO.
	Name string `json:"name,omitempty"`
	// Location loads the crew definition from the metadata store.
	Location string `json:"location,omitempty"`
	// Source holds an inline YAML definition.
	Source []byte `json:"source,omitempty"`
	// Context seeds the run session, e.g. the case intake under "case".
	Context       map[string]interface{} `json:"parameters,omitempty"`
	Crew          *model.Crew            `json:"crew,omitempty"`
	IgnoreError   bool                   `json:"ignoreError,omitempty"`
	Async         bool                   `json:"async,omitempty"`
	WaitTimeInSec int                    `json:"waitTimeInSec,omitempty"`
}

type RunOutput struct {
	RunID  string
	Output map[string]interface{}
	Errors map[string]string
	State  string
}

func (i *RunInput) Init(ctx context.Context) {
	if i.WaitTimeInSec == 0 && !i.Async {
		i.WaitTimeInSec = 300 //5 min
	}
}

func (i *RunInput) Validate(ctx context.Context) error {
	if i.Crew != nil {
		return nil
	}
	if i.Name == "" && i.Location == "" && len(i.Source) == 0 {
		return fmt.Errorf("one of name, location or source is required")
	}
	return nil
}

func (s *Service) run(ctx context.Context, in, out interface{}) error {
	input, ok := in.(*RunInput)
	if !ok {
		return types.NewInvalidInputError(in)
	}

	input.Init(ctx)

	if err := input.Validate(ctx); err != nil {
		return err
	}

	if err := s.ensureCrew(ctx, input); err != nil {
		return err
	}

	aRun, err := s.processor.StartRun(ctx, input.Crew, input.Context)
	if err != nil {
		return err
	}
	output, ok := out.(*RunOutput)
	if !ok {
		return types.NewInvalidOutputError(out)
	}
	output.RunID = aRun.ID
	if !input.Async {
		waitInput := &WaitInput{
			RunID:       aRun.ID,
			TimeoutInMs: input.WaitTimeInSec * 1000,
		}
		waitOutput := &WaitOutput{}
		if err := s.wait(ctx, waitInput, waitOutput); err != nil {
			return err
		}

		if waitOutput.State == execution.StateFailed {
			if !input.IgnoreError {
				errorInfo, _ := json.Marshal(waitOutput.Errors)
				return fmt.Errorf("failed to run crew %v, due to %s", aRun.ID, errorInfo)
			}
		}
		output.Output = waitOutput.Output
		output.Errors = waitOutput.Errors
		output.State = waitOutput.State
	}
	return nil
}
