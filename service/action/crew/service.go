package crew

import (
	"context"
	"fmt"
	"reflect"

	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
	"github.com/caseflow/caseflow/service/processor"
)

const name = "crew"

// Service exposes crew runs as pipeline actions so tasks can launch nested
// crews, poll their status and wait for completion.
type Service struct {
	processor *processor.Service
	crewDao   *crewdao.Service
	runDao    dao.Service[string, execution.Run]
}

// New creates a crew control service
func New(processor *processor.Service, crewDao *crewdao.Service, runDao dao.Service[string, execution.Run]) *Service {
	return &Service{
		processor: processor,
		crewDao:   crewDao,
		runDao:    runDao,
	}
}

// Name returns the service name
func (s *Service) Name() string {
	return name
}

// Methods returns the service methods
func (s *Service) Methods() types.Signatures {
	return []types.Signature{
		{
			Name:        "status",
			Description: "Retrieves the current state and session output of a crew run based on its run ID.",
			Input:       reflect.TypeOf(&StatusInput{}),
			Output:      reflect.TypeOf(&StatusOutput{}),
		},
		{
			Name:        "run",
			Description: "Executes a crew with the given definition and intake parameters, returning the run ID, output, errors and state.",
			Input:       reflect.TypeOf(&RunInput{}),
			Output:      reflect.TypeOf(&RunOutput{}),
		},
		{
			Name:        "wait",
			Description: "Polls a crew run until completion or timeout, returning its final state, output, errors, and timing information.",
			Input:       reflect.TypeOf(&WaitInput{}),
			Output:      reflect.TypeOf(&WaitOutput{}),
		},
	}
}

// Method returns the specified method
func (s *Service) Method(name string) (types.Executable, error) {
	switch name {
	case "run":
		return s.run, nil
	case "status":
		return s.status, nil
	case "wait":
		return s.wait, nil

	default:
		return nil, types.NewMethodNotFoundError(name)
	}
}

func (s *Service) ensureCrew(ctx context.Context, input *RunInput) error {
	if input.Crew != nil {
		return nil
	}
	var aCrew *model.Crew
	var err error
	switch {
	case len(input.Source) > 0:
		aCrew, err = s.crewDao.DecodeYAML(input.Source)
	case input.Name != "":
		if aCrew = s.crewDao.Lookup(input.Name); aCrew == nil {
			err = fmt.Errorf("crew %v is not registered", input.Name)
		}
	default:
		aCrew, err = s.crewDao.Load(ctx, input.Location)
	}
	if err != nil {
		return err
	}
	if aCrew.Pipeline == nil {
		return fmt.Errorf("crew %v has no tasks", aCrew.Name)
	}
	input.Crew = aCrew
	return nil
}
