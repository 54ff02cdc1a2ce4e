package caseflow

import (
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/x"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/crews"
	"github.com/caseflow/caseflow/extension"
	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/runtime/execution"
	crewaction "github.com/caseflow/caseflow/service/action/crew"
	"github.com/caseflow/caseflow/service/action/docstore"
	"github.com/caseflow/caseflow/service/action/nop"
	"github.com/caseflow/caseflow/service/action/printer"
	"github.com/caseflow/caseflow/service/agent"
	"github.com/caseflow/caseflow/service/allocator"
	"github.com/caseflow/caseflow/service/cases"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/dao/casefile"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
	ememory "github.com/caseflow/caseflow/service/dao/execution/memory"
	rmemory "github.com/caseflow/caseflow/service/dao/run/memory"
	"github.com/caseflow/caseflow/service/event"
	"github.com/caseflow/caseflow/service/executor"
	"github.com/caseflow/caseflow/service/llm"
	"github.com/caseflow/caseflow/service/llm/openai"
	"github.com/caseflow/caseflow/service/messaging"
	mmemory "github.com/caseflow/caseflow/service/messaging/memory"
	"github.com/caseflow/caseflow/service/meta"
	"github.com/caseflow/caseflow/service/processor"
	"github.com/caseflow/caseflow/service/review"
	reviewmem "github.com/caseflow/caseflow/service/review/memory"
	"github.com/caseflow/caseflow/service/tool/legal"
	"github.com/caseflow/caseflow/service/tool/reader"
	"github.com/caseflow/caseflow/service/tool/serper"
)

// Service is the composition root: it wires the crew engine, the action
// services and the case façade together.
type Service struct {
	config  *Config
	runtime *Runtime

	metaService *meta.Service
	metaBaseURL string

	actions           *extension.Actions
	extensionTypes    []*x.Type
	extensionServices []types.Service

	executor        executor.Service
	executorOptions []executor.Option

	queue            messaging.Queue[execution.Execution]
	runDao           dao.Service[string, execution.Run]
	taskExecutionDao dao.Service[string, execution.Execution]
	crewDao          *crewdao.Service
	caseDao          dao.Service[string, casework.Record]

	eventService  *event.Service
	reviewService review.Service
	llmClient     llm.Client
	caseService   *cases.Service
	caseListener  execution.StateListener

	workers int
}

// New creates a fully wired service. Without options it uses in-memory
// engine stores, the built-in crews and an in-memory case database.
func New(options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{}}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if s.config == nil {
		s.config = &Config{
			Port:              8000,
			AllowedOrigins:    []string{"http://localhost:3000"},
			DatabasePath:      ":memory:",
			OpenAIModel:       openai.DefaultModel,
			OpenAITemperature: openai.DefaultTemperature,
			Workers:           5,
			RunTimeoutSec:     600,
		}
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}

	s.actions = extension.NewActions(s.extensionTypes...)
	if s.reviewService == nil {
		s.reviewService = reviewmem.New(s.taskExecutionDao, reviewmem.WithRunDAO(s.runDao))
	}
	s.executor = executor.NewService(s.actions,
		append([]executor.Option{executor.WithReviewHandler(s.reviewService)}, s.executorOptions...)...)

	workers := s.workers
	if workers == 0 {
		workers = s.config.Workers
	}
	proc, err := processor.New(
		processor.WithExecutor(s.executor),
		processor.WithMessageQueue(s.queue),
		processor.WithWorkers(workers),
		processor.WithRunDAO(s.runDao),
		processor.WithTaskExecutionDAO(s.taskExecutionDao),
		processor.WithSessionListeners(func(session *execution.Session, key string, oldVal, newVal interface{}) {
			if s.caseListener != nil {
				s.caseListener(session, key, oldVal, newVal)
			}
		}))
	if err != nil {
		return err
	}
	s.runtime.processor = proc
	s.runtime.allocator = allocator.New(s.runDao, s.taskExecutionDao, s.queue, allocator.DefaultConfig())

	s.registerActions()
	for _, service := range s.extensionServices {
		s.actions.Register(service)
	}

	s.runtime.crewService = crewaction.New(proc, s.crewDao, s.runDao)
	s.actions.Register(s.runtime.crewService)

	if _, err := crews.Register(s.crewDao); err != nil {
		return err
	}

	s.caseService = cases.New(s.caseDao, s.crewDao, proc, s.runtime.crewService,
		cases.WithRunTimeout(s.config.RunTimeoutSec))
	s.caseListener = s.caseService.SessionListener()

	s.runtime.crewDao = s.crewDao
	s.runtime.runDao = s.runDao
	s.runtime.taskExecutionDao = s.taskExecutionDao
	s.runtime.queue = s.queue
	return nil
}

func (s *Service) ensureBaseSetup() error {
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), s.metaBaseURL)
	}
	if s.crewDao == nil {
		s.crewDao = crewdao.New(crewdao.WithMetaService(s.metaService))
	}
	if s.queue == nil {
		s.queue = mmemory.NewQueue[execution.Execution](mmemory.DefaultConfig())
	}
	if s.runDao == nil {
		s.runDao = rmemory.New()
	}
	if s.taskExecutionDao == nil {
		s.taskExecutionDao = ememory.New()
	}
	if s.caseDao == nil {
		caseDao, err := casefile.New(s.config.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open case store: %w", err)
		}
		s.caseDao = caseDao
	}
	if s.llmClient == nil && s.config.OpenAIAPIKey != "" {
		opts := []openai.Option{
			openai.WithModel(s.config.OpenAIModel),
			openai.WithTemperature(s.config.OpenAITemperature),
		}
		if s.config.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(s.config.OpenAIBaseURL))
		}
		s.llmClient = openai.New(s.config.OpenAIAPIKey, opts...)
	}
	return nil
}

// registerActions installs the built-in action and tool services.
func (s *Service) registerActions() {
	s.actions.Register(nop.New())
	s.actions.Register(printer.New())
	s.actions.Register(agent.New(s.llmClient, s.actions))
	s.actions.Register(legal.New())
	s.actions.Register(reader.New(afs.New()))

	var docstoreOptions []docstore.Option
	if s.config.DocstoreURL != "" {
		docstoreOptions = append(docstoreOptions, docstore.WithBaseURL(s.config.DocstoreURL))
	}
	s.actions.Register(docstore.New(afs.New(), docstoreOptions...))

	if s.config.SerperAPIKey != "" {
		s.actions.Register(serper.New(s.config.SerperAPIKey))
	}
}

// NewContext derives a context carrying the event service so executed tasks
// publish execution events.
func (s *Service) NewContext(ctx context.Context) context.Context {
	if s.eventService == nil {
		return ctx
	}
	return context.WithValue(ctx, execution.EventKey, s.eventService)
}

// Start launches the engine workers and the allocator.
func (s *Service) Start(ctx context.Context) error {
	return s.runtime.Start(s.NewContext(ctx))
}

// Shutdown stops the engine and waits for in-flight case finalisations.
func (s *Service) Shutdown(ctx context.Context) error {
	if err := s.runtime.Shutdown(ctx); err != nil {
		return err
	}
	s.caseService.Wait()
	return nil
}

// Config returns the active configuration.
func (s *Service) Config() *Config { return s.config }

// Runtime returns the crew engine runtime.
func (s *Service) Runtime() *Runtime { return s.runtime }

// Cases returns the case façade.
func (s *Service) Cases() *cases.Service { return s.caseService }

// Reviews returns the human-in-the-loop review service.
func (s *Service) Reviews() review.Service { return s.reviewService }

// Actions returns the registered action services.
func (s *Service) Actions() *extension.Actions { return s.actions }

// RegisterExtensionTypes registers additional data types.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.actions.Types().Register(types[i])
	}
}

// RegisterExtensionServices registers additional action services.
func (s *Service) RegisterExtensionServices(services ...types.Service) {
	for i := range services {
		s.actions.Register(services[i])
	}
}
