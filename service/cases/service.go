// Package cases orchestrates the lifecycle of a submitted legal case: it
// validates the intake, launches the matching crew run, tracks agent progress
// and turns the run output into the client-facing report.
package cases

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/internal/idgen"
	"github.com/caseflow/caseflow/model"
	"github.com/caseflow/caseflow/runtime/execution"
	crewaction "github.com/caseflow/caseflow/service/action/crew"
	"github.com/caseflow/caseflow/service/dao"
	crewdao "github.com/caseflow/caseflow/service/dao/crew"
)

// ErrProcessing is returned when results are requested before the crew run
// has finished.
var ErrProcessing = errors.New("case is still processing")

// Engine starts crew runs; satisfied by the processor service.
type Engine interface {
	StartRun(ctx context.Context, crew *model.Crew, init map[string]interface{}) (*execution.Run, error)
}

// RunWaiter blocks until a run reaches a terminal state; satisfied by the
// crew action service.
type RunWaiter interface {
	WaitForRun(ctx context.Context, id string, timeoutMs int) (*crewaction.WaitOutput, error)
}

// Config holds case processing settings.
type Config struct {
	// RunTimeoutSec bounds how long a crew run may take before the case is
	// failed with a fallback report.
	RunTimeoutSec int
}

// Service coordinates case submission, status and results.
type Service struct {
	config  Config
	records dao.Service[string, casework.Record]
	crews   *crewdao.Service
	engine  Engine
	waiter  RunWaiter

	mu       sync.RWMutex
	trackers map[string]*runTracker //keyed by run ID
	pending  sync.WaitGroup
}

// New creates a case service.
func New(records dao.Service[string, casework.Record], crews *crewdao.Service, engine Engine, waiter RunWaiter, opts ...Option) *Service {
	ret := &Service{
		config:   Config{RunTimeoutSec: 600},
		records:  records,
		crews:    crews,
		engine:   engine,
		waiter:   waiter,
		trackers: make(map[string]*runTracker),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Submit validates the intake, creates the case record and launches the crew
// run for the case type. The returned record is in processing state; the run
// completes in the background.
func (s *Service) Submit(ctx context.Context, caseType casework.CaseType, intake *casework.Intake) (*casework.Record, error) {
	if !caseType.Valid() {
		return nil, fmt.Errorf("unsupported case type: %v", caseType)
	}
	if intake == nil {
		return nil, fmt.Errorf("intake is required")
	}
	if err := intake.Validate(caseType); err != nil {
		return nil, err
	}
	crew := s.crews.Lookup(string(caseType))
	if crew == nil {
		return nil, fmt.Errorf("crew %v is not registered", caseType)
	}

	record := &casework.Record{
		ID:     idgen.NewCaseID(caseType.CaseIDPrefix()),
		Type:   caseType,
		Status: casework.StatusProcessing,
		Intake: intake,
	}
	init := map[string]interface{}{"case": intake.AsParameters()}
	aRun, err := s.engine.StartRun(ctx, crew, init)
	if err != nil {
		return nil, fmt.Errorf("failed to start %v crew: %w", caseType, err)
	}
	record.RunID = aRun.ID
	if err := s.records.Save(ctx, record); err != nil {
		return nil, err
	}

	s.track(aRun.ID, crew)
	s.pending.Add(1)
	go s.finalize(record.ID, aRun.ID)
	return record, nil
}

// AgentsWorking lists the roles of the agents the crew assigns to a case
// type, in declaration order.
func (s *Service) AgentsWorking(caseType casework.CaseType) []string {
	crew := s.crews.Lookup(string(caseType))
	if crew == nil {
		return nil
	}
	roles := make([]string, 0, len(crew.Agents))
	for _, agent := range crew.Agents {
		roles = append(roles, agent.Role)
	}
	return roles
}

// Get returns a case record; dao.ErrNotFound when the case is unknown.
func (s *Service) Get(ctx context.Context, caseID string) (*casework.Record, error) {
	return s.records.Load(ctx, caseID)
}

// Status reports where a case is in its lifecycle, including how many agents
// have completed their tasks.
func (s *Service) Status(ctx context.Context, caseID string) (*CaseStatus, error) {
	record, err := s.records.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	status := &CaseStatus{
		CaseID:      record.ID,
		CaseType:    record.Type,
		Status:      record.Status,
		CreatedAt:   record.CreatedAt,
		CompletedAt: record.CompletedAt,
		Error:       record.Error,
	}
	if crew := s.crews.Lookup(string(record.Type)); crew != nil && crew.Pipeline != nil {
		status.AgentsTotal = len(crew.Pipeline.Tasks)
	}
	switch record.Status {
	case casework.StatusProcessing:
		if tracker := s.tracker(record.RunID); tracker != nil {
			snapshot := tracker.progress()
			status.AgentsCompleted = snapshot.CompletedTasks
		}
	case casework.StatusCompleted:
		status.AgentsCompleted = status.AgentsTotal
	case casework.StatusFailed:
		status.AgentsCompleted = record.AgentsCompleted
	}
	return status, nil
}

// Results returns the case report; ErrProcessing until the run finished. A
// failed run still yields a fallback report.
func (s *Service) Results(ctx context.Context, caseID string) (*casework.Report, error) {
	record, err := s.records.Load(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if record.Status == casework.StatusProcessing || record.Report == nil {
		return nil, ErrProcessing
	}
	return record.Report, nil
}

// List returns case records, optionally filtered by status, newest first.
func (s *Service) List(ctx context.Context, statuses ...casework.Status) ([]*casework.Record, error) {
	var parameters []*dao.Parameter
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, status := range statuses {
			values = append(values, string(status))
		}
		parameters = append(parameters, dao.NewParameter("Status", values...))
	}
	return s.records.List(ctx, parameters...)
}

// Wait blocks until all background case finalisations are done. Intended for
// tests and graceful shutdown.
func (s *Service) Wait() {
	s.pending.Wait()
}

// finalize waits for the crew run and settles the case record with either the
// structured report or a fallback.
func (s *Service) finalize(caseID, runID string) {
	defer s.pending.Done()
	defer s.untrack(runID)

	ctx := context.Background()
	waited, waitErr := s.waiter.WaitForRun(ctx, runID, s.config.RunTimeoutSec*1000)

	record, err := s.records.Load(ctx, caseID)
	if err != nil {
		log.Printf("failed to load case %v for finalisation: %v", caseID, err)
		return
	}

	switch {
	case waitErr != nil:
		s.fail(record, waitErr)
	case waited.Timeout:
		s.fail(record, fmt.Errorf("crew run %v did not finish within %vs", runID, s.config.RunTimeoutSec))
	case waited.State == execution.StateFailed:
		s.fail(record, fmt.Errorf("crew run %v failed: %v", runID, joinErrors(waited.Errors)))
	default:
		record.Status = casework.StatusCompleted
		record.Report = casework.BuildReport(record, waited.Output)
	}
	now := time.Now()
	record.CompletedAt = &now
	if err := s.records.Save(ctx, record); err != nil {
		log.Printf("failed to save case %v: %v", caseID, err)
	}
}

func (s *Service) fail(record *casework.Record, cause error) {
	record.Status = casework.StatusFailed
	record.Error = cause.Error()
	// Retain how far the crew got before it failed.
	if tracked := s.tracker(record.RunID); tracked != nil {
		record.AgentsCompleted = tracked.progress().CompletedTasks
	}
	record.Report = casework.FallbackReport(record, cause)
}

func joinErrors(errs map[string]string) string {
	if len(errs) == 0 {
		return "unknown error"
	}
	keys := make([]string, 0, len(errs))
	for key := range errs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+errs[key])
	}
	return strings.Join(parts, "; ")
}

// CaseStatus is the status endpoint payload.
type CaseStatus struct {
	CaseID          string            `json:"caseId"`
	CaseType        casework.CaseType `json:"caseType"`
	Status          casework.Status   `json:"status"`
	AgentsTotal     int               `json:"agentsTotal"`
	AgentsCompleted int               `json:"agentsCompleted"`
	CreatedAt       time.Time         `json:"createdAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	Error           string            `json:"error,omitempty"`
}

// Option customises the case service.
type Option func(*Service)

// WithRunTimeout bounds crew run duration in seconds.
func WithRunTimeout(seconds int) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.config.RunTimeoutSec = seconds
		}
	}
}
