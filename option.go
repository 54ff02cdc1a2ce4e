package caseflow

import (
	"github.com/viant/x"

	"github.com/caseflow/caseflow/casework"
	"github.com/caseflow/caseflow/model/types"
	"github.com/caseflow/caseflow/runtime/execution"
	"github.com/caseflow/caseflow/service/dao"
	"github.com/caseflow/caseflow/service/event"
	"github.com/caseflow/caseflow/service/executor"
	"github.com/caseflow/caseflow/service/llm"
	"github.com/caseflow/caseflow/service/messaging"
	"github.com/caseflow/caseflow/service/meta"
	"github.com/caseflow/caseflow/service/review"
	"github.com/caseflow/caseflow/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service composition.
type Option func(s *Service)

// WithConfig supplies a configuration, typically from LoadConfig.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithLLMClient overrides the OpenAI-backed client, e.g. with a stub.
func WithLLMClient(client llm.Client) Option {
	return func(s *Service) { s.llmClient = client }
}

// WithReviewService sets the review service
func WithReviewService(svc review.Service) Option {
	return func(s *Service) { s.reviewService = svc }
}

// WithEventService attaches an event service; contexts created via NewContext
// carry it so executed tasks publish events.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.eventService = service }
}

// WithMetaService sets the meta service
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) { s.metaService = service }
}

// WithMetaBaseURL sets the base URL crew definitions are loaded from.
func WithMetaBaseURL(url string) Option {
	return func(s *Service) { s.metaBaseURL = url }
}

// WithExtensionTypes sets the extension types
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithExtensionServices sets the extension services
func WithExtensionServices(services ...types.Service) Option {
	return func(s *Service) { s.extensionServices = services }
}

// WithQueue sets the execution queue
func WithQueue(queue messaging.Queue[execution.Execution]) Option {
	return func(s *Service) { s.queue = queue }
}

// WithRunDAO sets the run DAO
func WithRunDAO(dao dao.Service[string, execution.Run]) Option {
	return func(s *Service) { s.runDao = dao }
}

// WithTaskExecutionDAO sets the task execution DAO
func WithTaskExecutionDAO(dao dao.Service[string, execution.Execution]) Option {
	return func(s *Service) { s.taskExecutionDao = dao }
}

// WithCaseDAO overrides the SQLite case store.
func WithCaseDAO(dao dao.Service[string, casework.Record]) Option {
	return func(s *Service) { s.caseDao = dao }
}

// WithProcessorWorkers sets the processor worker count.
func WithProcessorWorkers(count int) Option {
	return func(s *Service) { s.workers = count }
}

// WithExecutorOptions lets the caller supply additional options passed to
// executor.NewService (e.g. attaching a listener).
func WithExecutorOptions(opts ...executor.Option) Option {
	return func(s *Service) { s.executorOptions = append(s.executorOptions, opts...) }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. The first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, e.g. OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
