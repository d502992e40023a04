package searchservicedocuments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gcloud-docgen/internal/common/camunda"
	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/common/metrics"
	"gcloud-docgen/internal/common/observability"
	"gcloud-docgen/internal/common/validation"
	"gcloud-docgen/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "search-service-documents"

type Searcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Result, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	camunda   *camunda.Client
	searcher  Searcher
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	jobWorker *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	Searcher      Searcher
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Searcher == nil {
		return nil, fmt.Errorf("searcher is required for %s", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:   workerConfig,
		logger:   loggerInstance,
		camunda:  opts.Camunda,
		searcher: opts.Searcher,
		errors:   errors.NewErrorHandler(loggerInstance),
		obs:      opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if !h.config.Enabled {
		h.completeJob(ctx, client, job, &Output{})
		return
	}

	input, err := h.parseInput(job)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, extractErrorCode(err)).Inc()
		h.obs.RecordJobProcessed(ctx, TaskType, "failed")
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(startTime), "completed")
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewContentValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	input := &Input{
		ServiceName:       strings.TrimSpace(variables["serviceName"].(string)),
		DocTypes:          stringSlice(variables["docTypes"]),
		FrameworkVersions: stringSlice(variables["frameworkVersions"]),
		Lots:              stringSlice(variables["lots"]),
		Limit:             h.config.DefaultLimit,
	}
	if limit, ok := variables["limit"].(float64); ok {
		input.Limit = int(limit)
	}
	if input.ServiceName == "" {
		return nil, errors.NewContentValidationFailedError("serviceName: value must not be blank")
	}
	return input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	results, err := h.searcher.Search(ctx, search.Query{
		ServiceName: input.ServiceName,
		DocTypes:    input.DocTypes,
		Versions:    input.FrameworkVersions,
		Lots:        input.Lots,
		Limit:       input.Limit,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewSearchTimeoutError(input.ServiceName)
		}
		if _, ok := errors.AsStandardError(err); ok {
			return nil, err
		}
		return nil, errors.NewSearchQueryFailedError(input.ServiceName, err)
	}
	if results == nil {
		results = []search.Result{}
	}
	return &Output{Results: results, Total: len(results)}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	results := output.Results
	if results == nil {
		results = []search.Result{}
	}
	variables := map[string]interface{}{
		"searchResults": results,
		"searchTotal":   output.Total,
	}

	if err := camunda.CompleteJob(ctx, client, job.GetKey(), variables); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Search completed", map[string]interface{}{
		"jobKey": job.GetKey(),
		"total":  output.Total,
	})
}

func (h *Handler) Register() error {
	if !h.config.Enabled {
		h.logger.Info("Worker is disabled, skipping registration", nil)
		return nil
	}
	if h.camunda == nil {
		return fmt.Errorf("camunda client is required to register %s", TaskType)
	}

	h.jobWorker = camunda.StartWorker(h.camunda.GetClient(), h, camunda.WorkerOptions{
		Name:          fmt.Sprintf("%s-worker", TaskType),
		MaxJobsActive: h.config.MaxJobsActive,
		Timeout:       h.config.Timeout,
	}, h.logger)
	return nil
}

func (h *Handler) Close() {
	if h.jobWorker != nil {
		h.jobWorker.Stop()
		h.jobWorker = nil
	}
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func extractErrorCode(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
