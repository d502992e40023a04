package generateservicedescription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gcloud-docgen/internal/catalog"
	"gcloud-docgen/internal/common/camunda"
	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/common/metrics"
	"gcloud-docgen/internal/common/observability"
	"gcloud-docgen/internal/common/validation"
	"gcloud-docgen/internal/publisher"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "generate-service-description"

// Publisher generates and stores one service description.
type Publisher interface {
	Publish(ctx context.Context, req publisher.Request) (*publisher.Result, error)
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	camunda   *camunda.Client
	publisher Publisher
	errors    *errors.ErrorHandler
	obs       *observability.Observability
	jobWorker *camunda.CamundaWorker
}

type HandlerOptions struct {
	AppConfig     *config.Config
	Camunda       *camunda.Client
	Publisher     Publisher
	CustomConfig  *Config
	Logger        logger.Logger
	Observability *observability.Observability
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)

	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required for %s", TaskType)
	}

	loggerInstance := opts.Logger
	if loggerInstance == nil {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"worker": TaskType})

	return &Handler{
		config:    workerConfig,
		logger:    loggerInstance,
		camunda:   opts.Camunda,
		publisher: opts.Publisher,
		errors:    errors.NewErrorHandler(loggerInstance),
		obs:       opts.Observability,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing service description request", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	if !h.config.Enabled {
		h.logger.Info("Worker disabled by configuration", nil)
		h.completeJob(ctx, client, job, &Output{DocumentGenerated: false})
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
	if output.DocumentGenerated {
		h.obs.RecordDocumentPublished(ctx, output.Draft, output.NewProposal, len(output.Warnings))
	}
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

	result, err := validation.ValidateDocument(variables, GetInputSchema())
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	if !result.Valid {
		return nil, errors.NewContentValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	raw, err := json.Marshal(variables)
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	return &input, nil
}

// placement is nil when the job names no service.
func (h *Handler) placement(input *Input) *catalog.Placement {
	if strings.TrimSpace(input.ServiceName) == "" {
		return nil
	}
	p := &catalog.Placement{
		FrameworkVersion: input.FrameworkVersion,
		Lot:              input.Lot,
		ServiceName:      input.ServiceName,
		Folder:           input.Folder,
		Draft:            input.Draft,
	}
	if p.FrameworkVersion == "" {
		p.FrameworkVersion = h.config.FrameworkVersion
	}
	if p.Lot == "" {
		p.Lot = h.config.Lot
	}
	return p
}

// Execute publishes the document described by input.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.publisher.Publish(ctx, publisher.Request{
		Payload:      input.payload(),
		TemplatePath: input.TemplatePath,
		Placement:    h.placement(input),
		Owner:        input.Owner,
		Sponsor:      input.Sponsor,
		EditedBy:     input.EditedBy,
	})
	if err != nil {
		return nil, err
	}

	return &Output{
		DocumentGenerated: true,
		GenerationID:      result.GenerationID,
		Filename:          result.Filename,
		WordKey:           result.WordKey,
		PDFKey:            result.PDFKey,
		Draft:             input.Draft,
		NewProposal:       result.NewProposal,
		RemovedKeys:       result.RemovedKeys,
		Warnings:          result.Warnings,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"documentGenerated": output.DocumentGenerated,
	}
	if output.DocumentGenerated {
		variables["generationId"] = output.GenerationID
		variables["filename"] = output.Filename
		variables["wordKey"] = output.WordKey
		variables["draft"] = output.Draft
		variables["newProposal"] = output.NewProposal
		variables["warnings"] = nonNil(output.Warnings)
		if output.PDFKey != "" {
			variables["pdfKey"] = output.PDFKey
		}
		if len(output.RemovedKeys) > 0 {
			variables["removedKeys"] = output.RemovedKeys
		}
	}

	if err := camunda.CompleteJob(ctx, client, job.GetKey(), variables); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("Service description published", map[string]interface{}{
		"jobKey":   job.GetKey(),
		"wordKey":  output.WordKey,
		"warnings": len(output.Warnings),
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

func (h *Handler) HealthCheck(ctx context.Context) error {
	if h.camunda == nil {
		return fmt.Errorf("camunda client not configured")
	}
	if err := h.camunda.HealthCheck(ctx); err != nil {
		return fmt.Errorf("camunda health check failed: %w", err)
	}
	return nil
}

func (h *Handler) GetTaskType() string {
	return TaskType
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}

func (h *Handler) GetConfig() *Config {
	return h.config
}

func extractErrorCode(err error) string {
	if stdErr, ok := errors.AsStandardError(err); ok {
		return string(stdErr.Code)
	}
	return "UNKNOWN_ERROR"
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
