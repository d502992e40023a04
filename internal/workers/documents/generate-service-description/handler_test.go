package generateservicedescription

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/publisher"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, req publisher.Request) (*publisher.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*publisher.Result), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                      key,
		Type:                     TaskType,
		ProcessInstanceKey:       key * 10,
		BpmnProcessId:            "service-description",
		ProcessDefinitionVersion: 1,
		ProcessDefinitionKey:     1,
		ElementId:                "Activity_GenerateServiceDescription",
		ElementInstanceKey:       1,
		CustomHeaders:            "{}",
		Worker:                   "test-worker",
		Retries:                  3,
		Deadline:                 0,
		Variables:                string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

func validVariables() map[string]interface{} {
	return map[string]interface{}{
		"title":       "AI Security Assessment",
		"description": "Independent assessment of AI systems.",
		"features":    []interface{}{"Threat modelling", "Red teaming"},
		"benefits":    []interface{}{"Reduced risk"},
		"serviceDefinition": []interface{}{
			map[string]interface{}{
				"subtitle": "Approach",
				"content":  "<p>We start with discovery.</p>",
				"table":    []interface{}{[]interface{}{"Phase", "Weeks"}, []interface{}{"Discovery", 2}},
			},
		},
		"serviceName": "AI Security",
		"owner":       "Jane Smith",
		"draft":       true,
	}
}

func newTestHandler(t *testing.T, pub Publisher) *Handler {
	t.Helper()
	cfg := DefaultConfig()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: cfg,
		Publisher:    pub,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestHandler_NewHandler(t *testing.T) {
	tests := []struct {
		name    string
		opts    HandlerOptions
		wantErr string
	}{
		{
			name: "valid configuration",
			opts: HandlerOptions{CustomConfig: DefaultConfig(), Publisher: &MockPublisher{}},
		},
		{
			name:    "missing publisher",
			opts:    HandlerOptions{CustomConfig: DefaultConfig()},
			wantErr: "publisher is required",
		},
		{
			name: "invalid timeout",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, MaxJobsActive: 1, Timeout: -time.Second},
				Publisher:    &MockPublisher{},
			},
			wantErr: "timeout must be positive",
		},
		{
			name: "invalid max jobs active",
			opts: HandlerOptions{
				CustomConfig: &Config{Enabled: true, Timeout: time.Second},
				Publisher:    &MockPublisher{},
			},
			wantErr: "max_jobs_active must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, err := NewHandler(tt.opts)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, handler)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TaskType, handler.GetTaskType())
			assert.True(t, handler.IsEnabled())
		})
	}
}

func TestHandler_ParseInput(t *testing.T) {
	h := newTestHandler(t, &MockPublisher{})

	t.Run("valid", func(t *testing.T) {
		input, err := h.parseInput(createMockJob(1, validVariables()))
		require.NoError(t, err)
		assert.Equal(t, "AI Security Assessment", input.Title)
		assert.Equal(t, []string{"Threat modelling", "Red teaming"}, input.Features)
		require.Len(t, input.ServiceDefinition, 1)
		assert.Equal(t, "Approach", input.ServiceDefinition[0].Subtitle)
		assert.Len(t, input.ServiceDefinition[0].Table, 2)
		assert.Equal(t, "AI Security", input.ServiceName)
		assert.True(t, input.Draft)
	})

	invalid := []struct {
		name   string
		mutate func(map[string]interface{})
	}{
		{"missing title", func(v map[string]interface{}) { delete(v, "title") }},
		{"empty title", func(v map[string]interface{}) { v["title"] = "" }},
		{"long title", func(v map[string]interface{}) { v["title"] = strings.Repeat("x", 101) }},
		{"too many features", func(v map[string]interface{}) {
			features := make([]interface{}, 11)
			for i := range features {
				features[i] = "feature"
			}
			v["features"] = features
		}},
		{"subsection without subtitle", func(v map[string]interface{}) {
			v["serviceDefinition"] = []interface{}{map[string]interface{}{"content": "text"}}
		}},
		{"non numeric lot", func(v map[string]interface{}) { v["lot"] = "three" }},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			vars := validVariables()
			tt.mutate(vars)
			_, err := h.parseInput(createMockJob(2, vars))
			require.Error(t, err)
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrCodeContentValidationFailed, stdErr.Code)
			assert.False(t, stdErr.Retryable)
		})
	}
}

func TestHandler_ExecuteWithPlacement(t *testing.T) {
	pub := &MockPublisher{}
	h := newTestHandler(t, pub)

	input, err := h.parseInput(createMockJob(1, validVariables()))
	require.NoError(t, err)

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(req publisher.Request) bool {
		return req.Placement != nil &&
			req.Placement.FrameworkVersion == "15" &&
			req.Placement.Lot == "3" &&
			req.Placement.ServiceName == "AI Security" &&
			req.Placement.Draft &&
			req.Owner == "Jane Smith" &&
			req.Payload.Title == "AI Security Assessment"
	})).Return(&publisher.Result{
		GenerationID: "gen-1",
		Filename:     "PA GC15 SERVICE DESC AI Security_draft.docx",
		WordKey:      "GCloud 15/PA Services/Cloud Support Services LOT 3/AI_Security/PA GC15 SERVICE DESC AI Security_draft.docx",
		NewProposal:  true,
		Warnings:     []string{"image: fetch failed"},
	}, nil)

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, output.DocumentGenerated)
	assert.True(t, output.Draft)
	assert.True(t, output.NewProposal)
	assert.Equal(t, "gen-1", output.GenerationID)
	assert.Equal(t, []string{"image: fetch failed"}, output.Warnings)
	pub.AssertExpectations(t)
}

func TestHandler_ExecuteWithoutServiceName(t *testing.T) {
	pub := &MockPublisher{}
	h := newTestHandler(t, pub)

	vars := validVariables()
	delete(vars, "serviceName")
	input, err := h.parseInput(createMockJob(1, vars))
	require.NoError(t, err)

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(req publisher.Request) bool {
		return req.Placement == nil
	})).Return(&publisher.Result{WordKey: "generated/AI_Security_Assessment_0a1b2c3d.docx"}, nil)

	output, err := h.Execute(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "generated/AI_Security_Assessment_0a1b2c3d.docx", output.WordKey)
	pub.AssertExpectations(t)
}

func TestHandler_ExecutePublishFailure(t *testing.T) {
	pub := &MockPublisher{}
	h := newTestHandler(t, pub)

	input, err := h.parseInput(createMockJob(1, validVariables()))
	require.NoError(t, err)

	locked := errors.NewDocumentLockedError("key")
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, locked)

	output, err := h.Execute(context.Background(), input)
	assert.Nil(t, output)
	assert.ErrorIs(t, err, locked)
	assert.Equal(t, string(errors.ErrCodeDocumentLocked), extractErrorCode(err))
	assert.Equal(t, "UNKNOWN_ERROR", extractErrorCode(stderrors.New("plain")))
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 7, Timeout: 90000},
		},
		Docgen: config.DocgenConfig{FrameworkVersion: "14", Lot: "2"},
	}

	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 7, cfg.MaxJobsActive)
	assert.Equal(t, 90*time.Second, cfg.Timeout)
	assert.Equal(t, "14", cfg.FrameworkVersion)
	assert.Equal(t, "2", cfg.Lot)

	custom := &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second}
	assert.Same(t, custom, createConfigFromAppConfig(appCfg, custom))
	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}
