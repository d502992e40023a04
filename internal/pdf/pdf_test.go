package pdf

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

const topic = "arn:aws:sns:eu-west-2:123456789012:docx-to-pdf"

func TestRequestConversion(t *testing.T) {
	var published *sns.PublishInput
	mock := &MockSNSService{
		PublishFunc: func(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
			published = params
			return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
		},
	}
	r := NewRequester(mock, topic, logger.NewTestLogger(t))

	id, err := r.RequestConversion(context.Background(), "f/PA GC15 SERVICE DESC X.docx", "f/PA GC15 SERVICE DESC X.pdf", "s3")
	require.NoError(t, err)
	assert.Len(t, id, 26, "ULID")

	require.NotNil(t, published)
	assert.Equal(t, topic, aws.ToString(published.TopicArn))
	assert.Equal(t, eventType, aws.ToString(published.MessageAttributes["event_type"].StringValue))

	var req Request
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(published.Message)), &req))
	assert.Equal(t, id, req.RequestID)
	assert.Equal(t, "f/PA GC15 SERVICE DESC X.docx", req.WordKey)
	assert.Equal(t, "f/PA GC15 SERVICE DESC X.pdf", req.PDFKey)
	assert.Equal(t, "s3", req.StorageBackend)
	assert.NotEmpty(t, req.RequestedAt)
}

func TestRequestConversionFailure(t *testing.T) {
	mock := &MockSNSService{
		PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
			return nil, stderrors.New("throttled")
		},
	}
	r := NewRequester(mock, topic, logger.NewTestLogger(t))

	_, err := r.RequestConversion(context.Background(), "a.docx", "a.pdf", "local")
	require.Error(t, err)
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodePDFRequestFailed, stdErr.Code)
	assert.False(t, stdErr.Retryable, "a missed PDF is a warning, not a retry")
}
