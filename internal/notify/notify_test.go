package notify

import (
	"context"
	stderrors "errors"
	"testing"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	return m.SendEmailFunc(ctx, params, optFns...)
}

func testConfig() Config {
	return Config{
		Enabled:    true,
		FromEmail:  "noreply@example.com",
		Recipients: []string{"bids@example.com", "owner@example.com"},
	}
}

func TestNotifyPublished(t *testing.T) {
	var sent *ses.SendEmailInput
	mock := &MockSESService{
		SendEmailFunc: func(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			sent = params
			return &ses.SendEmailOutput{MessageId: aws.String("id-1")}, nil
		},
	}
	m := NewMailer(mock, testConfig(), logger.NewTestLogger(t))

	ok, err := m.NotifyPublished(context.Background(), Published{
		ServiceName:  "AI Security",
		Owner:        "Jane Smith",
		WordKey:      "GCloud 15/x/PA GC15 SERVICE DESC AI Security_draft.docx",
		PDFRequested: true,
		Draft:        true,
		Warnings:     []string{"content_inserted: image_fetch (https://x.test/a.png): timeout"},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NotNil(t, sent)
	assert.Equal(t, []string{"bids@example.com", "owner@example.com"}, sent.Destination.ToAddresses)
	assert.Equal(t, "noreply@example.com", aws.ToString(sent.Source))
	assert.Equal(t, "Service description draft: AI Security", aws.ToString(sent.Message.Subject.Data))

	body := aws.ToString(sent.Message.Body.Text.Data)
	assert.Contains(t, body, "Owner: Jane Smith")
	assert.Contains(t, body, "PDF copy has been requested")
	assert.Contains(t, body, "- content_inserted: image_fetch")
}

func TestNotifyPublishedDisabled(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			t.Fatal("no email expected")
			return nil, nil
		},
	}

	cfg := testConfig()
	cfg.Enabled = false
	ok, err := NewMailer(mock, cfg, logger.NewTestLogger(t)).NotifyPublished(context.Background(), Published{ServiceName: "X"})
	require.NoError(t, err)
	assert.False(t, ok)

	cfg = testConfig()
	cfg.Recipients = nil
	ok, err = NewMailer(mock, cfg, logger.NewTestLogger(t)).NotifyPublished(context.Background(), Published{ServiceName: "X"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotifyPublishedFailure(t *testing.T) {
	mock := &MockSESService{
		SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
			return nil, stderrors.New("MessageRejected")
		},
	}
	m := NewMailer(mock, testConfig(), logger.NewTestLogger(t))

	ok, err := m.NotifyPublished(context.Background(), Published{ServiceName: "X", WordKey: "k"})
	assert.False(t, ok)
	stdErr, isStd := errors.AsStandardError(err)
	require.True(t, isStd)
	assert.Equal(t, errors.ErrCodeNotificationSendFailed, stdErr.Code)
}

func TestRenderFinal(t *testing.T) {
	subject, body := render(Published{ServiceName: "AI Security", WordKey: "k.docx"})
	assert.Equal(t, "Service description final: AI Security", subject)
	assert.NotContains(t, body, "Owner:")
	assert.NotContains(t, body, "warnings")
}
