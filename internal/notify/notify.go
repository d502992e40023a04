// Package notify emails the configured recipients when a service
// description is published.
package notify

import (
	"context"
	"fmt"
	"strings"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const notificationType = "document_published"

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type Config struct {
	Enabled    bool
	FromEmail  string
	Recipients []string
}

// Published describes one stored document.
type Published struct {
	ServiceName  string
	Owner        string
	WordKey      string
	PDFRequested bool
	Draft        bool
	Warnings     []string
}

type Mailer struct {
	client SESService
	config Config
	logger logger.Logger
}

func NewMailer(client SESService, cfg Config, log logger.Logger) *Mailer {
	return &Mailer{
		client: client,
		config: cfg,
		logger: log.WithFields(map[string]interface{}{"component": "notify"}),
	}
}

// NotifyPublished sends one email to every recipient. It reports whether
// anything was sent; a disabled mailer or an empty recipient list is not
// an error.
func (m *Mailer) NotifyPublished(ctx context.Context, p Published) (bool, error) {
	if !m.config.Enabled || len(m.config.Recipients) == 0 {
		return false, nil
	}

	subject, body := render(p)
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: m.config.Recipients,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(m.config.FromEmail),
	})
	if err != nil {
		return false, errors.NewNotificationSendFailedError(notificationType, err)
	}

	m.logger.Info("Publish notification sent", map[string]interface{}{
		"service":    p.ServiceName,
		"recipients": len(m.config.Recipients),
	})
	return true, nil
}

func render(p Published) (string, string) {
	state := "final"
	if p.Draft {
		state = "draft"
	}
	subject := fmt.Sprintf("Service description %s: %s", state, p.ServiceName)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Service: %s\n", p.ServiceName)
	if p.Owner != "" {
		fmt.Fprintf(&sb, "Owner: %s\n", p.Owner)
	}
	fmt.Fprintf(&sb, "Document: %s\n", p.WordKey)
	if p.PDFRequested {
		sb.WriteString("A PDF copy has been requested and will appear next to the document.\n")
	}
	if len(p.Warnings) > 0 {
		sb.WriteString("\nGenerated with warnings:\n")
		for _, w := range p.Warnings {
			fmt.Fprintf(&sb, "- %s\n", w)
		}
	}
	return subject, sb.String()
}
