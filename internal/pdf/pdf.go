// Package pdf asks the external converter to render a stored Word document
// as PDF. Conversion happens asynchronously; the request is fire and forget.
package pdf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gcloud-docgen/internal/common/errors"
	"gcloud-docgen/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/oklog/ulid/v2"
)

const eventType = "docx.convert.requested"

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Request is the message body the converter consumes.
type Request struct {
	RequestID      string `json:"request_id"`
	WordKey        string `json:"word_key"`
	PDFKey         string `json:"pdf_key"`
	StorageBackend string `json:"storage_backend"`
	RequestedAt    string `json:"requested_at"`
}

type Requester struct {
	client   SNSService
	topicARN string
	logger   logger.Logger
}

func NewRequester(client SNSService, topicARN string, log logger.Logger) *Requester {
	return &Requester{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "pdf"}),
	}
}

// RequestConversion publishes one conversion request and returns its id.
func (r *Requester) RequestConversion(ctx context.Context, wordKey, pdfKey, backend string) (string, error) {
	req := Request{
		RequestID:      ulid.Make().String(),
		WordKey:        wordKey,
		PDFKey:         pdfKey,
		StorageBackend: backend,
		RequestedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.NewPDFRequestFailedError(wordKey, fmt.Errorf("marshal request: %w", err))
	}

	out, err := r.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(r.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		return "", errors.NewPDFRequestFailedError(wordKey, err)
	}

	r.logger.Info("PDF conversion requested", map[string]interface{}{
		"requestId": req.RequestID,
		"messageId": aws.ToString(out.MessageId),
		"wordKey":   wordKey,
		"pdfKey":    pdfKey,
	})
	return req.RequestID, nil
}
