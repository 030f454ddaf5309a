// Package events delivers membership domain events to downstream consumers
// through SQS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"vonvault/internal/membership"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Message attribute names set on every event.
const (
	AttrEventType = "event_type"
	AttrUserID    = "user_id"
	AttrEventID   = "event_id"
)

// Envelope is the SQS message body. EventID lets consumers drop duplicates
// caused by SQS at-least-once delivery.
type Envelope struct {
	EventID string           `json:"event_id"`
	Event   membership.Event `json:"event"`
}

// SQSPublisher implements membership.Publisher by sending each event as one
// JSON message to a single queue.
type SQSPublisher struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
	newID    func() string
}

var _ membership.Publisher = (*SQSPublisher)(nil)

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSSender, queueURL string, logger *slog.Logger) *SQSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Publish serializes event and sends it to the queue.
func (p *SQSPublisher) Publish(ctx context.Context, event membership.Event) error {
	env := Envelope{EventID: p.newID(), Event: event}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: failed to marshal %s event: %w", event.Type, err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			AttrEventType: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(event.Type)),
			},
			AttrUserID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(event.UserID),
			},
			AttrEventID: {
				DataType:    aws.String("String"),
				StringValue: aws.String(env.EventID),
			},
		},
	}

	if _, err := p.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("events: failed to send %s event to %s: %w", event.Type, p.queueURL, err)
	}

	p.logger.InfoContext(ctx, "domain event published",
		"event_id", env.EventID,
		"event_type", string(event.Type),
		"user_id", event.UserID,
		"investment_id", event.Investment.ID,
	)
	return nil
}
