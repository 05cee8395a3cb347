package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client used by SQSSink.
type SQSAPI interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink publishes messages to an SQS queue.
type SQSSink struct {
	client   SQSAPI
	queueURL string
}

// SQSSinkOption configures an SQSSink.
type SQSSinkOption func(*SQSSink)

// WithSQSClient sets a custom SQS client (useful for testing).
func WithSQSClient(c SQSAPI) SQSSinkOption {
	return func(s *SQSSink) { s.client = c }
}

// NewSQSSink creates an SQS sink for queueURL.
func NewSQSSink(ctx context.Context, queueURL string, opts ...SQSSinkOption) (*SQSSink, error) {
	if queueURL == "" {
		return nil, errors.New("SQS queue URL required")
	}
	s := &SQSSink{queueURL: queueURL}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		s.client = sqs.NewFromConfig(cfg)
	}
	return s, nil
}

// Name returns the sink identifier.
func (s *SQSSink) Name() string { return "sqs" }

// Send publishes msg as a JSON body tagged with batch and level attributes.
func (s *SQSSink) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(data)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"batch_id": {DataType: aws.String("String"), StringValue: aws.String(msg.BatchID)},
			"level":    {DataType: aws.String("String"), StringValue: aws.String(string(msg.Level))},
		},
	})
	if err != nil {
		return fmt.Errorf("sending to SQS: %w", err)
	}
	return nil
}
