package cloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// ReceivedMessage is one decoded queue entry. The receipt handle is needed
// to delete the entry once it has been processed.
type ReceivedMessage struct {
	Message       Message
	MessageID     string
	ReceiptHandle string
}

// SendMessage publishes one ingestion message to the configured queue.
func (c *Client) SendMessage(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	body, err := m.encode()
	if err != nil {
		return err
	}
	_, err = c.queueClient().SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.cfg.QueueURL),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return classify("send queue message", err)
	}
	c.log.Debug("sent ingestion message", "ingestion_job_id", m.IngestionJobID, "kb_id", m.KBID)
	return nil
}

// ReceiveMessages long-polls the queue for up to max messages. Malformed
// bodies are logged and skipped; they stay on the queue until the
// visibility timeout expires and will be re-delivered.
func (c *Client) ReceiveMessages(ctx context.Context, max int32, waitSeconds int32) ([]ReceivedMessage, error) {
	out, err := c.queueClient().ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.cfg.QueueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     waitSeconds,
	})
	if err != nil {
		return nil, classify("receive queue messages", err)
	}

	received := make([]ReceivedMessage, 0, len(out.Messages))
	for _, raw := range out.Messages {
		m, decodeErr := decodeMessage(aws.ToString(raw.Body))
		if decodeErr != nil {
			c.log.Warn("skipping malformed queue message",
				"message_id", aws.ToString(raw.MessageId), "error", decodeErr)
			continue
		}
		received = append(received, ReceivedMessage{
			Message:       m,
			MessageID:     aws.ToString(raw.MessageId),
			ReceiptHandle: aws.ToString(raw.ReceiptHandle),
		})
	}
	return received, nil
}

// DeleteMessage acknowledges one queue entry. Deleting an already-expired
// receipt is not an error at the SQS level, which keeps this idempotent.
func (c *Client) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := c.queueClient().DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.cfg.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return classify("delete queue message", err)
	}
	return nil
}
