package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type fakeSQSClient struct {
	input *sqs.SendMessageInput
	err   error
}

func (f *fakeSQSClient) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-123")}, nil
}

func TestSQSPublisherPublishSuccess(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://example.com/queue",
		client:   client,
		log:      noopLogger,
	}

	if err := pub.Publish(context.Background(), testDelivery()); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if client.input == nil {
		t.Fatalf("client was not called")
	}
	if got := aws.ToString(client.input.QueueUrl); got != "https://example.com/queue" {
		t.Fatalf("QueueUrl = %s", got)
	}
	attr, ok := client.input.MessageAttributes["report_filename"]
	if !ok || aws.ToString(attr.StringValue) != "feed.csv" {
		t.Fatalf("report_filename attribute missing or wrong: %#v", attr)
	}
	if rows := client.input.MessageAttributes["rows"]; aws.ToString(rows.DataType) != "Number" || aws.ToString(rows.StringValue) != "1" {
		t.Fatalf("rows attribute wrong: %#v", rows)
	}
	body := aws.ToString(client.input.MessageBody)
	if !strings.Contains(body, `"filename":"feed.csv"`) || !strings.Contains(body, `Source,Date,Title,Description,Link`) {
		t.Fatalf("MessageBody missing report: %s", body)
	}
}

func TestSQSPublisherPublishError(t *testing.T) {
	client := &fakeSQSClient{err: errors.New("boom")}
	pub := &sqsPublisher{queueURL: "https://example.com/queue", client: client, log: noopLogger}

	if err := pub.Publish(context.Background(), testDelivery()); err == nil {
		t.Fatalf("expected error from Publish")
	}
}

func TestSQSPublisherRejectsOversizedReport(t *testing.T) {
	client := &fakeSQSClient{}
	pub := &sqsPublisher{queueURL: "https://example.com/queue", client: client, log: noopLogger}

	d := testDelivery()
	d.Body = []byte(strings.Repeat("x", sqsMaxMessageBytes))
	if err := pub.Publish(context.Background(), d); err == nil {
		t.Fatalf("expected size error")
	}
	if client.input != nil {
		t.Fatalf("oversized message must not be sent")
	}
}
