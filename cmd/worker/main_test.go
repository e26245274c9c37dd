package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/queue"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRunner struct {
	err   error
	steps []string
}

func (f *fakeRunner) Run(ctx context.Context, analysisID, step string) error {
	_ = ctx
	f.steps = append(f.steps, analysisID+":"+step)
	return f.err
}

func sqsMessage(t *testing.T, id, receipt string, msg queue.Message) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqsMessage(t, "m1", "r1", queue.NewMessage("analysis-1", queue.StepAnalyze, "req-1"))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(runner.steps) != 1 || runner.steps[0] != "analysis-1:analyze" {
		t.Fatalf("unexpected steps: %v", runner.steps)
	}
}

func TestWorkerDoesNotDeleteOnFailure(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: errors.New("boom")}
	msg := sqsMessage(t, "m2", "r2", queue.NewMessage("analysis-2", queue.StepSearch, "req-2"))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesWhenAnalysisMissing(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: analyses.ErrNotFound}
	msg := sqsMessage(t, "m4", "r4", queue.NewMessage("analysis-4", queue.StepSave, "req-4"))

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete of unrecoverable message, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m3"),
		ReceiptHandle: aws.String("r3"),
		Body:          aws.String("{bad-json"),
	}

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
	if len(runner.steps) != 0 {
		t.Fatalf("runner should not be called, got %v", runner.steps)
	}
}

func TestWorkerDeletesUnknownStep(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqsMessage(t, "m5", "r5", queue.Message{AnalysisID: "analysis-5", Step: "publish"})

	handleMessage(context.Background(), client, "queue", runner, msg)

	if len(client.deleted) != 1 || len(runner.steps) != 0 {
		t.Fatalf("expected delete without run, deleted=%d steps=%v", len(client.deleted), runner.steps)
	}
}
