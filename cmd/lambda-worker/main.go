package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"competitor-knowledge/internal/bootstrap"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/telemetry"
	"competitor-knowledge/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, "")
	built, err := bootstrap.Build(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return events.SQSEventResponse{BatchItemFailures: processRecords(ctx, app.Pipeline, event.Records)}, nil
}

// processRecords reports only retryable failures; unrecoverable messages are acknowledged so they leave the queue.
func processRecords(ctx context.Context, runner workerproc.StepRunner, records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		metrics.IncAnalysisJobsReceived()
		err := workerproc.HandleMessage(ctx, runner, record.Body)
		switch {
		case err == nil:
			metrics.IncAnalysisJobsCompleted()
		case workerproc.Unrecoverable(err):
			metrics.IncAnalysisJobsDeletedUnrecoverable()
			telemetry.Error("lambda_worker.unrecoverable", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
		default:
			metrics.IncAnalysisJobsFailed()
			telemetry.Error("lambda_worker.failed", map[string]any{"sqs_message_id": record.MessageId, "error": err.Error()})
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
