package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"competitor-knowledge/internal/bootstrap"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/telemetry"
	"competitor-knowledge/internal/workerproc"
)

const defaultSQSRegion = "us-east-1"

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, os.Getenv("LOG_LEVEL"))
	defer telemetry.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(cfg)
	if err != nil {
		fatal("worker.bootstrap_failed", err)
	}
	defer app.Close()

	switch cfg.QueueBackend {
	case "sqs":
		runSQS(ctx, cfg, app.Pipeline)
	case "redis":
		telemetry.Info("worker.started", map[string]any{"backend": "redis", "concurrency": cfg.WorkerConcurrency})
		if err := workerproc.Consume(ctx, app.Receiver, app.Pipeline, cfg.WorkerConcurrency); err != nil {
			fatal("worker.consume_failed", err)
		}
	default:
		fatal("worker.unsupported_backend", errors.New("the memory queue is consumed inside the api process; set QUEUE_BACKEND=sqs or redis"))
	}
	telemetry.Info("worker.stopped", nil)
}

func runSQS(ctx context.Context, cfg config.Config, runner workerproc.StepRunner) {
	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	if queueURL == "" {
		fatal("worker.config_invalid", errors.New("SQS_QUEUE_URL is required"))
	}
	region := cfg.AWSRegion
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		fatal("worker.aws_config_failed", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	concurrency := max(1, cfg.WorkerConcurrency)
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	// Steps already running finish on their own context after shutdown starts.
	stepCtx := context.WithoutCancel(ctx)

	telemetry.Info("worker.started", map[string]any{
		"backend":            "sqs",
		"queue_url":          queueURL,
		"concurrency":        concurrency,
		"visibility_seconds": cfg.SQSVisibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(cfg.SQSVisibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncAnalysisJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(stepCtx, sqsClient, queueURL, runner, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": cfg.ShutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(cfg.ShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", nil)
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage runs one SQS message. Messages are deleted on success or when they can never succeed;
// anything else is left for redelivery after the visibility timeout.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, runner workerproc.StepRunner, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded.AnalysisID, decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.decode_failed", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded.AnalysisID, decoded.RequestID) {
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		}
		return
	}

	fields := baseFields(msg, decoded.AnalysisID, decoded.RequestID)
	fields["step"] = decoded.Step
	telemetry.Info("worker.analysis.received", fields)

	if err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, decoded), runner, body); err != nil {
		fields["error"] = err.Error()
		if workerproc.Unrecoverable(err) {
			telemetry.Error("worker.analysis.unrecoverable", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded.AnalysisID, decoded.RequestID) {
				metrics.IncAnalysisJobsDeletedUnrecoverable()
			}
			return
		}
		telemetry.Error("worker.analysis.failed", fields)
		metrics.IncAnalysisJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.AnalysisID, decoded.RequestID) {
		telemetry.Info("worker.analysis.completed", fields)
		metrics.IncAnalysisJobsCompleted()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, analysisID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, analysisID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.analysis.delete_failed", fields)
		return false
	}
	return true
}

func baseFields(msg sqstypes.Message, analysisID, requestID string) map[string]any {
	fields := map[string]any{
		"analysis_id":    analysisID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func fatal(event string, err error) {
	telemetry.Error(event, map[string]any{"error": err.Error()})
	telemetry.Sync()
	os.Exit(1)
}
