package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/queue"
)

type fakeRunner struct {
	errs map[string]error
}

func (f fakeRunner) Run(ctx context.Context, analysisID, step string) error {
	return f.errs[analysisID]
}

func body(t *testing.T, id string) string {
	t.Helper()
	raw, err := queue.EncodeMessage(queue.NewMessage(id, queue.StepSearch, "req-"+id))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(raw)
}

func TestProcessRecordsReportsOnlyRetryableFailures(t *testing.T) {
	runner := fakeRunner{errs: map[string]error{
		"a-retry": errors.New("db down"),
		"a-gone":  analyses.ErrNotFound,
	}}
	records := []events.SQSMessage{
		{MessageId: "m-ok", Body: body(t, "a-ok")},
		{MessageId: "m-retry", Body: body(t, "a-retry")},
		{MessageId: "m-gone", Body: body(t, "a-gone")},
		{MessageId: "m-bad", Body: "{bad-json"},
	}

	failures := processRecords(context.Background(), runner, records)

	if len(failures) != 1 || failures[0].ItemIdentifier != "m-retry" {
		t.Fatalf("expected only m-retry to be retried, got %+v", failures)
	}
}
