package workerproc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/queue"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingRunner) Run(ctx context.Context, analysisID, step string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, analysisID+":"+step)
	return r.err
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func encode(t *testing.T, msg queue.Message) string {
	t.Helper()
	payload, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(payload)
}

func TestParseMessageValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want func(error) bool
	}{
		{"empty", "  ", func(err error) bool { _, ok := err.(ErrEmptyBody); return ok }},
		{"invalid json", "{", func(err error) bool { _, ok := err.(ErrDecode); return ok }},
		{"missing id", `{"step":"search"}`, func(err error) bool { _, ok := err.(ErrMissingAnalysisID); return ok }},
		{"unknown step", `{"analysisId":"a-1","step":"publish"}`, func(err error) bool { _, ok := err.(ErrUnknownStep); return ok }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseMessage(tc.body)
			if !tc.want(err) {
				t.Fatalf("unexpected error %T: %v", err, err)
			}
			if !Unrecoverable(err) {
				t.Fatalf("expected %T to be unrecoverable", err)
			}
		})
	}
}

func TestHandleMessageDispatchesStep(t *testing.T) {
	runner := &recordingRunner{}
	body := encode(t, queue.NewMessage("a-1", queue.StepAnalyze, "req-1"))

	if err := HandleMessage(context.Background(), runner, body); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(runner.calls) != 1 || runner.calls[0] != "a-1:analyze" {
		t.Fatalf("unexpected calls: %v", runner.calls)
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	runner := &recordingRunner{err: errors.New("db down")}
	body := encode(t, queue.NewMessage("a-1", queue.StepSave, "req-1"))

	err := HandleMessage(context.Background(), runner, body)
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.Step != queue.StepSave {
		t.Fatalf("expected ErrProcess for save, got %v", err)
	}
	if Unrecoverable(err) {
		t.Fatalf("transient failures must be redelivered")
	}
}

func TestUnrecoverableMissingAnalysis(t *testing.T) {
	runner := &recordingRunner{err: fmt.Errorf("load: %w", analyses.ErrNotFound)}
	body := encode(t, queue.NewMessage("gone", queue.StepSearch, ""))

	if err := HandleMessage(context.Background(), runner, body); !Unrecoverable(err) {
		t.Fatalf("missing analysis should be unrecoverable, got %v", err)
	}
}

func TestConsumeDrainsUntilClosed(t *testing.T) {
	q := queue.NewMemoryQueue(8)
	runner := &recordingRunner{}
	for i := 0; i < 3; i++ {
		if err := q.Send(context.Background(), queue.NewMessage(fmt.Sprintf("a-%d", i), queue.StepSearch, "")); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Consume(ctx, q, runner, 2) }()

	deadline := time.After(3 * time.Second)
	for runner.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 runs, got %d", runner.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
	q.Close()
	if err := <-done; err != nil {
		t.Fatalf("Consume: %v", err)
	}
}
