package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/queue"
)

// StepRunner executes one pipeline step for an analysis.
type StepRunner interface {
	Run(ctx context.Context, analysisID, step string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{BodyLen: 0, BodySHA: ""}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingAnalysisID indicates a message missing the analysis id.
type ErrMissingAnalysisID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingAnalysisID) Error() string { return "missing analysis id" }

// ErrUnknownStep indicates a message naming no pipeline step.
type ErrUnknownStep struct {
	Meta       MessageMeta
	AnalysisID string
	RequestID  string
	Step       string
}

func (e ErrUnknownStep) Error() string { return "unknown step " + `"` + e.Step + `"` }

// ErrProcess indicates the step could not run or its outcome could not be recorded.
type ErrProcess struct {
	AnalysisID string
	RequestID  string
	Step       string
	Err        error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process " + e.Step
	}
	return "process " + e.Step + ": " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.AnalysisID) == "" {
		return msg, meta, ErrMissingAnalysisID{Meta: meta, RequestID: msg.RequestID}
	}
	if !queue.ValidStep(msg.Step) {
		return msg, meta, ErrUnknownStep{Meta: meta, AnalysisID: msg.AnalysisID, RequestID: msg.RequestID, Step: msg.Step}
	}
	return msg, meta, nil
}

type parsedMessageKey struct{}

// WithParsedMessage stores a decoded message in the context for reuse.
func WithParsedMessage(ctx context.Context, msg queue.Message) context.Context {
	return context.WithValue(ctx, parsedMessageKey{}, msg)
}

func parsedMessageFromContext(ctx context.Context) (queue.Message, bool) {
	if ctx == nil {
		return queue.Message{}, false
	}
	msg, ok := ctx.Value(parsedMessageKey{}).(queue.Message)
	return msg, ok
}

// HandleMessage parses, validates, and runs the step named by a message payload.
func HandleMessage(ctx context.Context, runner StepRunner, body string) error {
	if runner == nil {
		return errors.New("pipeline not configured")
	}

	msg, ok := parsedMessageFromContext(ctx)
	if !ok {
		var err error
		msg, _, err = ParseMessage(body)
		if err != nil {
			return err
		}
	}

	if strings.TrimSpace(msg.AnalysisID) == "" {
		return ErrMissingAnalysisID{Meta: ComputeMeta(body), RequestID: msg.RequestID}
	}

	ctxWithRequest := analyses.WithRequestID(ctx, msg.RequestID)
	if err := runner.Run(ctxWithRequest, msg.AnalysisID, msg.Step); err != nil {
		return ErrProcess{AnalysisID: msg.AnalysisID, RequestID: msg.RequestID, Step: msg.Step, Err: err}
	}
	return nil
}

// Unrecoverable reports whether redelivering the message can never succeed.
func Unrecoverable(err error) bool {
	if err == nil {
		return false
	}
	switch err.(type) {
	case ErrEmptyBody, ErrDecode, ErrMissingAnalysisID, ErrUnknownStep:
		return true
	}
	return errors.Is(err, analyses.ErrNotFound) || errors.Is(err, analyses.ErrUnknownStep)
}
