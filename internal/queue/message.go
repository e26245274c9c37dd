package queue

import (
	"encoding/json"
	"time"
)

// Pipeline steps carried by queue messages.
const (
	StepSearch  = "search"
	StepAnalyze = "analyze"
	StepSave    = "save"
)

// MessageVersion is the current payload schema version.
const MessageVersion = 1

// Message asks a worker to run one pipeline step for an analysis.
type Message struct {
	AnalysisID string `json:"analysisId"`
	Step       string `json:"step"`
	RequestID  string `json:"requestId"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewMessage builds a message stamped with the current time and schema version.
func NewMessage(analysisID, step, requestID string) Message {
	return Message{
		AnalysisID: analysisID,
		Step:       step,
		RequestID:  requestID,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// ValidStep reports whether step names a pipeline step.
func ValidStep(step string) bool {
	switch step {
	case StepSearch, StepAnalyze, StepSave:
		return true
	}
	return false
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
