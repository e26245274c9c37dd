package analyses

import (
	"strings"
	"time"

	"competitor-knowledge/internal/search"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Current step values; empty unless the analysis is processing.
const (
	StepNone      = ""
	StepSearching = "searching"
	StepAnalyzing = "analyzing"
	StepSaving    = "saving"
)

// TotalSteps is the number of steps in the standard pipeline.
const TotalSteps = 3

// Trigger sources recorded on an analysis.
const (
	TriggerManual        = "manual"
	TriggerRetry         = "retry"
	TriggerScheduled     = "scheduled"
	TriggerPriceChange   = "price_change"
	TriggerStockChange   = "stock_change"
	TriggerProductUpdate = "product_update"
	TriggerCLI           = "cli"
)

// NormalizeTrigger returns trigger when it is a known source and TriggerManual otherwise.
func NormalizeTrigger(trigger string) string {
	switch t := strings.ToLower(strings.TrimSpace(trigger)); t {
	case TriggerManual, TriggerRetry, TriggerScheduled, TriggerPriceChange,
		TriggerStockChange, TriggerProductUpdate, TriggerCLI:
		return t
	}
	return TriggerManual
}

// Analysis is one competitor analysis run for a catalog entity.
// At most one of SearchResults, AIResults and FinalData is populated at a time.
type Analysis struct {
	ID             string          `json:"id"`
	TargetEntityID string          `json:"targetEntityId"`
	Status         string          `json:"status"`
	CurrentStep    string          `json:"currentStep"`
	Progress       int             `json:"progress"`
	TotalSteps     int             `json:"totalSteps"`
	TriggerSource  string          `json:"triggerSource"`
	Provider       string          `json:"provider"`
	Model          string          `json:"model"`
	SearchResults  []search.Result `json:"searchResults,omitempty"`
	AIResults      map[string]any  `json:"aiResults,omitempty"`
	FinalData      map[string]any  `json:"finalData,omitempty"`
	ErrorCode      string          `json:"errorCode,omitempty"`
	ErrorMessage   *string         `json:"errorMessage,omitempty"`
	ErrorTrace     *string         `json:"-"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// Terminal reports whether the analysis reached completed or failed.
func (a Analysis) Terminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// Progress is the polling view of an analysis.
type Progress struct {
	Status      string `json:"status"`
	CurrentStep string `json:"currentStep"`
	Progress    int    `json:"progress"`
	TotalSteps  int    `json:"totalSteps"`
	Percentage  int    `json:"percentage"`
	Error       string `json:"error,omitempty"`
}

// ProgressOf derives the polling view from a record.
func ProgressOf(a Analysis) Progress {
	total := a.TotalSteps
	if total <= 0 {
		total = TotalSteps
	}
	p := Progress{
		Status:      a.Status,
		CurrentStep: a.CurrentStep,
		Progress:    a.Progress,
		TotalSteps:  total,
		Percentage:  a.Progress * 100 / total,
	}
	if a.Status == StatusCompleted {
		p.Percentage = 100
	}
	if a.Status == StatusFailed && a.ErrorMessage != nil {
		p.Error = *a.ErrorMessage
	}
	return p
}
