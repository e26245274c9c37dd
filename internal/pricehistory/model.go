package pricehistory

import (
	"context"
	"regexp"
	"strconv"
	"time"
)

// Record is one competitor price observation. Records are append-only.
type Record struct {
	ID             int64     `json:"id"`
	TargetEntityID string    `json:"targetEntityId"`
	AnalysisID     string    `json:"analysisId"`
	CompetitorName string    `json:"competitorName"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// Repo persists price observations.
type Repo interface {
	Append(ctx context.Context, rec Record) (Record, error)
	ListByEntity(ctx context.Context, targetEntityID string, limit int) ([]Record, error)
}

var nonPriceChars = regexp.MustCompile(`[^0-9.]`)

// NormalizePrice strips everything except digits and dots and parses the rest.
// Malformed or empty input yields 0.
func NormalizePrice(raw string) float64 {
	cleaned := nonPriceChars.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
