package llm

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Stock statuses reported for competitors.
const (
	StockInStock    = "in_stock"
	StockOutOfStock = "out_of_stock"
	StockUnknown    = "unknown"
)

// Competitor is one competitor observation returned by the model.
type Competitor struct {
	Name            string `json:"name"`
	URL             string `json:"url,omitempty"`
	Price           string `json:"price,omitempty"`
	Currency        string `json:"currency,omitempty"`
	StockStatus     string `json:"stock_status"`
	ComparisonNotes string `json:"comparison_notes,omitempty"`
}

// Insights is the typed view of a parsed analysis object.
type Insights struct {
	Competitors []Competitor
}

// InsightsFromObject converts the parsed model output into typed competitor entries.
// Entries that are not objects are skipped; numeric prices are rendered as strings.
func InsightsFromObject(obj map[string]any) Insights {
	raw, _ := obj["competitors"].([]any)
	out := Insights{Competitors: make([]Competitor, 0, len(raw))}
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Competitors = append(out.Competitors, Competitor{
			Name:            stringField(m["name"]),
			URL:             stringField(m["url"]),
			Price:           stringField(m["price"]),
			Currency:        strings.ToUpper(stringField(m["currency"])),
			StockStatus:     normalizeStock(stringField(m["stock_status"])),
			ComparisonNotes: stringField(m["comparison_notes"]),
		})
	}
	return out
}

func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

func normalizeStock(s string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")) {
	case StockInStock, "instock", "available":
		return StockInStock
	case StockOutOfStock, "outofstock", "sold_out", "unavailable":
		return StockOutOfStock
	default:
		return StockUnknown
	}
}
