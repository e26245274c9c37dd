package alerts

import (
	"strings"
	"testing"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		own       float64
		comp      float64
		threshold float64
		email     string
		wantFire  bool
		wantDiff  float64
	}{
		{name: "undercut above threshold", own: 100, comp: 80, threshold: 10, email: "o@x.io", wantFire: true, wantDiff: 20},
		{name: "undercut below threshold", own: 100, comp: 95, threshold: 10, email: "o@x.io", wantFire: false},
		{name: "exact threshold", own: 100, comp: 90, threshold: 10, email: "o@x.io", wantFire: true, wantDiff: 10},
		{name: "competitor more expensive", own: 100, comp: 150, threshold: 0, email: "o@x.io", wantFire: false},
		{name: "zero own price", own: 0, comp: 0, threshold: -100, email: "o@x.io", wantFire: false},
		{name: "negative own price", own: -5, comp: 1, threshold: 0, email: "o@x.io", wantFire: false},
		{name: "no email", own: 100, comp: 10, threshold: 10, email: "  ", wantFire: false},
		{name: "rounding", own: 30, comp: 20, threshold: 10, email: "o@x.io", wantFire: true, wantDiff: 33.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, fired := Evaluate(tt.own, "Rival", tt.comp, tt.threshold, tt.email, "Widget")
			if fired != tt.wantFire {
				t.Fatalf("fired = %v, want %v", fired, tt.wantFire)
			}
			if fired && n.DiffPct != tt.wantDiff {
				t.Fatalf("diff = %v, want %v", n.DiffPct, tt.wantDiff)
			}
		})
	}
}

func TestEvaluateComposesMessage(t *testing.T) {
	n, fired := Evaluate(100, "Rival Store", 70, 10, "owner@example.com", "Widget Pro")
	if !fired {
		t.Fatalf("expected alert")
	}
	if n.To != "owner@example.com" {
		t.Fatalf("unexpected recipient %q", n.To)
	}
	if n.Subject != "Price Alert: Widget Pro is cheaper at Rival Store" {
		t.Fatalf("unexpected subject %q", n.Subject)
	}
	for _, want := range []string{"Your Price: 100.00", "Competitor Price: 70.00", "Difference: 30.00%"} {
		if !strings.Contains(n.Body, want) {
			t.Fatalf("body missing %q:\n%s", want, n.Body)
		}
	}
}
