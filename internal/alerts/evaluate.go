package alerts

import (
	"fmt"
	"math"
	"strings"
)

// Notification is a composed price-drop alert.
type Notification struct {
	To      string  `json:"to"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	DiffPct float64 `json:"diffPct"`
}

// Evaluate decides whether a competitor undercuts ownPrice by at least thresholdPct.
// A competitor priced above ownPrice never triggers an alert.
func Evaluate(ownPrice float64, competitorName string, competitorPrice, thresholdPct float64, notifyEmail, productName string) (Notification, bool) {
	if strings.TrimSpace(notifyEmail) == "" || ownPrice <= 0 {
		return Notification{}, false
	}
	diff := (ownPrice - competitorPrice) / ownPrice * 100
	if diff < thresholdPct {
		return Notification{}, false
	}
	diff = math.Round(diff*100) / 100

	subject := fmt.Sprintf("Price Alert: %s is cheaper at %s", productName, competitorName)
	body := fmt.Sprintf("Alert!\n\nYour Product: %s\nYour Price: %s\n\nCompetitor: %s\nCompetitor Price: %s\nDifference: %.2f%%\n\nLogin to view details.",
		productName,
		formatPrice(ownPrice),
		competitorName,
		formatPrice(competitorPrice),
		diff,
	)
	return Notification{
		To:      notifyEmail,
		Subject: subject,
		Body:    body,
		DiffPct: diff,
	}, true
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
