package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/shantanubawankar/Stockpricetracker/models"
)

// EvaluateAlerts returns the alerts whose trigger condition is satisfied by
// the quote, in the order they were supplied. Boundaries are inclusive: an
// "above" alert triggers at price >= threshold, a "below" alert at
// price <= threshold. Pure function, no I/O, inputs are not mutated.
func EvaluateAlerts(quote Quote, alerts []models.Alert) []models.Alert {
	price := decimal.NewFromFloat(quote.Price)

	triggered := make([]models.Alert, 0)
	for _, alert := range alerts {
		switch alert.Direction {
		case models.DirectionAbove:
			if price.GreaterThanOrEqual(alert.Threshold) {
				triggered = append(triggered, alert)
			}
		case models.DirectionBelow:
			if price.LessThanOrEqual(alert.Threshold) {
				triggered = append(triggered, alert)
			}
		}
	}
	return triggered
}

// AlertMessage renders the client-facing text for a triggered alert
func AlertMessage(alert models.Alert) string {
	if alert.Direction == models.DirectionBelow {
		return fmt.Sprintf("%s fell ≤ %s", alert.Symbol, alert.Threshold.String())
	}
	return fmt.Sprintf("%s reached ≥ %s", alert.Symbol, alert.Threshold.String())
}
