package models

import (
	"fmt"
	"math"
	"strconv"
)

const (
	metersPerKm      = 1000
	secondsPerMinute = 60
	minutesPerHour   = 60
)

// MetersToKm converts a distance reported by the routing service to kilometers.
func MetersToKm(meters float64) float64 {
	return meters / metersPerKm
}

// SecondsToMinutes converts a duration reported by the routing service to minutes.
func SecondsToMinutes(seconds float64) float64 {
	return seconds / secondsPerMinute
}

// FormatDistance renders kilometers rounded to 0.1 km, e.g. "150 km" or "12.3 km".
func FormatDistance(km float64) string {
	rounded := math.Round(km*10) / 10
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " km"
}

// FormatDuration renders whole minutes as hours and minutes, e.g. "3h 0m".
func FormatDuration(minutes float64) string {
	total := int(math.Round(minutes))
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%dh %dm", total/minutesPerHour, total%minutesPerHour)
}

// FormatRisk renders a risk assessment, e.g. "Medium (0.42)".
func FormatRisk(risk *RiskAssessment) string {
	if risk == nil {
		return ""
	}
	return fmt.Sprintf("%s (%.2f)", risk.RiskLevel, risk.Score)
}

// Summarize fills the display strings of a plan from its converted metrics.
func Summarize(distanceKm, durationMin float64, risk *RiskAssessment) Summary {
	return Summary{
		Distance: FormatDistance(distanceKm),
		Duration: FormatDuration(durationMin),
		Risk:     FormatRisk(risk),
	}
}
