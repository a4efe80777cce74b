package models

// Route is a driving path between two coordinates as reported by the routing service.
// Path is ordered from origin to destination and is always in [lat, lng] order.
type Route struct {
	Path            []Coordinates `json:"path"`
	DistanceMeters  float64       `json:"distanceMeters"`
	DurationSeconds float64       `json:"durationSeconds"`
}

// RiskAssessment is the classification returned by the prediction backend.
// Neither field is validated locally.
type RiskAssessment struct {
	RiskLevel string  `json:"riskLevel"`
	Score     float64 `json:"score"`
}
