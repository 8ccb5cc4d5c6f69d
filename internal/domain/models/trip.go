package models

import (
	"time"

	"driverdesk/internal/domain"
)

// Trip is the single active trip. ID is empty while idle.
type Trip struct {
	ID        string           `json:"id"`
	Phase     domain.TripPhase `json:"phase"`
	RouteID   string           `json:"route_id"`
	Direction domain.Direction `json:"direction"`
	Deadline  time.Time        `json:"deadline,omitempty"`
}
