package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// AssignmentResult is the outcome of pairing one incident with one unit at a
// point in time, with the straight-line distance and travel estimate computed
// at assignment time
type AssignmentResult struct {
	IncidentID       string  `json:"incidentID"`
	UnitID           string  `json:"unitID"`
	UnitName         string  `json:"unitName"`
	DistanceKm       float64 `json:"distanceKm"`
	EtaMinutes       int     `json:"etaMinutes"`
	Assigned         bool    `json:"assigned"`
	UnassignedReason string  `json:"unassignedReason,omitempty"`
}

// StatusEvent is the plain notification payload emitted on every committed
// status transition. Delivery and formatting belong to the consumers
type StatusEvent struct {
	EntityKind string             `json:"entityKind"`
	EntityID   string             `json:"entityID"`
	OldStatus  string             `json:"oldStatus"`
	NewStatus  string             `json:"newStatus"`
	OccurredAt primitive.DateTime `json:"occurredAt"`
}

// CoverageGap is a grid point not served by any operational unit
type CoverageGap struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HealthCheckResponse is returned by the health endpoint
type HealthCheckResponse struct {
	Alive bool `json:"alive"`
}
