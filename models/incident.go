package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// IncidentType enumerates the kinds of incidents citizens and field staff
// can report
type IncidentType string

// Incident types
const (
	IncidentFlood                IncidentType = "flood"
	IncidentRescueNeeded         IncidentType = "rescue_needed"
	IncidentInfrastructureDamage IncidentType = "infrastructure_damage"
	IncidentRoadClosure          IncidentType = "road_closure"
	IncidentPowerOutage          IncidentType = "power_outage"
	IncidentWaterContamination   IncidentType = "water_contamination"
	IncidentEvacuationRequired   IncidentType = "evacuation_required"
	IncidentMedicalEmergency     IncidentType = "medical_emergency"
	IncidentOther                IncidentType = "other"
)

// SeverityLevel enumerates incident severities
type SeverityLevel string

// Severity levels
const (
	SeverityLow      SeverityLevel = "low"
	SeverityMedium   SeverityLevel = "medium"
	SeverityHigh     SeverityLevel = "high"
	SeverityCritical SeverityLevel = "critical"
)

// IncidentStatus enumerates the incident lifecycle states
type IncidentStatus string

// Incident statuses
const (
	IncidentReported   IncidentStatus = "reported"
	IncidentVerified   IncidentStatus = "verified"
	IncidentAssigned   IncidentStatus = "assigned"
	IncidentInProgress IncidentStatus = "in_progress"
	IncidentResolved   IncidentStatus = "resolved"
	IncidentClosed     IncidentStatus = "closed"
	IncidentCancelled  IncidentStatus = "cancelled"
)

// Incident holds the structure for the incidents collection in MongoDB
type Incident struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details IncidentDetails    `json:"incident" bson:"incident"`
	Version int32              `json:"__v" bson:"__v"`
}

// IncidentDetails holds the structure for the inner incident details
type IncidentDetails struct {
	Title               string             `json:"title" bson:"title"`
	Description         string             `json:"description" bson:"description"`
	IncidentType        IncidentType       `json:"incidentType" bson:"incidentType"`
	Severity            SeverityLevel      `json:"severity" bson:"severity"`
	Status              IncidentStatus     `json:"status" bson:"status"`
	Latitude            float64            `json:"latitude" bson:"latitude"`
	Longitude           float64            `json:"longitude" bson:"longitude"`
	Address             string             `json:"address" bson:"address"`
	Landmark            string             `json:"landmark" bson:"landmark"`
	AffectedPeopleCount int                `json:"affectedPeopleCount" bson:"affectedPeopleCount"`
	WaterLevel          *float64           `json:"waterLevel" bson:"waterLevel"`
	IsMassCasualty      bool               `json:"isMassCasualty" bson:"isMassCasualty"`
	IsHazmatInvolved    bool               `json:"isHazmatInvolved" bson:"isHazmatInvolved"`
	IsStructuralDamage  bool               `json:"isStructuralDamage" bson:"isStructuralDamage"`
	ReporterID          string             `json:"reporterID" bson:"reporterID"`
	AssignedUnitID      string             `json:"assignedUnitID" bson:"assignedUnitID"`
	AssignedByID        string             `json:"assignedByID" bson:"assignedByID"`
	PriorityScore       int                `json:"priorityScore" bson:"priorityScore"`
	ResolutionMinutes   int                `json:"resolutionMinutes" bson:"resolutionMinutes"`
	CreatedAt           primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt           primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
	VerifiedAt          primitive.DateTime `json:"verifiedAt" bson:"verifiedAt"`
	AssignedAt          primitive.DateTime `json:"assignedAt" bson:"assignedAt"`
	ResponseStartedAt   primitive.DateTime `json:"responseStartedAt" bson:"responseStartedAt"`
	ResolvedAt          primitive.DateTime `json:"resolvedAt" bson:"resolvedAt"`
	ClosedAt            primitive.DateTime `json:"closedAt" bson:"closedAt"`
}

// IncidentStats holds the aggregate incident statistics response
type IncidentStats struct {
	TotalIncidents        int            `json:"totalIncidents"`
	BySeverity            map[string]int `json:"bySeverity"`
	ByStatus              map[string]int `json:"byStatus"`
	ByType                map[string]int `json:"byType"`
	CriticalIncidents     int            `json:"criticalIncidents"`
	ResolvedIncidents     int            `json:"resolvedIncidents"`
	AvgResolutionHours    float64        `json:"avgResolutionHours"`
	UnassignedHighUrgency int            `json:"unassignedHighUrgency"`
}
