package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// UnitType enumerates the kinds of rescue units in the fleet
type UnitType string

// Unit types
const (
	UnitFireRescue        UnitType = "fire_rescue"
	UnitMedical           UnitType = "medical"
	UnitWaterRescue       UnitType = "water_rescue"
	UnitEvacuation        UnitType = "evacuation"
	UnitSearchRescue      UnitType = "search_rescue"
	UnitPolice            UnitType = "police"
	UnitEmergencyServices UnitType = "emergency_services"
	UnitVolunteer         UnitType = "volunteer"
	UnitHazmat            UnitType = "hazmat"
	UnitTechnicalRescue   UnitType = "technical_rescue"
)

// UnitStatus enumerates the rescue unit lifecycle states
type UnitStatus string

// Unit statuses
const (
	UnitAvailable    UnitStatus = "available"
	UnitStandby      UnitStatus = "standby"
	UnitDispatched   UnitStatus = "dispatched"
	UnitEnRoute      UnitStatus = "en_route"
	UnitOnScene      UnitStatus = "on_scene"
	UnitBusy         UnitStatus = "busy"
	UnitReturning    UnitStatus = "returning"
	UnitOutOfService UnitStatus = "out_of_service"
	UnitMaintenance  UnitStatus = "maintenance"
	UnitOffline      UnitStatus = "offline"
)

// RescueUnit holds the structure for the rescueUnits collection in MongoDB
type RescueUnit struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details RescueUnitDetails  `json:"rescueUnit" bson:"rescueUnit"`
	Version int32              `json:"__v" bson:"__v"`
}

// RescueUnitDetails holds the structure for the inner rescue unit details
type RescueUnitDetails struct {
	UnitName           string             `json:"unitName" bson:"unitName"`
	CallSign           string             `json:"callSign" bson:"callSign"`
	UnitType           UnitType           `json:"unitType" bson:"unitType"`
	Status             UnitStatus         `json:"status" bson:"status"`
	Latitude           float64            `json:"latitude" bson:"latitude"`
	Longitude          float64            `json:"longitude" bson:"longitude"`
	Capacity           int                `json:"capacity" bson:"capacity"`
	TeamSize           int                `json:"teamSize" bson:"teamSize"`
	FuelLevel          float64            `json:"fuelLevel" bson:"fuelLevel"`
	NextMaintenance    primitive.DateTime `json:"nextMaintenance" bson:"nextMaintenance"`
	CurrentIncidentID  string             `json:"currentIncidentID" bson:"currentIncidentID"`
	DeploymentStart    primitive.DateTime `json:"deploymentStart" bson:"deploymentStart"`
	TotalDeployments   int                `json:"totalDeployments" bson:"totalDeployments"`
	TotalServiceHours  float64            `json:"totalServiceHours" bson:"totalServiceHours"`
	LastLocationUpdate primitive.DateTime `json:"lastLocationUpdate" bson:"lastLocationUpdate"`
	StatusChangedAt    primitive.DateTime `json:"statusChangedAt" bson:"statusChangedAt"`
	CreatedAt          primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt          primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}

// RescueUnitStats holds the aggregate rescue unit statistics response
type RescueUnitStats struct {
	TotalUnits         int            `json:"totalUnits"`
	AvailableUnits     int            `json:"availableUnits"`
	DispatchedUnits    int            `json:"dispatchedUnits"`
	OfflineUnits       int            `json:"offlineUnits"`
	ByType             map[string]int `json:"byType"`
	ByStatus           map[string]int `json:"byStatus"`
	MaintenanceDue     int            `json:"maintenanceDue"`
	AvgServiceHours    float64        `json:"avgServiceHours"`
}
