package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// RiskLevel enumerates flood zone risk ratings
type RiskLevel string

// Risk levels
const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskExtreme  RiskLevel = "extreme"
)

// ZoneType enumerates flood zone land-use categories
type ZoneType string

// Zone types
const (
	ZoneResidential  ZoneType = "residential"
	ZoneCommercial   ZoneType = "commercial"
	ZoneIndustrial   ZoneType = "industrial"
	ZoneAgricultural ZoneType = "agricultural"
	ZoneNatural      ZoneType = "natural"
	ZoneMixed        ZoneType = "mixed"
)

// FloodZone holds the structure for the floodZones collection in MongoDB
type FloodZone struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details FloodZoneDetails   `json:"floodZone" bson:"floodZone"`
	Version int32              `json:"__v" bson:"__v"`
}

// FloodZoneDetails holds the structure for the inner flood zone details
type FloodZoneDetails struct {
	Name                   string             `json:"name" bson:"name"`
	Description            string             `json:"description" bson:"description"`
	ZoneCode               string             `json:"zoneCode" bson:"zoneCode"`
	RiskLevel              RiskLevel          `json:"riskLevel" bson:"riskLevel"`
	ZoneType               ZoneType           `json:"zoneType" bson:"zoneType"`
	CenterLatitude         float64            `json:"centerLatitude" bson:"centerLatitude"`
	CenterLongitude        float64            `json:"centerLongitude" bson:"centerLongitude"`
	AreaSqKm               float64            `json:"areaSqKm" bson:"areaSqKm"`
	PopulationEstimate     int                `json:"populationEstimate" bson:"populationEstimate"`
	CurrentWaterLevel      *float64           `json:"currentWaterLevel" bson:"currentWaterLevel"`
	IsCurrentlyFlooded     bool               `json:"isCurrentlyFlooded" bson:"isCurrentlyFlooded"`
	EvacuationRecommended  bool               `json:"evacuationRecommended" bson:"evacuationRecommended"`
	EvacuationMandatory    bool               `json:"evacuationMandatory" bson:"evacuationMandatory"`
	District               string             `json:"district" bson:"district"`
	CreatedAt              primitive.DateTime `json:"createdAt" bson:"createdAt"`
	UpdatedAt              primitive.DateTime `json:"updatedAt" bson:"updatedAt"`
}
