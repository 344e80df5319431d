package dispatch

import "github.com/floodnet-dev/flood-response-api/models"

// unitCapabilities maps each unit type to the capabilities its crews carry
var unitCapabilities = map[models.UnitType][]string{
	models.UnitFireRescue:        {"firefighting", "rescue", "medical_basic", "vehicle_extrication"},
	models.UnitMedical:           {"medical_advanced", "patient_transport", "life_support"},
	models.UnitWaterRescue:       {"water_rescue", "boat_operations", "diving", "swift_water"},
	models.UnitEvacuation:        {"mass_transport", "shelter_operations", "crowd_control", "evacuation"},
	models.UnitSearchRescue:      {"search_operations", "technical_rescue", "wilderness", "urban_search", "rescue"},
	models.UnitPolice:            {"law_enforcement", "traffic_control", "crowd_control", "investigation"},
	models.UnitEmergencyServices: {"coordination", "communications", "logistics"},
	models.UnitVolunteer:         {"support_operations", "logistics", "community_liaison"},
	models.UnitHazmat:            {"chemical_response", "decontamination", "environmental"},
	models.UnitTechnicalRescue:   {"structural_collapse", "rope_rescue", "confined_space", "technical_rescue"},
}

// requiredCapabilities maps each incident type to the capabilities a
// responding unit must carry at least one of. Types without an entry carry
// no capability restriction
var requiredCapabilities = map[models.IncidentType][]string{
	models.IncidentFlood:                {"water_rescue", "evacuation", "rescue"},
	models.IncidentRescueNeeded:         {"rescue", "search_operations", "medical_basic"},
	models.IncidentMedicalEmergency:     {"medical_advanced", "medical_basic", "patient_transport"},
	models.IncidentInfrastructureDamage: {"technical_rescue", "structural_collapse"},
	models.IncidentEvacuationRequired:   {"mass_transport", "evacuation", "crowd_control"},
	models.IncidentWaterContamination:   {"chemical_response", "decontamination", "environmental"},
}

// UnitCapabilities returns the capability set for a unit type
func UnitCapabilities(t models.UnitType) []string {
	return unitCapabilities[t]
}

// RequiredCapabilities returns the capability set an incident type demands
func RequiredCapabilities(t models.IncidentType) []string {
	return requiredCapabilities[t]
}

// CanHandle reports whether a unit type can respond to an incident type. A
// unit qualifies when it carries any of the required capabilities; incident
// types with no required set accept any unit
func CanHandle(unitType models.UnitType, incidentType models.IncidentType) bool {
	required := requiredCapabilities[incidentType]
	if len(required) == 0 {
		return true
	}

	for _, have := range unitCapabilities[unitType] {
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

// EligibleUnitTypes returns every unit type that can respond to the given
// incident type, for use as a matcher type filter
func EligibleUnitTypes(incidentType models.IncidentType) []models.UnitType {
	var eligible []models.UnitType
	for unitType := range unitCapabilities {
		if CanHandle(unitType, incidentType) {
			eligible = append(eligible, unitType)
		}
	}
	return eligible
}
