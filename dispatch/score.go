package dispatch

import (
	"time"

	"github.com/floodnet-dev/flood-response-api/models"
)

// severityWeights feed the 40% severity share of the priority score
var severityWeights = map[models.SeverityLevel]float64{
	models.SeverityLow:      10,
	models.SeverityMedium:   30,
	models.SeverityHigh:     60,
	models.SeverityCritical: 100,
}

// riskScores feed the risk share of the zone priority score
var riskScores = map[models.RiskLevel]int{
	models.RiskVeryLow:  1,
	models.RiskLow:      2,
	models.RiskMedium:   3,
	models.RiskHigh:     4,
	models.RiskVeryHigh: 5,
	models.RiskExtreme:  6,
}

// PriorityScore computes the urgency rating of an incident in [0, 100].
// The score is a pure function of the incident attributes and the reference
// time; it is recomputed on demand and never treated as stored ground truth.
// Weights: severity 40%, affected people 30%, age 20%, special conditions 10%
func PriorityScore(d models.IncidentDetails, now time.Time) int {
	score := severityWeights[d.Severity] * 0.4

	switch {
	case d.AffectedPeopleCount > 100:
		score += 30
	case d.AffectedPeopleCount > 50:
		score += 25
	case d.AffectedPeopleCount > 20:
		score += 20
	case d.AffectedPeopleCount > 10:
		score += 15
	case d.AffectedPeopleCount > 0:
		score += 10
	}

	hoursOld := now.Sub(d.CreatedAt.Time()).Hours()
	switch {
	case hoursOld > 24:
		score += 20
	case hoursOld > 12:
		score += 15
	case hoursOld > 6:
		score += 10
	case hoursOld > 2:
		score += 5
	}

	if d.IsMassCasualty {
		score += 5
	}
	if d.IsHazmatInvolved {
		score += 3
	}
	if d.IsStructuralDamage {
		score += 2
	}

	if score > 100 {
		return 100
	}
	return int(score)
}

// ZonePriorityScore computes the resource-allocation priority of a flood
// zone in [0, 100] from its risk level, population and current conditions
func ZonePriorityScore(d models.FloodZoneDetails) int {
	score := riskScores[d.RiskLevel] * 10

	switch {
	case d.PopulationEstimate > 10000:
		score += 20
	case d.PopulationEstimate > 5000:
		score += 15
	case d.PopulationEstimate > 1000:
		score += 10
	}

	if d.IsCurrentlyFlooded {
		score += 30
	}
	if d.EvacuationMandatory {
		score += 25
	} else if d.EvacuationRecommended {
		score += 15
	}

	if score > 100 {
		return 100
	}
	return score
}

// OverdueSLAHours is the response SLA in hours per severity, used by callers
// to derive the overdue view at query time. The dispatch core itself never
// reads the wall clock
var OverdueSLAHours = map[models.SeverityLevel]float64{
	models.SeverityCritical: 1,
	models.SeverityHigh:     4,
	models.SeverityMedium:   12,
	models.SeverityLow:      24,
}

// IsOverdue reports whether an open incident has blown its severity SLA at
// the given reference time. Resolved and closed incidents are never overdue
func IsOverdue(d models.IncidentDetails, now time.Time) bool {
	if d.Status == models.IncidentResolved || d.Status == models.IncidentClosed {
		return false
	}

	sla, ok := OverdueSLAHours[d.Severity]
	if !ok {
		sla = 24
	}
	return now.Sub(d.CreatedAt.Time()).Hours() > sla
}
