package dispatch

import (
	"sort"
	"time"

	"github.com/floodnet-dev/flood-response-api/models"

	"github.com/floodnet-dev/flood-response-api/geo"
)

// distanceEpsilonKm is the band within which two candidate distances count
// as a tie
const distanceEpsilonKm = 0.001

// Constraints narrow the unit pool a spatial query considers
type Constraints struct {
	UnitTypes        []models.UnitType
	MaxRadiusKm      float64
	DispatchableOnly bool
}

// UnitDistance pairs a candidate unit with its computed distance
type UnitDistance struct {
	Unit       models.RescueUnit `json:"unit"`
	DistanceKm float64           `json:"distanceKm"`
}

// IncidentDistance pairs an incident with its distance and recomputed
// priority score for reverse queries
type IncidentDistance struct {
	Incident      models.Incident `json:"incident"`
	DistanceKm    float64         `json:"distanceKm"`
	PriorityScore int             `json:"priorityScore"`
}

// UnitLocation returns the unit's current position
func UnitLocation(u models.RescueUnit) geo.Coordinate {
	return geo.Coordinate{Latitude: u.Details.Latitude, Longitude: u.Details.Longitude}
}

// IncidentLocation returns the incident's position
func IncidentLocation(inc models.Incident) geo.Coordinate {
	return geo.Coordinate{Latitude: inc.Details.Latitude, Longitude: inc.Details.Longitude}
}

func (c Constraints) admits(u models.RescueUnit) bool {
	if c.DispatchableOnly && !IsDispatchable(u.Details.Status) {
		return false
	}
	if len(c.UnitTypes) > 0 {
		found := false
		for _, t := range c.UnitTypes {
			if u.Details.UnitType == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// closer ranks two candidates: nearer wins; within the epsilon band the
// larger remaining capacity wins, then the lowest unit id for determinism
func closer(a, b UnitDistance) bool {
	diff := a.DistanceKm - b.DistanceKm
	if diff < -distanceEpsilonKm {
		return true
	}
	if diff > distanceEpsilonKm {
		return false
	}
	if a.Unit.Details.Capacity != b.Unit.Details.Capacity {
		return a.Unit.Details.Capacity > b.Unit.Details.Capacity
	}
	return a.Unit.ID.Hex() < b.Unit.ID.Hex()
}

// rankUnits filters the pool by the constraints and returns the surviving
// units ordered nearest first. A bounding box cheaply discards far-away
// units before the exact distance check
func rankUnits(units []models.RescueUnit, loc geo.Coordinate, c Constraints) ([]UnitDistance, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	var box geo.BoundingBox
	if c.MaxRadiusKm > 0 {
		var err error
		box, err = geo.CircleBounds(loc, c.MaxRadiusKm)
		if err != nil {
			return nil, err
		}
	}

	var candidates []UnitDistance
	for _, u := range units {
		if !c.admits(u) {
			continue
		}
		pos := UnitLocation(u)
		if err := pos.Validate(); err != nil {
			return nil, err
		}
		if c.MaxRadiusKm > 0 && !box.Contains(pos) {
			continue
		}
		d, err := geo.DistanceKm(loc, pos)
		if err != nil {
			return nil, err
		}
		if c.MaxRadiusKm > 0 && d > c.MaxRadiusKm {
			continue
		}
		candidates = append(candidates, UnitDistance{Unit: u, DistanceKm: d})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return closer(candidates[i], candidates[j])
	})
	return candidates, nil
}

// FindNearest returns the closest unit admitted by the constraints, or nil
// when no unit qualifies. An empty result is the valid "no coverage" case,
// not an error
func FindNearest(units []models.RescueUnit, loc geo.Coordinate, c Constraints) (*UnitDistance, error) {
	ranked, err := rankUnits(units, loc, c)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	nearest := ranked[0]
	return &nearest, nil
}

// FindNearby returns up to limit units within radiusKm, nearest first, each
// paired with its computed distance
func FindNearby(units []models.RescueUnit, loc geo.Coordinate, radiusKm float64, limit int, c Constraints) ([]UnitDistance, error) {
	c.MaxRadiusKm = radiusKm
	ranked, err := rankUnits(units, loc, c)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// IncidentsNear is the reverse query: open incidents within the unit's
// coverage radius, ordered by priority score descending then distance
// ascending
func IncidentsNear(incidents []models.Incident, unit models.RescueUnit, coverageRadiusKm float64, now time.Time) ([]IncidentDistance, error) {
	center := UnitLocation(unit)
	if err := center.Validate(); err != nil {
		return nil, err
	}

	box, err := geo.CircleBounds(center, coverageRadiusKm)
	if err != nil {
		return nil, err
	}

	var nearby []IncidentDistance
	for _, inc := range incidents {
		switch inc.Details.Status {
		case models.IncidentReported, models.IncidentVerified, models.IncidentAssigned, models.IncidentInProgress:
		default:
			continue
		}
		pos := IncidentLocation(inc)
		if err := pos.Validate(); err != nil {
			return nil, err
		}
		if !box.Contains(pos) {
			continue
		}
		d, err := geo.DistanceKm(center, pos)
		if err != nil {
			return nil, err
		}
		if d > coverageRadiusKm {
			continue
		}
		nearby = append(nearby, IncidentDistance{
			Incident:      inc,
			DistanceKm:    d,
			PriorityScore: PriorityScore(inc.Details, now),
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].PriorityScore != nearby[j].PriorityScore {
			return nearby[i].PriorityScore > nearby[j].PriorityScore
		}
		return nearby[i].DistanceKm < nearby[j].DistanceKm
	})
	return nearby, nil
}
