package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

// Unassigned reasons reported in planning outcomes. A planning pass never
// silently drops an incident; every one considered gets an explicit outcome
const (
	ReasonNoEligibleUnit  = "no_eligible_unit"
	ReasonAlreadyAssigned = "already_assigned"
	ReasonInvalidLocation = "invalid_location"
)

// DefaultMaxRadiusKm bounds how far a unit may be sent to an incident
const DefaultMaxRadiusKm = 50.0

// DefaultClaimRetries bounds how many next-best candidates a commit tries
// after losing a unit to a concurrent dispatch
const DefaultClaimRetries = 3

// UnitClaimer atomically claims a unit for an incident against the
// persistence layer. The claim is a compare-and-set: it succeeds only if the
// unit is still dispatchable at commit time, returning the updated unit, and
// fails with ErrUnitNoLongerAvailable when the unit was taken in between
type UnitClaimer interface {
	ClaimUnit(ctx context.Context, unitID string, incidentID string, at time.Time) (models.RescueUnit, error)
}

// Planner produces conflict-free assignment plans with a greedy
// priority-first strategy. The strategy is intentionally simple and
// non-optimal: it commits to the locally best unit per incident in priority
// order without backtracking, trading optimality for predictability and
// O(incidents x units) cost
type Planner struct {
	Claimer      UnitClaimer
	MaxRadiusKm  float64
	ClaimRetries int
}

// NewPlanner returns a planner with the default radius and retry bounds
func NewPlanner(claimer UnitClaimer) *Planner {
	return &Planner{
		Claimer:      claimer,
		MaxRadiusKm:  DefaultMaxRadiusKm,
		ClaimRetries: DefaultClaimRetries,
	}
}

// EstimateTravelMinutes converts a straight-line distance into a travel
// estimate. Emergency responses assume 60 km/h plus a 5 minute preparation
// buffer, routine movements 40 km/h plus 10 minutes. This is deliberately
// not road-network routing
func EstimateTravelMinutes(distanceKm float64, emergency bool) int {
	speed, buffer := 40.0, 10.0
	if emergency {
		speed, buffer = 60.0, 5.0
	}
	return int(distanceKm/speed*60 + buffer)
}

// RequiresImmediateDispatch reports whether a newly reported incident should
// go through the single-incident auto-dispatch path
func RequiresImmediateDispatch(d models.IncidentDetails) bool {
	return d.Severity == models.SeverityHigh || d.Severity == models.SeverityCritical
}

// hasActiveAssignment reports whether an incident already owns a unit
func hasActiveAssignment(d models.IncidentDetails) bool {
	if d.AssignedUnitID != "" {
		return true
	}
	return d.Status == models.IncidentAssigned || d.Status == models.IncidentInProgress
}

func (p *Planner) maxRadius() float64 {
	if p.MaxRadiusKm > 0 {
		return p.MaxRadiusKm
	}
	return DefaultMaxRadiusKm
}

func (p *Planner) retries() int {
	if p.ClaimRetries > 0 {
		return p.ClaimRetries
	}
	return DefaultClaimRetries
}

// candidates ranks the dispatchable, capability-compatible units for an
// incident, nearest first
func (p *Planner) candidates(inc models.Incident, units []models.RescueUnit) ([]UnitDistance, error) {
	return FindNearby(units, IncidentLocation(inc), p.maxRadius(), 0, Constraints{
		UnitTypes:        EligibleUnitTypes(inc.Details.IncidentType),
		DispatchableOnly: true,
	})
}

// assignmentFor builds the committed outcome for an incident/unit pair
func assignmentFor(inc models.Incident, cand UnitDistance) models.AssignmentResult {
	return models.AssignmentResult{
		IncidentID: inc.ID.Hex(),
		UnitID:     cand.Unit.ID.Hex(),
		UnitName:   cand.Unit.Details.UnitName,
		DistanceKm: cand.DistanceKm,
		EtaMinutes: EstimateTravelMinutes(cand.DistanceKm, RequiresImmediateDispatch(inc.Details)),
		Assigned:   true,
	}
}

// Dispatch runs the single-incident path: find the nearest dispatchable unit
// whose capabilities cover the incident type and claim it atomically. Losing
// a claim race retries the next-best candidate up to the retry bound before
// surfacing ErrNoEligibleUnit. Returns the outcome and the claimed unit
func (p *Planner) Dispatch(ctx context.Context, inc models.Incident, units []models.RescueUnit, now time.Time) (models.AssignmentResult, models.RescueUnit, error) {
	if hasActiveAssignment(inc.Details) {
		return models.AssignmentResult{}, models.RescueUnit{},
			fmt.Errorf("%w: incident %s already has an active assignment", ErrConstraintViolation, inc.ID.Hex())
	}

	ranked, err := p.candidates(inc, units)
	if err != nil {
		return models.AssignmentResult{}, models.RescueUnit{}, err
	}

	attempts := 0
	for _, cand := range ranked {
		if attempts >= p.retries() {
			break
		}
		attempts++

		claimed, err := p.Claimer.ClaimUnit(ctx, cand.Unit.ID.Hex(), inc.ID.Hex(), now)
		if errors.Is(err, ErrUnitNoLongerAvailable) {
			continue
		}
		if err != nil {
			return models.AssignmentResult{}, models.RescueUnit{}, err
		}
		return assignmentFor(inc, cand), claimed, nil
	}

	return models.AssignmentResult{}, models.RescueUnit{},
		fmt.Errorf("%w: incident %s", ErrNoEligibleUnit, inc.ID.Hex())
}

// orderByPriority sorts incidents by priority score descending, oldest first
// on ties
func orderByPriority(incidents []models.Incident, now time.Time) []models.Incident {
	ordered := make([]models.Incident, len(incidents))
	copy(ordered, incidents)
	sort.SliceStable(ordered, func(i, j int) bool {
		si := PriorityScore(ordered[i].Details, now)
		sj := PriorityScore(ordered[j].Details, now)
		if si != sj {
			return si > sj
		}
		return ordered[i].Details.CreatedAt < ordered[j].Details.CreatedAt
	})
	return ordered
}

// PlanAssignments produces a conflict-free plan over a snapshot of the unit
// pool without committing anything. Incidents are taken in priority order;
// each claims the nearest compatible unit from the pool remaining after
// earlier picks, greedily and without backtracking. No unit appears in more
// than one pair, and incidents that already own a unit are not re-planned
func (p *Planner) PlanAssignments(incidents []models.Incident, units []models.RescueUnit, now time.Time) ([]models.AssignmentResult, error) {
	results := make([]models.AssignmentResult, 0, len(incidents))
	taken := make(map[string]bool)

	for _, inc := range orderByPriority(incidents, now) {
		if hasActiveAssignment(inc.Details) {
			results = append(results, models.AssignmentResult{
				IncidentID:       inc.ID.Hex(),
				UnassignedReason: ReasonAlreadyAssigned,
			})
			continue
		}
		if err := IncidentLocation(inc).Validate(); err != nil {
			if errors.Is(err, geo.ErrInvalidCoordinate) {
				results = append(results, models.AssignmentResult{
					IncidentID:       inc.ID.Hex(),
					UnassignedReason: ReasonInvalidLocation,
				})
				continue
			}
			return nil, err
		}

		ranked, err := p.candidates(inc, units)
		if err != nil {
			return nil, err
		}

		assigned := false
		for _, cand := range ranked {
			if taken[cand.Unit.ID.Hex()] {
				continue
			}
			taken[cand.Unit.ID.Hex()] = true
			results = append(results, assignmentFor(inc, cand))
			assigned = true
			break
		}
		if !assigned {
			results = append(results, models.AssignmentResult{
				IncidentID:       inc.ID.Hex(),
				UnassignedReason: ReasonNoEligibleUnit,
			})
		}
	}

	return results, nil
}

// CommitPlan runs the batch path end to end: greedy planning over the
// snapshot, with each assignment committed through the compare-and-set
// claimer. A unit lost to a concurrent dispatch is skipped and the next-best
// candidate is tried, rather than failing the whole batch
func (p *Planner) CommitPlan(ctx context.Context, incidents []models.Incident, units []models.RescueUnit, now time.Time) ([]models.AssignmentResult, []models.RescueUnit, error) {
	results := make([]models.AssignmentResult, 0, len(incidents))
	var claimedUnits []models.RescueUnit
	taken := make(map[string]bool)

	for _, inc := range orderByPriority(incidents, now) {
		if hasActiveAssignment(inc.Details) {
			results = append(results, models.AssignmentResult{
				IncidentID:       inc.ID.Hex(),
				UnassignedReason: ReasonAlreadyAssigned,
			})
			continue
		}
		if err := IncidentLocation(inc).Validate(); err != nil {
			if errors.Is(err, geo.ErrInvalidCoordinate) {
				results = append(results, models.AssignmentResult{
					IncidentID:       inc.ID.Hex(),
					UnassignedReason: ReasonInvalidLocation,
				})
				continue
			}
			return nil, nil, err
		}

		ranked, err := p.candidates(inc, units)
		if err != nil {
			return nil, nil, err
		}

		assigned := false
		attempts := 0
		for _, cand := range ranked {
			if taken[cand.Unit.ID.Hex()] {
				continue
			}
			if attempts >= p.retries() {
				break
			}
			attempts++

			claimed, err := p.Claimer.ClaimUnit(ctx, cand.Unit.ID.Hex(), inc.ID.Hex(), now)
			if errors.Is(err, ErrUnitNoLongerAvailable) {
				// lost the race, exclude the unit and move on
				taken[cand.Unit.ID.Hex()] = true
				continue
			}
			if err != nil {
				return nil, nil, err
			}

			taken[cand.Unit.ID.Hex()] = true
			claimedUnits = append(claimedUnits, claimed)
			results = append(results, assignmentFor(inc, cand))
			assigned = true
			break
		}
		if !assigned {
			results = append(results, models.AssignmentResult{
				IncidentID:       inc.ID.Hex(),
				UnassignedReason: ReasonNoEligibleUnit,
			})
		}
	}

	return results, claimedUnits, nil
}
