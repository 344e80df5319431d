package dispatch

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/floodnet-dev/flood-response-api/models"
)

// incidentTransitions is the allowed incident status transition table.
// closed and cancelled are terminal
var incidentTransitions = map[models.IncidentStatus][]models.IncidentStatus{
	models.IncidentReported:   {models.IncidentVerified, models.IncidentAssigned, models.IncidentCancelled},
	models.IncidentVerified:   {models.IncidentAssigned, models.IncidentCancelled},
	models.IncidentAssigned:   {models.IncidentInProgress, models.IncidentReported, models.IncidentCancelled},
	models.IncidentInProgress: {models.IncidentResolved, models.IncidentAssigned},
	models.IncidentResolved:   {models.IncidentClosed, models.IncidentInProgress},
	models.IncidentClosed:     {},
	models.IncidentCancelled:  {},
}

// unitTransitions is the allowed rescue unit status transition table
var unitTransitions = map[models.UnitStatus][]models.UnitStatus{
	models.UnitAvailable:    {models.UnitStandby, models.UnitDispatched, models.UnitOutOfService, models.UnitMaintenance, models.UnitOffline},
	models.UnitStandby:      {models.UnitAvailable, models.UnitDispatched, models.UnitOutOfService, models.UnitMaintenance, models.UnitOffline},
	models.UnitDispatched:   {models.UnitEnRoute, models.UnitOnScene, models.UnitAvailable, models.UnitOutOfService},
	models.UnitEnRoute:      {models.UnitOnScene, models.UnitReturning, models.UnitAvailable},
	models.UnitOnScene:      {models.UnitBusy, models.UnitReturning, models.UnitAvailable},
	models.UnitBusy:         {models.UnitOnScene, models.UnitReturning, models.UnitAvailable},
	models.UnitReturning:    {models.UnitAvailable, models.UnitStandby, models.UnitMaintenance, models.UnitOutOfService},
	models.UnitOutOfService: {models.UnitAvailable, models.UnitMaintenance, models.UnitOffline},
	models.UnitMaintenance:  {models.UnitAvailable, models.UnitOutOfService, models.UnitOffline},
	models.UnitOffline:      {models.UnitAvailable, models.UnitOutOfService, models.UnitMaintenance},
}

// CanTransitionIncident reports whether the incident status transition is
// allowed by the table
func CanTransitionIncident(from, to models.IncidentStatus) bool {
	for _, allowed := range incidentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionUnit reports whether the unit status transition is allowed
// by the table
func CanTransitionUnit(from, to models.UnitStatus) bool {
	for _, allowed := range unitTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsOperational reports whether a unit in this status is part of the active
// fleet (everything except out_of_service, maintenance and offline)
func IsOperational(s models.UnitStatus) bool {
	switch s {
	case models.UnitOutOfService, models.UnitMaintenance, models.UnitOffline:
		return false
	}
	return true
}

// IsDispatchable reports whether a unit in this status can accept a new
// assignment
func IsDispatchable(s models.UnitStatus) bool {
	return s == models.UnitAvailable || s == models.UnitStandby
}

// TransitionIncident validates and applies an incident status transition,
// returning the updated copy. The input is never mutated; persisting the
// result is the caller's responsibility. Each transition stamps its
// lifecycle timestamp, and resolving computes the resolution duration from
// the report time
func TransitionIncident(inc models.Incident, to models.IncidentStatus, at time.Time) (models.Incident, error) {
	from := inc.Details.Status
	if !CanTransitionIncident(from, to) {
		return inc, fmt.Errorf("%w: incident %s -> %s", ErrInvalidTransition, from, to)
	}

	now := primitive.NewDateTimeFromTime(at)
	inc.Details.Status = to
	inc.Details.UpdatedAt = now

	switch to {
	case models.IncidentVerified:
		inc.Details.VerifiedAt = now
	case models.IncidentAssigned:
		inc.Details.AssignedAt = now
	case models.IncidentInProgress:
		inc.Details.ResponseStartedAt = now
	case models.IncidentResolved:
		inc.Details.ResolvedAt = now
		inc.Details.ResolutionMinutes = int(at.Sub(inc.Details.CreatedAt.Time()).Minutes())
	case models.IncidentClosed:
		inc.Details.ClosedAt = now
	case models.IncidentReported:
		// assignment fell through, the incident goes back into the pool
		inc.Details.AssignedUnitID = ""
		inc.Details.AssignedByID = ""
	}

	return inc, nil
}

// TransitionUnit validates and applies a unit status transition, returning
// the updated copy. Entering dispatched records the deployment start and the
// target incident; returning to available clears the target and accrues the
// elapsed deployment time into the running service total
func TransitionUnit(u models.RescueUnit, to models.UnitStatus, incidentID string, at time.Time) (models.RescueUnit, error) {
	from := u.Details.Status
	if !CanTransitionUnit(from, to) {
		return u, fmt.Errorf("%w: unit %s -> %s", ErrInvalidTransition, from, to)
	}

	now := primitive.NewDateTimeFromTime(at)
	u.Details.Status = to
	u.Details.StatusChangedAt = now
	u.Details.UpdatedAt = now

	switch to {
	case models.UnitDispatched:
		u.Details.CurrentIncidentID = incidentID
		u.Details.DeploymentStart = now
		u.Details.TotalDeployments++
	case models.UnitAvailable:
		if IsOperational(from) && u.Details.DeploymentStart > 0 {
			elapsed := at.Sub(u.Details.DeploymentStart.Time()).Hours()
			u.Details.TotalServiceHours += elapsed
		}
		u.Details.CurrentIncidentID = ""
		u.Details.DeploymentStart = 0
	}

	return u, nil
}
