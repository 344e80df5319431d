package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/floodnet-dev/flood-response-api/api"
	"github.com/floodnet-dev/flood-response-api/config"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

// Dispatch exported for testing purposes
type Dispatch struct {
	IDB databases.IncidentDatabase
	UDB databases.RescueUnitDatabase
}

func (d Dispatch) planner() *dispatch.Planner {
	return dispatch.NewPlanner(d.UDB)
}

// dispatchableUnits loads the pool a planning pass works over
func (d Dispatch) dispatchableUnits(ctx context.Context) ([]models.RescueUnit, error) {
	return d.UDB.Find(ctx, bson.M{
		"rescueUnit.status": bson.M{"$in": bson.A{models.UnitAvailable, models.UnitStandby}},
	})
}

// markAssigned persists the assignment on the incident document. Reported
// incidents move straight to assigned; verification is a human act and is
// never stamped by a dispatch
func (d Dispatch) markAssigned(ctx context.Context, incident models.Incident, res models.AssignmentResult, assignedBy string, at time.Time) error {
	updated, err := dispatch.TransitionIncident(incident, models.IncidentAssigned, at)
	if err != nil {
		return err
	}
	updated.Details.AssignedUnitID = res.UnitID
	updated.Details.AssignedByID = assignedBy
	updated.Details.UpdatedAt = primitive.NewDateTimeFromTime(at)

	update := bson.M{
		"$set": bson.M{"incident": updated.Details},
		"$inc": bson.M{"__v": 1},
	}
	_, err = d.IDB.UpdateOne(ctx, bson.M{"_id": incident.ID}, update)
	return err
}

// DispatchIncidentHandler finds, claims and assigns the nearest compatible
// unit for a single incident
func (d Dispatch) DispatchIncidentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]

	var requestBody struct {
		AssignedByID string  `json:"assignedByID"`
		MaxRadiusKm  float64 `json:"maxRadiusKm"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&requestBody)
	}

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("invalid incident ID", http.StatusBadRequest, w, err)
		return
	}

	incident, err := d.IDB.FindOne(ctx, bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get incident by ID", http.StatusNotFound, w, err)
		return
	}

	switch incident.Details.Status {
	case models.IncidentReported, models.IncidentVerified:
	default:
		config.ErrorStatus("incident is not dispatchable in its current status", http.StatusConflict, w,
			dispatch.ErrConstraintViolation)
		return
	}

	units, err := d.dispatchableUnits(ctx)
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusInternalServerError, w, err)
		return
	}

	planner := d.planner()
	if requestBody.MaxRadiusKm > 0 {
		planner.MaxRadiusKm = requestBody.MaxRadiusKm
	}

	now := time.Now().UTC()
	res, _, err := planner.Dispatch(ctx, *incident, units, now)
	if errors.Is(err, dispatch.ErrConstraintViolation) {
		config.ErrorStatus("incident already has an active assignment", http.StatusConflict, w, err)
		return
	}
	if errors.Is(err, dispatch.ErrNoEligibleUnit) {
		config.ErrorStatus("no eligible unit in range", http.StatusUnprocessableEntity, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to dispatch incident", http.StatusInternalServerError, w, err)
		return
	}

	if err := d.markAssigned(ctx, *incident, res, requestBody.AssignedByID, now); err != nil {
		config.ErrorStatus("failed to record assignment", http.StatusInternalServerError, w, err)
		return
	}

	broadcastAssignment(res)

	b, err := json.Marshal(res)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AssignIncidentHandler assigns a dispatcher-chosen unit to an incident,
// bypassing the nearest-unit search but not the claim or the status guards
func (d Dispatch) AssignIncidentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidentID := mux.Vars(r)["incident_id"]

	var requestBody struct {
		UnitID       string `json:"unitID"`
		AssignedByID string `json:"assignedByID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("invalid incident ID", http.StatusBadRequest, w, err)
		return
	}
	if _, err := primitive.ObjectIDFromHex(requestBody.UnitID); err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	incident, err := d.IDB.FindOne(ctx, bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get incident by ID", http.StatusNotFound, w, err)
		return
	}

	switch incident.Details.Status {
	case models.IncidentReported, models.IncidentVerified:
	default:
		config.ErrorStatus("incident is not dispatchable in its current status", http.StatusConflict, w,
			dispatch.ErrConstraintViolation)
		return
	}

	now := time.Now().UTC()
	claimed, err := d.UDB.ClaimUnit(ctx, requestBody.UnitID, incidentID, now)
	if errors.Is(err, dispatch.ErrUnitNoLongerAvailable) {
		config.ErrorStatus("unit is not available", http.StatusConflict, w, err)
		return
	}
	if err != nil {
		config.ErrorStatus("failed to claim unit", http.StatusInternalServerError, w, err)
		return
	}

	dist, err := geo.DistanceKm(dispatch.IncidentLocation(*incident), dispatch.UnitLocation(claimed))
	if err != nil {
		dist = 0
	}
	res := models.AssignmentResult{
		IncidentID: incidentID,
		UnitID:     claimed.ID.Hex(),
		UnitName:   claimed.Details.UnitName,
		DistanceKm: dist,
		EtaMinutes: dispatch.EstimateTravelMinutes(dist, dispatch.RequiresImmediateDispatch(incident.Details)),
		Assigned:   true,
	}

	if err := d.markAssigned(ctx, *incident, res, requestBody.AssignedByID, now); err != nil {
		config.ErrorStatus("failed to record assignment", http.StatusInternalServerError, w, err)
		return
	}

	broadcastAssignment(res)

	b, err := json.Marshal(res)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// unassignedOpenIncidents loads the incidents a batch pass considers
func (d Dispatch) unassignedOpenIncidents(ctx context.Context) ([]models.Incident, error) {
	return d.IDB.Find(ctx, bson.M{
		"incident.status": bson.M{"$in": bson.A{models.IncidentReported, models.IncidentVerified}},
	})
}

// PlanDispatchHandler produces a conflict-free assignment plan without
// committing it
func (d Dispatch) PlanDispatchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	incidents, err := d.unassignedOpenIncidents(ctx)
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusInternalServerError, w, err)
		return
	}
	units, err := d.dispatchableUnits(ctx)
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusInternalServerError, w, err)
		return
	}

	results, err := d.planner().PlanAssignments(incidents, units, time.Now().UTC())
	if err != nil {
		config.ErrorStatus("failed to plan assignments", http.StatusInternalServerError, w, err)
		return
	}
	if len(results) == 0 {
		results = []models.AssignmentResult{}
	}

	b, err := json.Marshal(results)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CommitDispatchHandler plans and commits assignments for every open
// unassigned incident
func (d Dispatch) CommitDispatchHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	var requestBody struct {
		AssignedByID string `json:"assignedByID"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&requestBody)
	}

	incidents, err := d.unassignedOpenIncidents(ctx)
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusInternalServerError, w, err)
		return
	}
	units, err := d.dispatchableUnits(ctx)
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusInternalServerError, w, err)
		return
	}

	now := time.Now().UTC()
	results, _, err := d.planner().CommitPlan(ctx, incidents, units, now)
	if err != nil {
		config.ErrorStatus("failed to commit assignments", http.StatusInternalServerError, w, err)
		return
	}

	byIncident := make(map[string]models.Incident, len(incidents))
	for _, inc := range incidents {
		byIncident[inc.ID.Hex()] = inc
	}
	for _, res := range results {
		if !res.Assigned {
			continue
		}
		inc := byIncident[res.IncidentID]
		if err := d.markAssigned(ctx, inc, res, requestBody.AssignedByID, now); err != nil {
			config.ErrorStatus("failed to record assignment", http.StatusInternalServerError, w, err)
			return
		}
		broadcastAssignment(res)
	}

	b, err := json.Marshal(results)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CoverageGapsHandler scans the fleet's footprint for grid points no
// operational unit can reach
func (d Dispatch) CoverageGapsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	grid, err := strconv.ParseFloat(r.URL.Query().Get("grid"), 64)
	if err != nil || grid <= 0 {
		grid = 10
	}
	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = 25
	}

	units, err := d.UDB.Find(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusInternalServerError, w, err)
		return
	}

	gaps, err := dispatch.FindGaps(units, grid, radius)
	if err != nil {
		config.ErrorStatus("failed to analyze coverage", http.StatusInternalServerError, w, err)
		return
	}
	if len(gaps) == 0 {
		gaps = []models.CoverageGap{}
	}

	b, err := json.Marshal(gaps)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
