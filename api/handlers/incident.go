package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/floodnet-dev/flood-response-api/config"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

var (
	// Page denotes the starting Page for pagination results
	Page = 0
)

// Incident exported for testing purposes
type Incident struct {
	DB     databases.IncidentDatabase
	UnitDB databases.RescueUnitDatabase
}

// openIncidentStatuses are the statuses an incident can hold while still
// needing attention
var openIncidentStatuses = bson.A{
	models.IncidentReported,
	models.IncidentVerified,
	models.IncidentAssigned,
	models.IncidentInProgress,
}

// IncidentHandler returns all incidents
func (i Incident) IncidentHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["incident.status"] = models.IncidentStatus(status)
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		filter["incident.severity"] = models.SeverityLevel(severity)
	}

	dbResp, err := i.DB.Find(context.TODO(), filter, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that the data elements inside models.Incidents exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Incident{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// IncidentByIDHandler returns an incident by ID
func (i Incident) IncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incident_id"]

	zap.S().Debugf("incident_id: %v", incidentID)

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := i.DB.FindOne(context.Background(), bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get incident by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateIncidentHandler creates a new incident report
func (i Incident) CreateIncidentHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody models.IncidentDetails
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	loc := geo.Coordinate{Latitude: requestBody.Latitude, Longitude: requestBody.Longitude}
	if err := loc.Validate(); err != nil {
		config.ErrorStatus("invalid incident location", http.StatusBadRequest, w, err)
		return
	}

	now := time.Now()
	requestBody.Status = models.IncidentReported
	requestBody.AssignedUnitID = ""
	requestBody.AssignedByID = ""
	requestBody.CreatedAt = primitive.NewDateTimeFromTime(now)
	requestBody.UpdatedAt = primitive.NewDateTimeFromTime(now)
	requestBody.PriorityScore = dispatch.PriorityScore(requestBody, now)

	newID := primitive.NewObjectID()
	newIncident := bson.M{
		"_id":      newID,
		"incident": requestBody,
		"__v":      0,
	}

	_, err := i.DB.InsertOne(context.Background(), newIncident)
	if err != nil {
		config.ErrorStatus("failed to create incident", http.StatusInternalServerError, w, err)
		return
	}

	// High and critical reports go straight through the single-incident
	// dispatch path. When nothing is in range the incident stays reported
	// for the sweep to pick up
	var assignment *models.AssignmentResult
	if dispatch.RequiresImmediateDispatch(requestBody) && i.UnitDB != nil {
		assignment = i.autoDispatch(r.Context(), models.Incident{ID: newID, Details: requestBody})
	}

	resp := map[string]interface{}{
		"message":  "Incident created successfully",
		"incident": newIncident,
	}
	if assignment != nil {
		resp["assignment"] = assignment
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// autoDispatch claims the nearest compatible unit for a freshly created
// incident and records the assignment. Failures are logged, never surfaced;
// the incident simply stays in the reported pool
func (i Incident) autoDispatch(ctx context.Context, inc models.Incident) *models.AssignmentResult {
	units, err := i.UnitDB.Find(ctx, bson.M{
		"rescueUnit.status": bson.M{"$in": bson.A{models.UnitAvailable, models.UnitStandby}},
	})
	if err != nil {
		zap.S().Warnw("auto dispatch could not load units", "incidentID", inc.ID.Hex(), "error", err)
		return nil
	}

	now := time.Now().UTC()
	res, _, err := dispatch.NewPlanner(i.UnitDB).Dispatch(ctx, inc, units, now)
	if err != nil {
		if errors.Is(err, dispatch.ErrNoEligibleUnit) {
			zap.S().Debugw("no unit in range for auto dispatch", "incidentID", inc.ID.Hex())
		} else {
			zap.S().Warnw("auto dispatch failed", "incidentID", inc.ID.Hex(), "error", err)
		}
		return nil
	}

	updated, err := dispatch.TransitionIncident(inc, models.IncidentAssigned, now)
	if err != nil {
		zap.S().Warnw("auto dispatch transition rejected", "incidentID", inc.ID.Hex(), "error", err)
		return nil
	}
	updated.Details.AssignedUnitID = res.UnitID
	updated.Details.AssignedByID = "auto-dispatch"
	updated.Details.UpdatedAt = primitive.NewDateTimeFromTime(now)

	update := bson.M{
		"$set": bson.M{"incident": updated.Details},
		"$inc": bson.M{"__v": 1},
	}
	if _, err := i.DB.UpdateOne(ctx, bson.M{"_id": inc.ID}, update); err != nil {
		zap.S().Warnw("auto dispatch could not record assignment", "incidentID", inc.ID.Hex(), "error", err)
		return nil
	}

	broadcastAssignment(res)
	return &res
}

// UpdateIncidentByIDHandler updates an incident by ID
func (i Incident) UpdateIncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incident_id"]

	var requestBody map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("invalid incident ID", http.StatusBadRequest, w, err)
		return
	}

	// Status moves through the transition endpoint, never a field patch
	delete(requestBody, "status")

	// Add the updatedAt field to the requestBody
	requestBody["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	// Prefix all keys in requestBody with "incident."
	updateFields := bson.M{}
	for key, value := range requestBody {
		updateFields["incident."+key] = value
	}

	update := bson.M{
		"$set": updateFields,
	}

	filter := bson.M{"_id": iID}
	_, err = i.DB.UpdateOne(context.Background(), filter, update)
	if err != nil {
		config.ErrorStatus("failed to update incident", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Incident updated successfully",
	})
}

// DeleteIncidentByIDHandler deletes an incident by ID
func (i Incident) DeleteIncidentByIDHandler(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incident_id"]

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("invalid incident ID", http.StatusBadRequest, w, err)
		return
	}

	filter := bson.M{"_id": iID}
	err = i.DB.DeleteOne(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to delete incident", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Incident deleted successfully",
	})
}

// UpdateIncidentStatusHandler moves an incident through its lifecycle
func (i Incident) UpdateIncidentStatusHandler(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incident_id"]

	var requestBody struct {
		Status models.IncidentStatus `json:"status"`
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

	incident, err := i.DB.FindOne(context.Background(), bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get incident by ID", http.StatusNotFound, w, err)
		return
	}

	oldStatus := incident.Details.Status
	updated, err := dispatch.TransitionIncident(*incident, requestBody.Status, time.Now().UTC())
	if err != nil {
		config.ErrorStatus("invalid status transition", http.StatusConflict, w, err)
		return
	}
	updated.Details.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	// Resolving, cancelling or unassigning an incident must hand its unit
	// back instead of leaving it stranded in dispatched
	releaseUnitID := ""
	switch updated.Details.Status {
	case models.IncidentResolved, models.IncidentCancelled:
		releaseUnitID = incident.Details.AssignedUnitID
	case models.IncidentReported:
		if oldStatus == models.IncidentAssigned {
			releaseUnitID = incident.Details.AssignedUnitID
		}
	}

	update := bson.M{
		"$set": bson.M{"incident": updated.Details},
		"$inc": bson.M{"__v": 1},
	}
	_, err = i.DB.UpdateOne(context.Background(), bson.M{"_id": iID}, update)
	if err != nil {
		config.ErrorStatus("failed to update incident status", http.StatusInternalServerError, w, err)
		return
	}

	if releaseUnitID != "" && i.UnitDB != nil {
		if _, err := i.UnitDB.ReleaseUnit(context.Background(), releaseUnitID, time.Now().UTC()); err != nil {
			zap.S().Warnw("failed to release unit after incident status change",
				"unitID", releaseUnitID, "error", err)
		}
	}

	broadcastStatusEvent(models.StatusEvent{
		EntityKind: "incident",
		EntityID:   incidentID,
		OldStatus:  string(oldStatus),
		NewStatus:  string(updated.Details.Status),
		OccurredAt: primitive.NewDateTimeFromTime(time.Now().UTC()),
	})

	b, err := json.Marshal(updated)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// NearestUnitsHandler returns the closest dispatchable units for an incident
func (i Incident) NearestUnitsHandler(w http.ResponseWriter, r *http.Request) {
	incidentID := mux.Vars(r)["incident_id"]

	iID, err := primitive.ObjectIDFromHex(incidentID)
	if err != nil {
		config.ErrorStatus("invalid incident ID", http.StatusBadRequest, w, err)
		return
	}

	incident, err := i.DB.FindOne(context.Background(), bson.M{"_id": iID})
	if err != nil {
		config.ErrorStatus("failed to get incident by ID", http.StatusNotFound, w, err)
		return
	}

	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = dispatch.DefaultMaxRadiusKm
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 5
	}

	units, err := i.UnitDB.Find(context.Background(), bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusInternalServerError, w, err)
		return
	}

	nearby, err := dispatch.FindNearby(units, dispatch.IncidentLocation(*incident), radius, limit, dispatch.Constraints{
		UnitTypes:        dispatch.EligibleUnitTypes(incident.Details.IncidentType),
		DispatchableOnly: true,
	})
	if err != nil {
		config.ErrorStatus("failed to rank nearby units", http.StatusInternalServerError, w, err)
		return
	}
	if len(nearby) == 0 {
		nearby = []dispatch.UnitDistance{}
	}

	b, err := json.Marshal(nearby)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// incidentWithDistance pairs an incident with its distance from a query point
type incidentWithDistance struct {
	models.Incident
	DistanceKm float64 `json:"distanceKm"`
}

// IncidentsNearbyHandler returns open incidents around a point, nearest first
func (i Incident) IncidentsNearbyHandler(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if latErr != nil || lonErr != nil {
		config.ErrorStatus("latitude and longitude are required", http.StatusBadRequest, w,
			fmt.Errorf("latitude: %v, longitude: %v", latErr, lonErr))
		return
	}

	center := geo.Coordinate{Latitude: lat, Longitude: lon}
	if err := center.Validate(); err != nil {
		config.ErrorStatus("invalid query location", http.StatusBadRequest, w, err)
		return
	}

	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = dispatch.DefaultMaxRadiusKm
	}

	filter := bson.M{"incident.status": bson.M{"$in": openIncidentStatuses}}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		filter["incident.severity"] = models.SeverityLevel(severity)
	}
	if incidentType := r.URL.Query().Get("type"); incidentType != "" {
		filter["incident.incidentType"] = models.IncidentType(incidentType)
	}

	dbResp, err := i.DB.Find(context.TODO(), filter)
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusNotFound, w, err)
		return
	}

	nearby := []incidentWithDistance{}
	for _, inc := range dbResp {
		dist, err := geo.DistanceKm(center, dispatch.IncidentLocation(inc))
		if err != nil || dist > radius {
			continue
		}
		nearby = append(nearby, incidentWithDistance{Incident: inc, DistanceKm: dist})
	}
	sort.Slice(nearby, func(a, b int) bool { return nearby[a].DistanceKm < nearby[b].DistanceKm })
	if len(nearby) > 50 {
		nearby = nearby[:50]
	}

	b, err := json.Marshal(nearby)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// OverdueIncidentsHandler returns open incidents that outlived their
// severity's response window
func (i Incident) OverdueIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := i.DB.Find(context.TODO(), bson.M{"incident.status": bson.M{"$in": openIncidentStatuses}})
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusNotFound, w, err)
		return
	}

	now := time.Now().UTC()
	overdue := []models.Incident{}
	for _, inc := range dbResp {
		if dispatch.IsOverdue(inc.Details, now) {
			overdue = append(overdue, inc)
		}
	}

	b, err := json.Marshal(overdue)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// IncidentStatsHandler returns aggregate counts over all incidents
func (i Incident) IncidentStatsHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := i.DB.Find(context.TODO(), bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusNotFound, w, err)
		return
	}

	stats := models.IncidentStats{
		ByStatus:   map[string]int{},
		BySeverity: map[string]int{},
		ByType:     map[string]int{},
	}
	resolvedMinutes := 0
	for _, inc := range dbResp {
		stats.TotalIncidents++
		stats.ByStatus[string(inc.Details.Status)]++
		stats.BySeverity[string(inc.Details.Severity)]++
		stats.ByType[string(inc.Details.IncidentType)]++
		if inc.Details.Severity == models.SeverityCritical {
			stats.CriticalIncidents++
		}
		switch inc.Details.Status {
		case models.IncidentResolved, models.IncidentClosed:
			stats.ResolvedIncidents++
			resolvedMinutes += inc.Details.ResolutionMinutes
		case models.IncidentReported, models.IncidentVerified:
			if inc.Details.Severity == models.SeverityHigh || inc.Details.Severity == models.SeverityCritical {
				stats.UnassignedHighUrgency++
			}
		}
	}
	if stats.ResolvedIncidents > 0 {
		stats.AvgResolutionHours = float64(resolvedMinutes) / 60.0 / float64(stats.ResolvedIncidents)
	}

	b, err := json.Marshal(stats)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func getPage(Page int, r *http.Request) int {
	if r.URL.Query().Get("page") == "" {
		zap.S().Warnf("page not set, using default of %v", Page)
	} else {
		var err error
		Page, err = strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			zap.S().Errorf(fmt.Sprintf("error parsing page number: %v", err))
		}
		if Page < 0 {
			zap.S().Warnf(fmt.Sprintf("cannot process page number less than 1. Got: %v", Page))
			return 0
		}
	}
	return Page
}
