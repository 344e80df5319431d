package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
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

// RescueUnit exported for testing purposes
type RescueUnit struct {
	DB  databases.RescueUnitDatabase
	IDB databases.IncidentDatabase
}

// RescueUnitHandler returns all rescue units
func (u RescueUnit) RescueUnitHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
	}
	limit64 := int64(Limit)
	Page = getPage(Page, r)
	skip64 := int64(Page * Limit)

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["rescueUnit.status"] = models.UnitStatus(status)
	}
	if unitType := r.URL.Query().Get("type"); unitType != "" {
		filter["rescueUnit.unitType"] = models.UnitType(unitType)
	}

	dbResp, err := u.DB.Find(context.TODO(), filter, &options.FindOptions{Limit: &limit64, Skip: &skip64})
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.RescueUnit{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// RescueUnitByIDHandler returns a rescue unit by ID
func (u RescueUnit) RescueUnitByIDHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	zap.S().Debugf("unit_id: %v", unitID)

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get rescue unit by ID", http.StatusNotFound, w, err)
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

// CreateRescueUnitHandler registers a new rescue unit
func (u RescueUnit) CreateRescueUnitHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody models.RescueUnitDetails
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	loc := geo.Coordinate{Latitude: requestBody.Latitude, Longitude: requestBody.Longitude}
	if err := loc.Validate(); err != nil {
		config.ErrorStatus("invalid unit location", http.StatusBadRequest, w, err)
		return
	}

	now := time.Now()
	if requestBody.Status == "" {
		requestBody.Status = models.UnitAvailable
	}
	requestBody.CurrentIncidentID = ""
	requestBody.CreatedAt = primitive.NewDateTimeFromTime(now)
	requestBody.UpdatedAt = primitive.NewDateTimeFromTime(now)
	requestBody.StatusChangedAt = primitive.NewDateTimeFromTime(now)
	requestBody.LastLocationUpdate = primitive.NewDateTimeFromTime(now)

	newUnit := bson.M{
		"_id":        primitive.NewObjectID(),
		"rescueUnit": requestBody,
		"__v":        0,
	}

	_, err := u.DB.InsertOne(context.Background(), newUnit)
	if err != nil {
		config.ErrorStatus("failed to create rescue unit", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    "Rescue unit created successfully",
		"rescueUnit": newUnit,
	})
}

// UpdateRescueUnitByIDHandler updates a rescue unit by ID
func (u RescueUnit) UpdateRescueUnitByIDHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	var requestBody map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	// Status moves through the transition endpoint, never a field patch
	delete(requestBody, "status")

	requestBody["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	updateFields := bson.M{}
	for key, value := range requestBody {
		updateFields["rescueUnit."+key] = value
	}

	update := bson.M{
		"$set": updateFields,
	}

	filter := bson.M{"_id": uID}
	_, err = u.DB.UpdateOne(context.Background(), filter, update)
	if err != nil {
		config.ErrorStatus("failed to update rescue unit", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Rescue unit updated successfully",
	})
}

// DeleteRescueUnitByIDHandler deletes a rescue unit by ID
func (u RescueUnit) DeleteRescueUnitByIDHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	unit, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get rescue unit by ID", http.StatusNotFound, w, err)
		return
	}
	if unit.Details.CurrentIncidentID != "" {
		config.ErrorStatus("cannot delete unit with an active assignment", http.StatusConflict, w,
			dispatch.ErrConstraintViolation)
		return
	}

	filter := bson.M{"_id": uID}
	err = u.DB.DeleteOne(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to delete rescue unit", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Rescue unit deleted successfully",
	})
}

// UpdateUnitStatusHandler moves a unit through its lifecycle
func (u RescueUnit) UpdateUnitStatusHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	var requestBody struct {
		Status     models.UnitStatus `json:"status"`
		IncidentID string            `json:"incidentID"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	unit, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get rescue unit by ID", http.StatusNotFound, w, err)
		return
	}

	oldStatus := unit.Details.Status
	updated, err := dispatch.TransitionUnit(*unit, requestBody.Status, requestBody.IncidentID, time.Now().UTC())
	if err != nil {
		config.ErrorStatus("invalid status transition", http.StatusConflict, w, err)
		return
	}
	updated.Details.UpdatedAt = primitive.NewDateTimeFromTime(time.Now())

	update := bson.M{
		"$set": bson.M{"rescueUnit": updated.Details},
		"$inc": bson.M{"__v": 1},
	}
	_, err = u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update)
	if err != nil {
		config.ErrorStatus("failed to update unit status", http.StatusInternalServerError, w, err)
		return
	}

	broadcastStatusEvent(models.StatusEvent{
		EntityKind: "rescueUnit",
		EntityID:   unitID,
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

// UpdateUnitLocationHandler records a position report from a unit in the field
func (u RescueUnit) UpdateUnitLocationHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	var requestBody struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	loc := geo.Coordinate{Latitude: requestBody.Latitude, Longitude: requestBody.Longitude}
	if err := loc.Validate(); err != nil {
		config.ErrorStatus("invalid unit location", http.StatusBadRequest, w, err)
		return
	}

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	update := bson.M{
		"$set": bson.M{
			"rescueUnit.latitude":           requestBody.Latitude,
			"rescueUnit.longitude":          requestBody.Longitude,
			"rescueUnit.lastLocationUpdate": primitive.NewDateTimeFromTime(time.Now()),
			"rescueUnit.updatedAt":          primitive.NewDateTimeFromTime(time.Now()),
		},
	}
	dbResp, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update)
	if err != nil {
		config.ErrorStatus("failed to update unit location", http.StatusInternalServerError, w, err)
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

// ReleaseUnitHandler returns a unit from deployment to the available pool
func (u RescueUnit) ReleaseUnitHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	unit, err := u.DB.ReleaseUnit(context.Background(), unitID, time.Now().UTC())
	if err != nil {
		config.ErrorStatus("failed to release unit", http.StatusConflict, w, err)
		return
	}

	broadcastStatusEvent(models.StatusEvent{
		EntityKind: "rescueUnit",
		EntityID:   unitID,
		NewStatus:  string(models.UnitAvailable),
		OccurredAt: primitive.NewDateTimeFromTime(time.Now().UTC()),
	})

	b, err := json.Marshal(unit)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// NearbyIncidentsHandler returns open incidents within a unit's coverage
// radius ordered by priority
func (u RescueUnit) NearbyIncidentsHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	unit, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get rescue unit by ID", http.StatusNotFound, w, err)
		return
	}

	radius, err := strconv.ParseFloat(r.URL.Query().Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = dispatch.DefaultMaxRadiusKm
	}

	incidents, err := u.IDB.Find(context.Background(), bson.M{"incident.status": bson.M{"$in": openIncidentStatuses}})
	if err != nil {
		config.ErrorStatus("failed to get incidents", http.StatusInternalServerError, w, err)
		return
	}

	nearby, err := dispatch.IncidentsNear(incidents, *unit, radius, time.Now().UTC())
	if err != nil {
		config.ErrorStatus("failed to rank nearby incidents", http.StatusInternalServerError, w, err)
		return
	}
	if len(nearby) == 0 {
		nearby = []dispatch.IncidentDistance{}
	}

	b, err := json.Marshal(nearby)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// AvailableUnitsByTypeHandler returns the count of available units per type
func (u RescueUnit) AvailableUnitsByTypeHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := u.DB.Find(context.TODO(), bson.M{"rescueUnit.status": models.UnitAvailable})
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusNotFound, w, err)
		return
	}

	byType := map[string]int{}
	for _, unit := range dbResp {
		byType[string(unit.Details.UnitType)]++
	}

	b, err := json.Marshal(map[string]interface{}{
		"availableUnitsByType": byType,
		"totalAvailable":       len(dbResp),
	})
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ScheduleMaintenanceHandler records the next maintenance date for a unit. A
// date not in the future pulls the unit out of the dispatch pool immediately
func (u RescueUnit) ScheduleMaintenanceHandler(w http.ResponseWriter, r *http.Request) {
	unitID := mux.Vars(r)["unit_id"]

	var requestBody struct {
		ScheduledDate time.Time `json:"scheduledDate"`
		Notes         string    `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if requestBody.ScheduledDate.IsZero() {
		config.ErrorStatus("scheduledDate is required", http.StatusBadRequest, w,
			fmt.Errorf("missing scheduledDate"))
		return
	}

	uID, err := primitive.ObjectIDFromHex(unitID)
	if err != nil {
		config.ErrorStatus("invalid unit ID", http.StatusBadRequest, w, err)
		return
	}

	unit, err := u.DB.FindOne(context.Background(), bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get rescue unit by ID", http.StatusNotFound, w, err)
		return
	}

	now := time.Now().UTC()
	if requestBody.ScheduledDate.After(now) {
		update := bson.M{
			"$set": bson.M{
				"rescueUnit.nextMaintenance": primitive.NewDateTimeFromTime(requestBody.ScheduledDate),
				"rescueUnit.updatedAt":       primitive.NewDateTimeFromTime(now),
			},
		}
		if _, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update); err != nil {
			config.ErrorStatus("failed to schedule maintenance", http.StatusInternalServerError, w, err)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message":       "Maintenance scheduled successfully",
			"unitName":      unit.Details.UnitName,
			"scheduledDate": requestBody.ScheduledDate,
			"status":        unit.Details.Status,
		})
		return
	}

	// Maintenance due now or in the past takes the unit out of service
	moved, err := dispatch.TransitionUnit(*unit, models.UnitMaintenance, "", now)
	if err != nil {
		config.ErrorStatus("invalid status transition", http.StatusConflict, w, err)
		return
	}
	moved.Details.NextMaintenance = primitive.NewDateTimeFromTime(requestBody.ScheduledDate)
	moved.Details.UpdatedAt = primitive.NewDateTimeFromTime(now)

	update := bson.M{
		"$set": bson.M{"rescueUnit": moved.Details},
		"$inc": bson.M{"__v": 1},
	}
	if _, err := u.DB.UpdateOne(context.Background(), bson.M{"_id": uID}, update); err != nil {
		config.ErrorStatus("failed to schedule maintenance", http.StatusInternalServerError, w, err)
		return
	}

	broadcastStatusEvent(models.StatusEvent{
		EntityKind: "rescueUnit",
		EntityID:   unitID,
		OldStatus:  string(unit.Details.Status),
		NewStatus:  string(models.UnitMaintenance),
		OccurredAt: primitive.NewDateTimeFromTime(now),
	})

	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":       "Maintenance scheduled successfully",
		"unitName":      moved.Details.UnitName,
		"scheduledDate": requestBody.ScheduledDate,
		"status":        moved.Details.Status,
	})
}

// RescueUnitStatsHandler returns aggregate counts over the fleet
func (u RescueUnit) RescueUnitStatsHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := u.DB.Find(context.TODO(), bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get rescue units", http.StatusNotFound, w, err)
		return
	}

	stats := models.RescueUnitStats{
		ByType:   map[string]int{},
		ByStatus: map[string]int{},
	}
	totalHours := 0.0
	now := time.Now().UTC()
	for _, unit := range dbResp {
		stats.TotalUnits++
		stats.ByType[string(unit.Details.UnitType)]++
		stats.ByStatus[string(unit.Details.Status)]++
		totalHours += unit.Details.TotalServiceHours
		switch unit.Details.Status {
		case models.UnitAvailable, models.UnitStandby:
			stats.AvailableUnits++
		case models.UnitDispatched, models.UnitEnRoute, models.UnitOnScene, models.UnitBusy:
			stats.DispatchedUnits++
		case models.UnitOutOfService, models.UnitMaintenance, models.UnitOffline:
			stats.OfflineUnits++
		}
		if unit.Details.NextMaintenance > 0 && unit.Details.NextMaintenance.Time().Before(now) {
			stats.MaintenanceDue++
		}
	}
	if stats.TotalUnits > 0 {
		stats.AvgServiceHours = totalHours / float64(stats.TotalUnits)
	}

	b, err := json.Marshal(stats)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
