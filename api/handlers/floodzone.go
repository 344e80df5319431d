package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/floodnet-dev/flood-response-api/config"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

// FloodZone exported for testing purposes
type FloodZone struct {
	DB databases.FloodZoneDatabase
}

// FloodZoneHandler returns all flood zones
func (f FloodZone) FloodZoneHandler(w http.ResponseWriter, r *http.Request) {
	Limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Warnf(fmt.Sprintf("limit not set, using default of %v, err: %v", Limit|10, err))
	}
	Page = getPage(Page, r)

	filter := bson.M{}
	if flooded := r.URL.Query().Get("flooded"); flooded != "" {
		floodedB, err := strconv.ParseBool(flooded)
		if err != nil {
			config.ErrorStatus("invalid flooded value", http.StatusBadRequest, w, err)
			return
		}
		filter["floodZone.isCurrentlyFlooded"] = floodedB
	}
	if district := r.URL.Query().Get("district"); district != "" {
		filter["floodZone.district"] = district
	}

	dbResp, err := f.DB.Find(context.TODO(), filter, databases.Paginate(Limit, Page+1))
	if err != nil {
		config.ErrorStatus("failed to get flood zones", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.FloodZone{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// FloodZoneByIDHandler returns a flood zone by ID
func (f FloodZone) FloodZoneByIDHandler(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zone_id"]

	zap.S().Debugf("zone_id: %v", zoneID)

	zID, err := primitive.ObjectIDFromHex(zoneID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	dbResp, err := f.DB.FindOne(context.Background(), bson.M{"_id": zID})
	if err != nil {
		config.ErrorStatus("failed to get flood zone by ID", http.StatusNotFound, w, err)
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

// CreateFloodZoneHandler registers a new monitored zone
func (f FloodZone) CreateFloodZoneHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody models.FloodZoneDetails
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	loc := geo.Coordinate{Latitude: requestBody.CenterLatitude, Longitude: requestBody.CenterLongitude}
	if err := loc.Validate(); err != nil {
		config.ErrorStatus("invalid zone center", http.StatusBadRequest, w, err)
		return
	}

	now := time.Now()
	requestBody.CreatedAt = primitive.NewDateTimeFromTime(now)
	requestBody.UpdatedAt = primitive.NewDateTimeFromTime(now)

	newZone := bson.M{
		"_id":       primitive.NewObjectID(),
		"floodZone": requestBody,
		"__v":       0,
	}

	_, err := f.DB.InsertOne(context.Background(), newZone)
	if err != nil {
		config.ErrorStatus("failed to create flood zone", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":   "Flood zone created successfully",
		"floodZone": newZone,
	})
}

// UpdateFloodZoneByIDHandler updates a flood zone by ID
func (f FloodZone) UpdateFloodZoneByIDHandler(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zone_id"]

	var requestBody map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	zID, err := primitive.ObjectIDFromHex(zoneID)
	if err != nil {
		config.ErrorStatus("invalid zone ID", http.StatusBadRequest, w, err)
		return
	}

	requestBody["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	updateFields := bson.M{}
	for key, value := range requestBody {
		updateFields["floodZone."+key] = value
	}

	update := bson.M{
		"$set": updateFields,
	}

	filter := bson.M{"_id": zID}
	_, err = f.DB.UpdateOne(context.Background(), filter, update)
	if err != nil {
		config.ErrorStatus("failed to update flood zone", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Flood zone updated successfully",
	})
}

// DeleteFloodZoneByIDHandler deletes a flood zone by ID
func (f FloodZone) DeleteFloodZoneByIDHandler(w http.ResponseWriter, r *http.Request) {
	zoneID := mux.Vars(r)["zone_id"]

	zID, err := primitive.ObjectIDFromHex(zoneID)
	if err != nil {
		config.ErrorStatus("invalid zone ID", http.StatusBadRequest, w, err)
		return
	}

	filter := bson.M{"_id": zID}
	err = f.DB.DeleteOne(context.Background(), filter)
	if err != nil {
		config.ErrorStatus("failed to delete flood zone", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Flood zone deleted successfully",
	})
}

// zoneWithPriority pairs a zone with its computed attention score
type zoneWithPriority struct {
	Zone          models.FloodZone `json:"zone"`
	PriorityScore int              `json:"priorityScore"`
}

// FloodZonePriorityHandler returns zones ordered by how badly they need
// resources right now
func (f FloodZone) FloodZonePriorityHandler(w http.ResponseWriter, r *http.Request) {
	dbResp, err := f.DB.Find(context.TODO(), bson.M{})
	if err != nil {
		config.ErrorStatus("failed to get flood zones", http.StatusNotFound, w, err)
		return
	}

	ranked := make([]zoneWithPriority, 0, len(dbResp))
	for _, zone := range dbResp {
		ranked = append(ranked, zoneWithPriority{
			Zone:          zone,
			PriorityScore: dispatch.ZonePriorityScore(zone.Details),
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].PriorityScore > ranked[j].PriorityScore
	})

	b, err := json.Marshal(ranked)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
