package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/floodnet-dev/flood-response-api/api/handlers"
	"github.com/floodnet-dev/flood-response-api/databases/mocks"
	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/models"
)

func TestRescueUnit_RescueUnitByIDHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/unit/1234", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": "1234"})
	req.Header.Set("Authorization", "Bearer abc123")

	u := handlers.RescueUnit{DB: &mocks.RescueUnitDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.RescueUnitByIDHandler)

	handler.ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusBadRequest {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusBadRequest)
	}

	expected := models.ErrorMessageResponse{Response: models.MessageError{Message: "failed to get objectID from Hex", Error: "the provided hex string is not a valid ObjectID"}}
	b, _ := json.Marshal(expected)
	if rr.Body.String() != string(b) {
		t.Errorf("handler returned unexpected body: \ngot: %v \nwant: %v", rr.Body.String(), expected)
	}
}

func TestRescueUnit_UpdateUnitStatusHandlerInvalidTransition(t *testing.T) {
	unitID := primitive.NewObjectID()
	body := []byte(`{"status": "busy"}`)
	req, err := http.NewRequest("PUT", "/api/v1/unit/"+unitID.Hex()+"/status", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitOffline},
	}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UpdateUnitStatusHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid status transition")
}

func TestRescueUnit_UpdateUnitStatusHandlerDispatch(t *testing.T) {
	unitID := primitive.NewObjectID()
	body := []byte(`{"status": "dispatched", "incidentID": "inc-42"}`)
	req, err := http.NewRequest("PUT", "/api/v1/unit/"+unitID.Hex()+"/status", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitAvailable},
	}, nil)
	udb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&models.RescueUnit{}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.UpdateUnitStatusHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"dispatched"`)
	assert.Contains(t, rr.Body.String(), `"currentIncidentID":"inc-42"`)
}

func TestRescueUnit_ReleaseUnitHandler(t *testing.T) {
	unitID := primitive.NewObjectID()
	req, err := http.NewRequest("POST", "/api/v1/unit/"+unitID.Hex()+"/release", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("ReleaseUnit", mock.Anything, unitID.Hex(), mock.Anything).Return(models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitAvailable},
	}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ReleaseUnitHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"available"`)
	udb.AssertCalled(t, "ReleaseUnit", mock.Anything, unitID.Hex(), mock.Anything)
}

func TestRescueUnit_ReleaseUnitHandlerIdleUnit(t *testing.T) {
	unitID := primitive.NewObjectID()
	req, err := http.NewRequest("POST", "/api/v1/unit/"+unitID.Hex()+"/release", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("ReleaseUnit", mock.Anything, unitID.Hex(), mock.Anything).Return(models.RescueUnit{}, dispatch.ErrInvalidTransition)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ReleaseUnitHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to release unit")
}

func TestRescueUnit_NearbyIncidentsHandler(t *testing.T) {
	unitID := primitive.NewObjectID()
	req, err := http.NewRequest("GET", "/api/v1/unit/"+unitID.Hex()+"/nearby-incidents", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID: unitID,
		Details: models.RescueUnitDetails{
			UnitName: "Boat 7", UnitType: models.UnitWaterRescue,
			Status: models.UnitAvailable, Latitude: 23.8103, Longitude: 90.4125,
		},
	}, nil)

	idb := &mocks.IncidentDatabase{}
	idb.On("Find", mock.Anything, mock.Anything).Return([]models.Incident{
		{ID: primitive.NewObjectID(), Details: models.IncidentDetails{
			Title: "embankment overflow", IncidentType: models.IncidentFlood,
			Severity: models.SeverityHigh, Status: models.IncidentVerified,
			Latitude: 23.8203, Longitude: 90.4155,
			CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
		}},
		{ID: primitive.NewObjectID(), Details: models.IncidentDetails{
			Title: "distant outage", IncidentType: models.IncidentPowerOutage,
			Severity: models.SeverityLow, Status: models.IncidentReported,
			Latitude: 25.0, Longitude: 92.0,
			CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
		}},
	}, nil)

	u := handlers.RescueUnit{DB: udb, IDB: idb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.NearbyIncidentsHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "embankment overflow")
	assert.NotContains(t, rr.Body.String(), "distant outage")
}

func TestRescueUnit_RescueUnitStatsHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/units/stats", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitWaterRescue, Status: models.UnitAvailable, TotalServiceHours: 10,
		}},
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitMedical, Status: models.UnitEnRoute, TotalServiceHours: 30,
		}},
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitEvacuation, Status: models.UnitMaintenance, TotalServiceHours: 20,
			NextMaintenance: primitive.NewDateTimeFromTime(time.Now().Add(-24 * time.Hour)),
		}},
	}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.RescueUnitStatsHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var stats models.RescueUnitStats
	err = json.Unmarshal(rr.Body.Bytes(), &stats)
	assert.NoError(t, err)
	assert.Equal(t, 3, stats.TotalUnits)
	assert.Equal(t, 1, stats.AvailableUnits)
	assert.Equal(t, 1, stats.DispatchedUnits)
	assert.Equal(t, 1, stats.OfflineUnits)
	assert.Equal(t, 1, stats.MaintenanceDue)
	assert.InDelta(t, 20.0, stats.AvgServiceHours, 0.001)
}

func TestRescueUnit_DeleteRescueUnitHandlerActiveAssignment(t *testing.T) {
	unitID := primitive.NewObjectID()
	req, err := http.NewRequest("DELETE", "/api/v1/unit/"+unitID.Hex(), nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID: unitID,
		Details: models.RescueUnitDetails{
			UnitName: "Boat 7", Status: models.UnitDispatched,
			CurrentIncidentID: primitive.NewObjectID().Hex(),
		},
	}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.DeleteRescueUnitByIDHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot delete unit with an active assignment")
	udb.AssertNotCalled(t, "DeleteOne", mock.Anything, mock.Anything)
}

func TestRescueUnit_DeleteRescueUnitHandlerIdleUnit(t *testing.T) {
	unitID := primitive.NewObjectID()
	req, err := http.NewRequest("DELETE", "/api/v1/unit/"+unitID.Hex(), nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitAvailable},
	}, nil)
	udb.On("DeleteOne", mock.Anything, mock.Anything).Return(nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.DeleteRescueUnitByIDHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	udb.AssertCalled(t, "DeleteOne", mock.Anything, mock.Anything)
}

func TestRescueUnit_AvailableUnitsByTypeHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/units/available/by-type", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitWaterRescue, Status: models.UnitAvailable,
		}},
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitWaterRescue, Status: models.UnitAvailable,
		}},
		{ID: primitive.NewObjectID(), Details: models.RescueUnitDetails{
			UnitType: models.UnitMedical, Status: models.UnitAvailable,
		}},
	}, nil)

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.AvailableUnitsByTypeHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		AvailableUnitsByType map[string]int `json:"availableUnitsByType"`
		TotalAvailable       int            `json:"totalAvailable"`
	}
	err = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, 2, resp.AvailableUnitsByType["water_rescue"])
	assert.Equal(t, 1, resp.AvailableUnitsByType["medical"])
	assert.Equal(t, 3, resp.TotalAvailable)
}

func TestRescueUnit_ScheduleMaintenanceHandlerFutureDate(t *testing.T) {
	unitID := primitive.NewObjectID()
	scheduled := time.Now().UTC().Add(72 * time.Hour)
	body, _ := json.Marshal(map[string]interface{}{"scheduledDate": scheduled})
	req, err := http.NewRequest("POST", "/api/v1/unit/"+unitID.Hex()+"/maintenance", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitAvailable},
	}, nil)

	var captured bson.M
	udb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.RescueUnit{}, nil).Run(func(args mock.Arguments) {
		captured = args.Get(2).(bson.M)
	})

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ScheduleMaintenanceHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Maintenance scheduled successfully")
	// a future date only books the slot, the unit keeps serving
	assert.Contains(t, rr.Body.String(), `"status":"available"`)
	set := captured["$set"].(bson.M)
	assert.Equal(t, primitive.NewDateTimeFromTime(scheduled), set["rescueUnit.nextMaintenance"])
}

func TestRescueUnit_ScheduleMaintenanceHandlerImmediate(t *testing.T) {
	unitID := primitive.NewObjectID()
	scheduled := time.Now().UTC().Add(-time.Hour)
	body, _ := json.Marshal(map[string]interface{}{"scheduledDate": scheduled})
	req, err := http.NewRequest("POST", "/api/v1/unit/"+unitID.Hex()+"/maintenance", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"unit_id": unitID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(&models.RescueUnit{
		ID:      unitID,
		Details: models.RescueUnitDetails{UnitName: "Boat 7", Status: models.UnitAvailable},
	}, nil)

	var captured bson.M
	udb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&models.RescueUnit{}, nil).Run(func(args mock.Arguments) {
		captured = args.Get(2).(bson.M)
	})

	u := handlers.RescueUnit{DB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(u.ScheduleMaintenanceHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"maintenance"`)
	details := captured["$set"].(bson.M)["rescueUnit"].(models.RescueUnitDetails)
	assert.Equal(t, models.UnitMaintenance, details.Status)
}
