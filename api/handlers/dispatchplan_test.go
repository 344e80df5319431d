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

func verifiedFloodIncident(id primitive.ObjectID) *models.Incident {
	return &models.Incident{
		ID: id,
		Details: models.IncidentDetails{
			Title:        "embankment breach",
			IncidentType: models.IncidentFlood,
			Severity:     models.SeverityCritical,
			Status:       models.IncidentVerified,
			Latitude:     23.8103,
			Longitude:    90.4125,
			CreatedAt:    primitive.NewDateTimeFromTime(time.Now()),
		},
	}
}

func availableWaterUnit(id primitive.ObjectID, name string, lat, lon float64) models.RescueUnit {
	return models.RescueUnit{
		ID: id,
		Details: models.RescueUnitDetails{
			UnitName: name,
			UnitType: models.UnitWaterRescue,
			Status:   models.UnitAvailable,
			Latitude: lat, Longitude: lon,
			Capacity: 8,
		},
	}
}

func TestDispatch_DispatchIncidentHandlerBadID(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/incident/1234/dispatch", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": "1234"})
	req.Header.Set("Authorization", "Bearer abc123")

	d := handlers.Dispatch{IDB: &mocks.IncidentDatabase{}, UDB: &mocks.RescueUnitDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DispatchIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "invalid incident ID")
}

func TestDispatch_DispatchIncidentHandlerNotDispatchable(t *testing.T) {
	incID := primitive.NewObjectID()
	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/dispatch", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	inc := verifiedFloodIncident(incID)
	inc.Details.Status = models.IncidentResolved

	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(inc, nil)

	d := handlers.Dispatch{IDB: idb, UDB: &mocks.RescueUnitDatabase{}}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DispatchIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "not dispatchable")
}

func TestDispatch_DispatchIncidentHandlerNoEligibleUnit(t *testing.T) {
	incID := primitive.NewObjectID()
	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/dispatch", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(verifiedFloodIncident(incID), nil)

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{}, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DispatchIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "no eligible unit in range")
}

func TestDispatch_DispatchIncidentHandlerAssignsNearestUnit(t *testing.T) {
	incID := primitive.NewObjectID()
	nearID := primitive.NewObjectID()
	farID := primitive.NewObjectID()

	body := []byte(`{"assignedByID": "dispatcher-1"}`)
	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/dispatch", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	inc := verifiedFloodIncident(incID)
	near := availableWaterUnit(nearID, "Boat 7", 23.8203, 90.4155)
	far := availableWaterUnit(farID, "Boat 12", 23.9500, 90.5500)

	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(inc, nil)
	idb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(inc, nil)

	claimed := near
	claimed.Details.Status = models.UnitDispatched
	claimed.Details.CurrentIncidentID = incID.Hex()

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{far, near}, nil)
	udb.On("ClaimUnit", mock.Anything, nearID.Hex(), incID.Hex(), mock.Anything).Return(claimed, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DispatchIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res models.AssignmentResult
	err = json.Unmarshal(rr.Body.Bytes(), &res)
	assert.NoError(t, err)
	assert.True(t, res.Assigned)
	assert.Equal(t, nearID.Hex(), res.UnitID)
	assert.Equal(t, "Boat 7", res.UnitName)

	udb.AssertCalled(t, "ClaimUnit", mock.Anything, nearID.Hex(), incID.Hex(), mock.Anything)
	idb.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_PlanDispatchHandlerDryRun(t *testing.T) {
	incID := primitive.NewObjectID()
	unitID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/dispatch/plan", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	idb := &mocks.IncidentDatabase{}
	idb.On("Find", mock.Anything, mock.Anything).Return([]models.Incident{*verifiedFloodIncident(incID)}, nil)

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{
		availableWaterUnit(unitID, "Boat 7", 23.8203, 90.4155),
	}, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.PlanDispatchHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var results []models.AssignmentResult
	err = json.Unmarshal(rr.Body.Bytes(), &results)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.True(t, results[0].Assigned)
	assert.Equal(t, unitID.Hex(), results[0].UnitID)

	// a dry run never claims units or writes assignments
	udb.AssertNotCalled(t, "ClaimUnit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	idb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_CommitDispatchHandler(t *testing.T) {
	incID := primitive.NewObjectID()
	unitID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/dispatch/commit", bytes.NewBuffer([]byte(`{"assignedByID": "dispatcher-1"}`)))
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	inc := verifiedFloodIncident(incID)
	unit := availableWaterUnit(unitID, "Boat 7", 23.8203, 90.4155)

	idb := &mocks.IncidentDatabase{}
	idb.On("Find", mock.Anything, mock.Anything).Return([]models.Incident{*inc}, nil)
	idb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(inc, nil)

	claimed := unit
	claimed.Details.Status = models.UnitDispatched

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{unit}, nil)
	udb.On("ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything).Return(claimed, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.CommitDispatchHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var results []models.AssignmentResult
	err = json.Unmarshal(rr.Body.Bytes(), &results)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.True(t, results[0].Assigned)

	udb.AssertCalled(t, "ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything)
	idb.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_CoverageGapsHandlerEmptyFleet(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/dispatch/coverage-gaps", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{}, nil)

	d := handlers.Dispatch{UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.CoverageGapsHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestDispatch_DispatchIncidentHandlerReportedAssignsWithoutVerification(t *testing.T) {
	incID := primitive.NewObjectID()
	unitID := primitive.NewObjectID()

	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/dispatch", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	inc := verifiedFloodIncident(incID)
	inc.Details.Status = models.IncidentReported

	var captured bson.M
	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(inc, nil)
	idb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(inc, nil).Run(func(args mock.Arguments) {
		captured = args.Get(2).(bson.M)
	})

	unit := availableWaterUnit(unitID, "Boat 7", 23.8203, 90.4155)
	claimed := unit
	claimed.Details.Status = models.UnitDispatched

	udb := &mocks.RescueUnitDatabase{}
	udb.On("Find", mock.Anything, mock.Anything).Return([]models.RescueUnit{unit}, nil)
	udb.On("ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything).Return(claimed, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.DispatchIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	// a reported incident goes straight to assigned, verification is a
	// human act and its timestamp must stay unset
	details := captured["$set"].(bson.M)["incident"].(models.IncidentDetails)
	assert.Equal(t, models.IncidentAssigned, details.Status)
	assert.Equal(t, primitive.DateTime(0), details.VerifiedAt)
	assert.NotEqual(t, primitive.DateTime(0), details.AssignedAt)
}

func TestDispatch_AssignIncidentHandler(t *testing.T) {
	incID := primitive.NewObjectID()
	unitID := primitive.NewObjectID()

	body := []byte(`{"unitID": "` + unitID.Hex() + `", "assignedByID": "dispatcher-2"}`)
	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/assign", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	inc := verifiedFloodIncident(incID)

	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(inc, nil)
	idb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(inc, nil)

	// the dispatcher's pick, not the nearest unit to the incident
	claimed := availableWaterUnit(unitID, "Boat 12", 23.9500, 90.5500)
	claimed.Details.Status = models.UnitDispatched
	claimed.Details.CurrentIncidentID = incID.Hex()

	udb := &mocks.RescueUnitDatabase{}
	udb.On("ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything).Return(claimed, nil)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.AssignIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var res models.AssignmentResult
	err = json.Unmarshal(rr.Body.Bytes(), &res)
	assert.NoError(t, err)
	assert.True(t, res.Assigned)
	assert.Equal(t, unitID.Hex(), res.UnitID)
	assert.Equal(t, "Boat 12", res.UnitName)
	assert.Greater(t, res.DistanceKm, 0.0)

	udb.AssertCalled(t, "ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything)
	idb.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_AssignIncidentHandlerUnitTaken(t *testing.T) {
	incID := primitive.NewObjectID()
	unitID := primitive.NewObjectID()

	body := []byte(`{"unitID": "` + unitID.Hex() + `"}`)
	req, err := http.NewRequest("POST", "/api/v1/incident/"+incID.Hex()+"/assign", bytes.NewBuffer(body))
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"incident_id": incID.Hex()})
	req.Header.Set("Authorization", "Bearer abc123")

	idb := &mocks.IncidentDatabase{}
	idb.On("FindOne", mock.Anything, mock.Anything).Return(verifiedFloodIncident(incID), nil)

	udb := &mocks.RescueUnitDatabase{}
	udb.On("ClaimUnit", mock.Anything, unitID.Hex(), incID.Hex(), mock.Anything).
		Return(models.RescueUnit{}, dispatch.ErrUnitNoLongerAvailable)

	d := handlers.Dispatch{IDB: idb, UDB: udb}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(d.AssignIncidentHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "unit is not available")
	idb.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}
