package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/floodnet-dev/flood-response-api/api/handlers"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/databases/mocks"
	"github.com/floodnet-dev/flood-response-api/models"
)

func TestFloodZone_FloodZoneByIDHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/zone/1234", nil)
	if err != nil {
		t.Fatal(err)
	}

	req = mux.SetURLVars(req, map[string]string{"zone_id": "1234"})
	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	db = &MockDatabaseHelper{} // can be used as db = &mocks.DatabaseHelper{}

	zoneDatabase := databases.NewFloodZoneDatabase(db)
	z := handlers.FloodZone{
		DB: zoneDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(z.FloodZoneByIDHandler)

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

func TestFloodZone_FloodZonePriorityHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/zones/priority", nil)
	if err != nil {
		t.Fatal(err)
	}

	req.Header.Set("Authorization", "Bearer abc123")

	var db databases.DatabaseHelper
	var conn databases.CollectionHelper
	var cursorHelper databases.CursorHelper

	db = &MockDatabaseHelper{} // can be used as db = &mocks.DatabaseHelper{}
	conn = &mocks.CollectionHelper{}
	cursorHelper = &mocks.CursorHelper{}

	cursorHelper.(*mocks.CursorHelper).On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*[]models.FloodZone)
		*arg = []models.FloodZone{
			{ID: primitive.NewObjectID(), Details: models.FloodZoneDetails{
				Name: "quiet farmland", RiskLevel: models.RiskLow,
				ZoneType: models.ZoneAgricultural, PopulationEstimate: 300,
			}},
			{ID: primitive.NewObjectID(), Details: models.FloodZoneDetails{
				Name: "riverside ward", RiskLevel: models.RiskExtreme,
				ZoneType: models.ZoneResidential, PopulationEstimate: 25000,
				IsCurrentlyFlooded: true, EvacuationMandatory: true,
			}},
		}
	})
	conn.(*mocks.CollectionHelper).On("Find", mock.Anything, mock.Anything).Return(cursorHelper, nil)
	db.(*MockDatabaseHelper).On("Collection", "floodZones").Return(conn)

	zoneDatabase := databases.NewFloodZoneDatabase(db)
	z := handlers.FloodZone{
		DB: zoneDatabase,
	}

	rr := httptest.NewRecorder()
	handler := http.HandlerFunc(z.FloodZonePriorityHandler)

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var ranked []struct {
		Zone          models.FloodZone `json:"zone"`
		PriorityScore int              `json:"priorityScore"`
	}
	err = json.Unmarshal(rr.Body.Bytes(), &ranked)
	assert.NoError(t, err)
	assert.Len(t, ranked, 2)
	assert.Equal(t, "riverside ward", ranked[0].Zone.Details.Name)
	assert.Equal(t, 100, ranked[0].PriorityScore)
	assert.Greater(t, ranked[0].PriorityScore, ranked[1].PriorityScore)
}
