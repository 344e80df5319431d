package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/floodnet-dev/flood-response-api/api"
	"github.com/floodnet-dev/flood-response-api/api/scheduler"
	"github.com/floodnet-dev/flood-response-api/config"
	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router   *mux.Router
	DB       databases.CollectionHelper
	Config   config.Config
	dbHelper databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	incidentDB := databases.NewIncidentDatabase(a.dbHelper)
	unitDB := databases.NewRescueUnitDatabase(a.dbHelper)
	zoneDB := databases.NewFloodZoneDatabase(a.dbHelper)

	i := Incident{DB: incidentDB, UnitDB: unitDB}
	u := RescueUnit{DB: unitDB, IDB: incidentDB}
	z := FloodZone{DB: zoneDB}
	d := Dispatch{IDB: incidentDB, UDB: unitDB}
	da := DispatcherAuth{UDB: databases.NewUserDatabase(a.dbHelper)}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// live dispatch event stream
	r.HandleFunc("/ws/events", HandleEventsWebSocket)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.HandleFunc("/auth/login", da.DispatcherLoginHandler).Methods("POST")
	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/incident", api.Middleware(http.HandlerFunc(i.CreateIncidentHandler))).Methods("POST")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.IncidentByIDHandler))).Methods("GET")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.UpdateIncidentByIDHandler))).Methods("PUT")
	apiCreate.Handle("/incident/{incident_id}", api.Middleware(http.HandlerFunc(i.DeleteIncidentByIDHandler))).Methods("DELETE")
	apiCreate.Handle("/incident/{incident_id}/status", api.Middleware(http.HandlerFunc(i.UpdateIncidentStatusHandler))).Methods("PUT")
	apiCreate.Handle("/incident/{incident_id}/nearest-units", api.Middleware(http.HandlerFunc(i.NearestUnitsHandler))).Methods("GET")
	apiCreate.Handle("/incident/{incident_id}/dispatch", api.Middleware(http.HandlerFunc(d.DispatchIncidentHandler))).Methods("POST")
	apiCreate.Handle("/incident/{incident_id}/assign", api.Middleware(http.HandlerFunc(d.AssignIncidentHandler))).Methods("POST")
	apiCreate.Handle("/incidents", api.Middleware(http.HandlerFunc(i.IncidentHandler))).Methods("GET")
	apiCreate.Handle("/incidents/nearby", api.Middleware(http.HandlerFunc(i.IncidentsNearbyHandler))).Methods("GET")
	apiCreate.Handle("/incidents/overdue", api.Middleware(http.HandlerFunc(i.OverdueIncidentsHandler))).Methods("GET")
	apiCreate.Handle("/incidents/stats", api.Middleware(http.HandlerFunc(i.IncidentStatsHandler))).Methods("GET")
	// All routes for incident must go above this line

	apiCreate.Handle("/unit", api.Middleware(http.HandlerFunc(u.CreateRescueUnitHandler))).Methods("POST")
	apiCreate.Handle("/unit/{unit_id}", api.Middleware(http.HandlerFunc(u.RescueUnitByIDHandler))).Methods("GET")
	apiCreate.Handle("/unit/{unit_id}", api.Middleware(http.HandlerFunc(u.UpdateRescueUnitByIDHandler))).Methods("PUT")
	apiCreate.Handle("/unit/{unit_id}", api.Middleware(http.HandlerFunc(u.DeleteRescueUnitByIDHandler))).Methods("DELETE")
	apiCreate.Handle("/unit/{unit_id}/status", api.Middleware(http.HandlerFunc(u.UpdateUnitStatusHandler))).Methods("PUT")
	apiCreate.Handle("/unit/{unit_id}/location", api.Middleware(http.HandlerFunc(u.UpdateUnitLocationHandler))).Methods("PUT")
	apiCreate.Handle("/unit/{unit_id}/release", api.Middleware(http.HandlerFunc(u.ReleaseUnitHandler))).Methods("POST")
	apiCreate.Handle("/unit/{unit_id}/nearby-incidents", api.Middleware(http.HandlerFunc(u.NearbyIncidentsHandler))).Methods("GET")
	apiCreate.Handle("/unit/{unit_id}/maintenance", api.Middleware(http.HandlerFunc(u.ScheduleMaintenanceHandler))).Methods("POST")
	apiCreate.Handle("/units", api.Middleware(http.HandlerFunc(u.RescueUnitHandler))).Methods("GET")
	apiCreate.Handle("/units/available/by-type", api.Middleware(http.HandlerFunc(u.AvailableUnitsByTypeHandler))).Methods("GET")
	apiCreate.Handle("/units/stats", api.Middleware(http.HandlerFunc(u.RescueUnitStatsHandler))).Methods("GET")

	apiCreate.Handle("/zone", api.Middleware(http.HandlerFunc(z.CreateFloodZoneHandler))).Methods("POST")
	apiCreate.Handle("/zone/{zone_id}", api.Middleware(http.HandlerFunc(z.FloodZoneByIDHandler))).Methods("GET")
	apiCreate.Handle("/zone/{zone_id}", api.Middleware(http.HandlerFunc(z.UpdateFloodZoneByIDHandler))).Methods("PUT")
	apiCreate.Handle("/zone/{zone_id}", api.Middleware(http.HandlerFunc(z.DeleteFloodZoneByIDHandler))).Methods("DELETE")
	apiCreate.Handle("/zones", api.Middleware(http.HandlerFunc(z.FloodZoneHandler))).Methods("GET")
	apiCreate.Handle("/zones/priority", api.Middleware(http.HandlerFunc(z.FloodZonePriorityHandler))).Methods("GET")

	apiCreate.Handle("/dispatch/plan", api.Middleware(http.HandlerFunc(d.PlanDispatchHandler))).Methods("POST")
	apiCreate.Handle("/dispatch/commit", api.Middleware(http.HandlerFunc(d.CommitDispatchHandler))).Methods("POST")
	apiCreate.Handle("/dispatch/coverage-gaps", api.Middleware(http.HandlerFunc(d.CoverageGapsHandler))).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("flood-response-api has connected to the database")

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

// StartScheduler wires the background jobs against the live database and
// starts them. Initialize must have run first.
func (a *App) StartScheduler() *scheduler.Scheduler {
	s := scheduler.NewScheduler(
		databases.NewIncidentDatabase(a.dbHelper),
		databases.NewRescueUnitDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
	)
	s.Start()
	return s
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
