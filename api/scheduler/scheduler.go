package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/floodnet-dev/flood-response-api/databases"
	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/models"
	templates "github.com/floodnet-dev/flood-response-api/templates/html"
)

// Sweep and digest parameters. The sweep radius is wider than the
// interactive default because a background pass is the last resort for
// incidents nobody dispatched by hand.
const (
	sweepMaxRadiusKm  = 75.0
	digestGridKm      = 10.0
	digestRadiusKm    = 25.0
	digestMaxGapLines = 40
)

// Scheduler handles periodic background jobs for the dispatch service
type Scheduler struct {
	cron       *cron.Cron
	IDB        databases.IncidentDatabase
	UDB        databases.RescueUnitDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	iDB databases.IncidentDatabase,
	uDB databases.RescueUnitDatabase,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		IDB:        iDB,
		UDB:        uDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Sweep unassigned incidents every 2 minutes
	_, err := s.cron.AddFunc("*/2 * * * *", s.dispatchSweep)
	if err != nil {
		zap.S().Errorw("failed to register dispatch sweep job", "error", err)
	}

	// Flag units past their maintenance date daily at 4 AM UTC
	_, err = s.cron.AddFunc("0 4 * * *", s.maintenanceScan)
	if err != nil {
		zap.S().Errorw("failed to register maintenance scan job", "error", err)
	}

	// Email the coverage gap digest daily at 6 AM UTC
	_, err = s.cron.AddFunc("0 6 * * *", s.coverageDigest)
	if err != nil {
		zap.S().Errorw("failed to register coverage digest job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Dispatch scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Dispatch scheduler stopped")
}

// dispatchSweep picks up incidents that nobody dispatched by hand and runs
// the batch planner over the available fleet
func (s *Scheduler) dispatchSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	// Try to acquire distributed lock (2 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "dispatch_sweep", s.instanceID, 2*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for dispatch sweep", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Dispatch sweep already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "dispatch_sweep", s.instanceID)

	incidents, err := s.IDB.Find(ctx, bson.M{
		"incident.status": bson.M{"$in": bson.A{models.IncidentReported, models.IncidentVerified}},
	})
	if err != nil {
		zap.S().Errorw("failed to load unassigned incidents", "error", err)
		return
	}
	if len(incidents) == 0 {
		return
	}

	units, err := s.UDB.Find(ctx, bson.M{
		"rescueUnit.status": bson.M{"$in": bson.A{models.UnitAvailable, models.UnitStandby}},
	})
	if err != nil {
		zap.S().Errorw("failed to load dispatchable units", "error", err)
		return
	}

	planner := dispatch.NewPlanner(s.UDB)
	planner.MaxRadiusKm = sweepMaxRadiusKm

	now := time.Now()
	results, _, err := planner.CommitPlan(ctx, incidents, units, now)
	if err != nil {
		zap.S().Errorw("dispatch sweep planning failed", "error", err)
		return
	}

	byIncident := make(map[string]models.Incident, len(incidents))
	for _, inc := range incidents {
		byIncident[inc.ID.Hex()] = inc
	}

	assigned := 0
	for _, res := range results {
		if !res.Assigned {
			continue
		}
		inc, ok := byIncident[res.IncidentID]
		if !ok {
			continue
		}
		if err := s.markAssigned(ctx, inc, res, now); err != nil {
			zap.S().Errorw("failed to persist sweep assignment",
				"error", err,
				"incidentId", res.IncidentID,
				"unitId", res.UnitID,
			)
			continue
		}
		assigned++
	}

	zap.S().Infow("Dispatch sweep complete",
		"instance", s.instanceID,
		"incidentsConsidered", len(incidents),
		"assigned", assigned,
	)
}

// markAssigned moves the incident straight to assigned and records which
// unit took it. The sweep is the assigner of record; verification stays a
// human act and is never stamped here.
func (s *Scheduler) markAssigned(ctx context.Context, inc models.Incident, res models.AssignmentResult, at time.Time) error {
	updated, err := dispatch.TransitionIncident(inc, models.IncidentAssigned, at)
	if err != nil {
		return err
	}
	updated.Details.AssignedUnitID = res.UnitID
	updated.Details.AssignedByID = "scheduler:" + s.instanceID
	updated.Details.UpdatedAt = primitive.NewDateTimeFromTime(at)

	update := bson.M{
		"$set": bson.M{"incident": updated.Details},
		"$inc": bson.M{"__v": 1},
	}
	_, err = s.IDB.UpdateOne(ctx, bson.M{"_id": inc.ID}, update)
	return err
}

// maintenanceScan moves idle units past their maintenance date out of the
// dispatch pool and emails the list to operations
func (s *Scheduler) maintenanceScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "maintenance_scan", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for maintenance scan", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Maintenance scan already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "maintenance_scan", s.instanceID)

	now := time.Now()
	units, err := s.UDB.Find(ctx, bson.M{
		"rescueUnit.status":          bson.M{"$in": bson.A{models.UnitAvailable, models.UnitStandby}},
		"rescueUnit.nextMaintenance": bson.M{"$gt": primitive.DateTime(0), "$lt": primitive.NewDateTimeFromTime(now)},
	})
	if err != nil {
		zap.S().Errorw("failed to find units due for maintenance", "error", err)
		return
	}
	if len(units) == 0 {
		zap.S().Infow("Maintenance scan complete", "instance", s.instanceID, "flagged", 0)
		return
	}

	var lines []string
	flagged := 0
	for _, u := range units {
		moved, err := dispatch.TransitionUnit(u, models.UnitMaintenance, "", now)
		if err != nil {
			zap.S().Warnw("unit transition to maintenance rejected",
				"error", err, "unitId", u.ID.Hex(), "status", u.Details.Status)
			continue
		}
		update := bson.M{
			"$set": bson.M{"rescueUnit": moved.Details},
			"$inc": bson.M{"__v": 1},
		}
		if _, err := s.UDB.UpdateOne(ctx, bson.M{"_id": u.ID}, update); err != nil {
			zap.S().Errorw("failed to flag unit for maintenance", "error", err, "unitId", u.ID.Hex())
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s) due %s",
			u.Details.UnitName, u.Details.CallSign,
			u.Details.NextMaintenance.Time().UTC().Format("2006-01-02")))
		flagged++
	}

	if flagged > 0 {
		subject := fmt.Sprintf("%d units due for maintenance", flagged)
		htmlContent := templates.RenderMaintenanceDueEmail(strings.Join(lines, "\n"))
		plainText := "Units past their maintenance date:\n" + strings.Join(lines, "\n")
		if err := s.sendOpsEmail(subject, htmlContent, plainText); err != nil {
			zap.S().Errorw("failed to send maintenance email", "error", err)
		}
	}

	zap.S().Infow("Maintenance scan complete", "instance", s.instanceID, "flagged", flagged)
}

// coverageDigest scans the fleet footprint for uncovered grid points and
// mails the digest to operations
func (s *Scheduler) coverageDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "coverage_digest", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for coverage digest", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Coverage digest already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "coverage_digest", s.instanceID)

	units, err := s.UDB.Find(ctx, bson.M{})
	if err != nil {
		zap.S().Errorw("failed to load fleet for coverage digest", "error", err)
		return
	}

	gaps, err := dispatch.FindGaps(units, digestGridKm, digestRadiusKm)
	if err != nil {
		zap.S().Errorw("coverage scan failed", "error", err)
		return
	}

	var lines []string
	for i, g := range gaps {
		if i >= digestMaxGapLines {
			lines = append(lines, fmt.Sprintf("... and %d more", len(gaps)-digestMaxGapLines))
			break
		}
		lines = append(lines, fmt.Sprintf("%.4f, %.4f", g.Latitude, g.Longitude))
	}

	subject := fmt.Sprintf("Coverage digest: %d gaps", len(gaps))
	htmlContent := templates.RenderCoverageDigestEmail(len(gaps), digestGridKm, digestRadiusKm, strings.Join(lines, "\n"))
	plainText := fmt.Sprintf("Coverage scan found %d uncovered grid points.", len(gaps))
	if err := s.sendOpsEmail(subject, htmlContent, plainText); err != nil {
		zap.S().Errorw("failed to send coverage digest", "error", err)
	}

	zap.S().Infow("Coverage digest complete", "instance", s.instanceID, "gaps", len(gaps))
}

func (s *Scheduler) sendOpsEmail(subject, htmlContent, plainText string) error {
	toEmail := os.Getenv("OPS_ALERT_EMAIL")
	if toEmail == "" {
		zap.S().Debug("OPS_ALERT_EMAIL not set, skipping ops email")
		return nil
	}

	from := mail.NewEmail("FloodNet Response", "no-reply@floodnet-response.org")
	to := mail.NewEmail("Operations", toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}
