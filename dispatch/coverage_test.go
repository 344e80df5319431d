package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/floodnet-dev/flood-response-api/dispatch"
	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

func TestFindGaps_SingleUnitLeavesCorners(t *testing.T) {
	// a lone unit at the center of a roughly 1x1 degree service area
	center := unitAt("WR 1", models.UnitWaterRescue, models.UnitAvailable, 9.5, 78.5, 6)
	corners := []models.RescueUnit{
		unitAt("Post NW", models.UnitPolice, models.UnitOffline, 10.0, 78.0, 2),
		unitAt("Post SE", models.UnitPolice, models.UnitOffline, 9.0, 79.0, 2),
	}
	units := append([]models.RescueUnit{center}, corners...)

	gaps, err := dispatch.FindGaps(units, 10, 25)
	assert.NoError(t, err)
	assert.NotEmpty(t, gaps)

	base := geo.Coordinate{Latitude: 9.5, Longitude: 78.5}
	for _, gap := range gaps {
		d, derr := geo.DistanceKm(base, geo.Coordinate{Latitude: gap.Latitude, Longitude: gap.Longitude})
		assert.NoError(t, derr)
		assert.Greater(t, d, 25.0, "gap at (%f,%f) sits inside the coverage radius", gap.Latitude, gap.Longitude)
	}
}

func TestFindGaps_OfflineUnitsDoNotCover(t *testing.T) {
	online := unitAt("WR 1", models.UnitWaterRescue, models.UnitAvailable, 9.5, 78.5, 6)
	offline := online
	offline.Details.Status = models.UnitOffline

	withCover, err := dispatch.FindGaps([]models.RescueUnit{online, offline}, 10, 25)
	assert.NoError(t, err)

	// an operational unit alongside the dead one means its own cell is covered
	for _, gap := range withCover {
		d, derr := geo.DistanceKm(
			geo.Coordinate{Latitude: 9.5, Longitude: 78.5},
			geo.Coordinate{Latitude: gap.Latitude, Longitude: gap.Longitude},
		)
		assert.NoError(t, derr)
		assert.Greater(t, d, 25.0)
	}
}

func TestFindGaps_NoOperationalUnits(t *testing.T) {
	dead := unitAt("WR 1", models.UnitWaterRescue, models.UnitMaintenance, 9.5, 78.5, 6)

	gaps, err := dispatch.FindGaps([]models.RescueUnit{dead}, 10, 25)
	assert.NoError(t, err)
	assert.Nil(t, gaps)
}

func TestFindGaps_DenseFleetHasNoGaps(t *testing.T) {
	// units every ~0.15 degrees, with a radius wide enough to reach the
	// padded corners of the scanned bounds
	var units []models.RescueUnit
	for lat := 8.5; lat <= 10.5; lat += 0.15 {
		for lon := 77.5; lon <= 79.5; lon += 0.15 {
			units = append(units, unitAt("grid", models.UnitEmergencyServices, models.UnitAvailable, lat, lon, 4))
		}
	}

	gaps, err := dispatch.FindGaps(units, 25, 90)
	assert.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestFindGaps_GapCountGrowsWithFinerGrid(t *testing.T) {
	units := []models.RescueUnit{
		unitAt("WR 1", models.UnitWaterRescue, models.UnitAvailable, 9.5, 78.5, 6),
		unitAt("WR 2", models.UnitWaterRescue, models.UnitAvailable, 10.5, 79.5, 6),
	}

	coarse, err := dispatch.FindGaps(units, 50, 25)
	assert.NoError(t, err)
	fine, err := dispatch.FindGaps(units, 10, 25)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, len(fine), len(coarse))
}
