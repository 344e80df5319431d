package dispatch

import (
	"math"

	"github.com/floodnet-dev/flood-response-api/geo"
	"github.com/floodnet-dev/flood-response-api/models"
)

// boundsPaddingDeg widens the analysis box past the outermost units so gaps
// on the fleet's fringe are still reported
const boundsPaddingDeg = 0.5

// FindGaps samples a regular grid over the area around the operational fleet
// and reports every grid point not within coverageRadiusKm of any
// operational unit. Cost is O(grid points x units), which is fine at fleet
// scale (tens of units, city-sized grids) but does not scale to large fleets
// without a spatial index
func FindGaps(units []models.RescueUnit, gridSpacingKm, coverageRadiusKm float64) ([]models.CoverageGap, error) {
	var positions []geo.Coordinate
	var operational []models.RescueUnit
	for _, u := range units {
		if !IsOperational(u.Details.Status) {
			continue
		}
		pos := UnitLocation(u)
		if err := pos.Validate(); err != nil {
			return nil, err
		}
		operational = append(operational, u)
		positions = append(positions, pos)
	}
	if len(operational) == 0 {
		return nil, nil
	}

	box := geo.Bounds(positions)
	box.MinLatitude -= boundsPaddingDeg
	box.MaxLatitude += boundsPaddingDeg
	box.MinLongitude -= boundsPaddingDeg
	box.MaxLongitude += boundsPaddingDeg

	latStep := gridSpacingKm / 111.0
	lonStep := gridSpacingKm / (111.0 * 0.8)

	var gaps []models.CoverageGap
	for lat := box.MinLatitude; lat <= box.MaxLatitude; lat += latStep {
		for lon := box.MinLongitude; lon <= box.MaxLongitude; lon += lonStep {
			point := geo.Coordinate{
				Latitude:  math.Max(-90, math.Min(90, lat)),
				Longitude: math.Max(-180, math.Min(180, geo.NormalizeLongitude(lon))),
			}
			covered := false
			for _, pos := range positions {
				within, err := geo.WithinRadius(pos, point, coverageRadiusKm)
				if err != nil {
					return nil, err
				}
				if within {
					covered = true
					break
				}
			}
			if !covered {
				gaps = append(gaps, models.CoverageGap{Latitude: point.Latitude, Longitude: point.Longitude})
			}
		}
	}

	return gaps, nil
}
