// Package proximity computes great-circle distance from the latest location
// fix to the nearest known report.
package proximity

import (
	"errors"

	"github.com/roadmedic/reportsync/internal/domain"
)

// ErrUnavailable means no nearest distance exists: either no fix has been
// delivered yet or there are no reports to measure against.
var ErrUnavailable = errors.New("nearest distance unavailable")

// Nearest returns the distance in meters from the fix to the closest
// report. Reports with out-of-range coordinates are skipped; a nil fix, an
// empty set, or a set with no measurable report yields ErrUnavailable.
func Nearest(reports []domain.Report, fix *domain.Fix) (float64, error) {
	if fix == nil || len(reports) == 0 {
		return 0, ErrUnavailable
	}

	best := -1.0
	for _, r := range reports {
		d, err := domain.DistanceMeters(fix.Point, r.Location)
		if err != nil {
			continue
		}
		if best < 0 || d < best {
			best = d
		}
	}
	if best < 0 {
		return 0, ErrUnavailable
	}
	return best, nil
}
