package services

import (
	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Overlaps reports whether the half-open intervals [aFrom, aTo) and [bFrom, bTo)
// share any sub-range. Segments that only touch at a station do not overlap.
// Every conflict decision in this package goes through this function.
func Overlaps(aFrom, aTo, bFrom, bTo int) bool {
	return !(aTo <= bFrom || aFrom >= bTo)
}

// Segment is a travel interval expressed in station orders, [From, To)
type Segment struct {
	From int
	To   int
}

// Overlaps reports whether s and other conflict
func (s Segment) Overlaps(other Segment) bool {
	return Overlaps(s.From, s.To, other.From, other.To)
}

// SegmentOnRoute resolves two station names against a route
func SegmentOnRoute(route *models.Route, fromStation, toStation string) (Segment, error) {
	fromOrder, ok := route.OrderOf(fromStation)
	if !ok {
		return Segment{}, newError(KindStationNotOnRoute, "station %q is not on the route of vehicle %d", fromStation, route.VehicleID)
	}
	toOrder, ok := route.OrderOf(toStation)
	if !ok {
		return Segment{}, newError(KindStationNotOnRoute, "station %q is not on the route of vehicle %d", toStation, route.VehicleID)
	}
	if fromOrder >= toOrder {
		return Segment{}, newError(KindInvalidSegment, "%s does not come before %s on vehicle %d", fromStation, toStation, route.VehicleID)
	}
	return Segment{From: fromOrder, To: toOrder}, nil
}

// allocationConflicts reports whether an existing allocation blocks seg.
// An allocation whose stations no longer resolve on the route is treated as
// blocking, since its true interval is unknown.
func allocationConflicts(route *models.Route, allocation models.SeatAllocation, seg Segment) (conflict, resolved bool) {
	held, err := SegmentOnRoute(route, allocation.FromStation, allocation.ToStation)
	if err != nil {
		return true, false
	}
	return held.Overlaps(seg), true
}

// findOverlaps returns every pair of allocations of the same seat whose segments overlap.
// Allocations are expected to belong to a single run.
func findOverlaps(route *models.Route, allocations []models.SeatAllocation) []models.IntegrityViolation {
	bySeat := make(map[int64][]models.SeatAllocation)
	seatOrder := make([]int64, 0)
	for _, a := range allocations {
		if _, seen := bySeat[a.SeatID]; !seen {
			seatOrder = append(seatOrder, a.SeatID)
		}
		bySeat[a.SeatID] = append(bySeat[a.SeatID], a)
	}

	var violations []models.IntegrityViolation
	for _, seatID := range seatOrder {
		held := bySeat[seatID]
		for i := 0; i < len(held); i++ {
			for j := i + 1; j < len(held); j++ {
				segA, errA := SegmentOnRoute(route, held[i].FromStation, held[i].ToStation)
				segB, errB := SegmentOnRoute(route, held[j].FromStation, held[j].ToStation)
				if errA == nil && errB == nil && !segA.Overlaps(segB) {
					continue
				}
				violations = append(violations, models.IntegrityViolation{
					RunID:       held[i].RunID,
					SeatID:      seatID,
					AllocationA: held[i].ID,
					AllocationB: held[j].ID,
					OrderA:      held[i].OrderID,
					OrderB:      held[j].OrderID,
				})
			}
		}
	}
	return violations
}
