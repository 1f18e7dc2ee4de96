package app

import (
	"context"

	"hotel_booking/internal/domain"
)

type AvailabilityService struct {
	store domain.Store
}

func NewAvailabilityService(s domain.Store) *AvailabilityService {
	return &AvailabilityService{store: s}
}

// IsAvailable reports whether no booking still holding the room overlaps stay.
// excludeID skips one booking, for callers re-checking an existing reservation.
func (s *AvailabilityService) IsAvailable(ctx context.Context, roomID int64, stay domain.DateRange, excludeID int64) (bool, error) {
	ok, _, err := s.check(ctx, roomID, stay, excludeID)
	return ok, err
}

// Check is the public availability probe: free dates and a room that is in service.
func (s *AvailabilityService) Check(ctx context.Context, roomID int64, stay domain.DateRange) (bool, error) {
	ok, room, err := s.check(ctx, roomID, stay, 0)
	if err != nil {
		return false, err
	}
	return ok && !room.Blocked(), nil
}

func (s *AvailabilityService) check(ctx context.Context, roomID int64, stay domain.DateRange, excludeID int64) (bool, domain.Room, error) {
	if !stay.Valid() {
		return false, domain.Room{}, domain.ErrInvertedDates
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return false, domain.Room{}, err
	}
	held, err := s.store.RoomBookings(ctx, roomID, domain.BlockingExcluded)
	if err != nil {
		return false, room, domain.Internal("load room bookings", err)
	}
	_, clash := firstConflict(held, stay, excludeID)
	return !clash, room, nil
}

// firstConflict scans bookings for one that still holds the room over stay.
func firstConflict(bookings []domain.Booking, stay domain.DateRange, excludeID int64) (domain.Booking, bool) {
	for _, b := range bookings {
		if b.ID == excludeID && excludeID != 0 {
			continue
		}
		if !b.Status.HoldsRoom() {
			continue
		}
		if domain.Overlaps(b.Stay, stay) {
			return b, true
		}
	}
	return domain.Booking{}, false
}
