package app

import (
	"context"

	"hotel_booking/internal/domain"
)

const defaultListLimit = 200

// GetBooking returns a booking to staff or to the guest who owns it.
func (s *BookingService) GetBooking(ctx context.Context, p domain.Principal, id int64) (domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !p.Role.IsStaff() && !p.Owns(b) {
		return domain.Booking{}, domain.ErrForbidden
	}
	return b, nil
}

// ListBookings is the staff view over every booking, latest check-in first.
func (s *BookingService) ListBookings(ctx context.Context, p domain.Principal, q domain.BookingsQuery) ([]domain.Booking, error) {
	if !p.Role.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if q.Limit <= 0 || q.Limit > defaultListLimit {
		q.Limit = defaultListLimit
	}
	return s.store.ListBookings(ctx, q)
}

func (s *BookingService) ListMyBookings(ctx context.Context, p domain.Principal) ([]domain.Booking, error) {
	if p.ID == 0 {
		return nil, domain.ErrForbidden
	}
	return s.store.ListBookings(ctx, domain.BookingsQuery{GuestID: p.ID, Limit: defaultListLimit})
}
