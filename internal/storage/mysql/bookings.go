package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hotel_booking/internal/domain"
)

func scanBooking(sc scanner) (domain.Booking, error) {
	var (
		b                  domain.Booking
		room               domain.RoomSummary
		special            sql.NullString
		createdBy          sql.NullInt64
		name, email, phone sql.NullString
	)
	if err := sc.Scan(
		&b.ID, &b.Reference, &b.GuestID, &b.RoomID, &b.Stay.CheckIn, &b.Stay.CheckOut,
		&b.GuestCount, &b.Nights, &b.TotalAmount, &b.Status, &special, &createdBy,
		&b.CreatedAt, &b.UpdatedAt,
		&room.RoomNumber, &room.Type, &room.Price,
		&name, &email, &phone,
	); err != nil {
		return domain.Booking{}, err
	}
	if special.Valid {
		s := special.String
		b.SpecialRequests = &s
	}
	if createdBy.Valid {
		id := createdBy.Int64
		b.CreatedBy = &id
	}
	room.ID = b.RoomID
	b.Room = &room
	if email.Valid {
		b.Guest = &domain.GuestSummary{ID: b.GuestID, Name: name.String, Email: email.String, Phone: phone.String}
	}
	return b, nil
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]domain.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()
	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func getBooking(ctx context.Context, q querier, query string, args ...any) (domain.Booking, error) {
	b, err := scanBooking(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// statusFilter renders "AND b.status [NOT] IN (...)" for a non-empty set.
func statusFilter(not bool, set []domain.BookingStatus) (string, []any) {
	if len(set) == 0 {
		return "", nil
	}
	args := make([]any, len(set))
	for i, s := range set {
		args[i] = string(s)
	}
	op := " IN ("
	if not {
		op = " NOT IN ("
	}
	return " AND b.status" + op + strings.TrimSuffix(strings.Repeat("?,", len(set)), ",") + ")", args
}

func (s *Store) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	return getBooking(ctx, s.db, getBookingSQL, id)
}

func (s *Store) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	query := bookingSelect + `WHERE (? = 0 OR b.guest_id = ?) AND (? = 0 OR b.room_id = ?)
ORDER BY b.check_in DESC, b.id DESC`
	args := []any{q.GuestID, q.GuestID, q.RoomID, q.RoomID}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}
	return queryBookings(ctx, s.db, query, args...)
}

func (s *Store) RoomBookings(ctx context.Context, roomID int64, excluded []domain.BookingStatus) ([]domain.Booking, error) {
	return roomBookings(ctx, s.db, roomID, true, excluded)
}

func roomBookings(ctx context.Context, q querier, roomID int64, not bool, set []domain.BookingStatus) ([]domain.Booking, error) {
	filter, fargs := statusFilter(not, set)
	query := bookingSelect + `WHERE b.room_id = ?` + filter + ` ORDER BY b.check_in`
	return queryBookings(ctx, q, query, append([]any{roomID}, fargs...)...)
}

func (s *Store) BookingsInWindow(ctx context.Context, propertyID int64, w domain.DateRange) ([]domain.Booking, error) {
	return queryBookings(ctx, s.db, bookingsInWindowSQL, propertyID, w.CheckOut, w.CheckIn)
}
