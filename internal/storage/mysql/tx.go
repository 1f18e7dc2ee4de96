package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hotel_booking/internal/domain"
)

// WithRoomLock opens a transaction holding the room row FOR UPDATE. Concurrent writers on the
// same room queue on that lock; everything fn writes commits or rolls back together.
func (s *Store) WithRoomLock(ctx context.Context, roomID int64, fn func(tx domain.RoomTx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		room, err := getRoom(ctx, tx, lockRoomSQL, roomID)
		if err != nil {
			return err
		}
		return fn(&roomTx{tx: tx, room: room, now: s.now})
	})
}

type roomTx struct {
	tx   *sql.Tx
	room domain.Room
	now  func() time.Time
}

func (t *roomTx) Room() domain.Room { return t.room }

func (t *roomTx) ActiveBookings(ctx context.Context) ([]domain.Booking, error) {
	return roomBookings(ctx, t.tx, t.room.ID, true, domain.BlockingExcluded)
}

func (t *roomTx) Booking(ctx context.Context, id int64) (domain.Booking, error) {
	return getBooking(ctx, t.tx, getRoomBookingSQL, id, t.room.ID)
}

func (t *roomTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	now := t.now()
	res, err := t.tx.ExecContext(ctx, insertBookingSQL,
		b.Reference, b.GuestID, t.room.ID, b.Stay.CheckIn, b.Stay.CheckOut,
		b.GuestCount, b.Nights, b.TotalAmount, b.Status,
		valStrPtr(b.SpecialRequests), valInt64(b.CreatedBy), now, now,
	)
	if isDuplicate(err) {
		return domain.ErrDuplicateReference
	}
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if b.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	b.RoomID = t.room.ID
	b.CreatedAt, b.UpdatedAt = now, now
	return nil
}

func (t *roomTx) UpdateBookingStatus(ctx context.Context, id int64, st domain.BookingStatus) error {
	if _, err := t.Booking(ctx, id); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, updateBookingStatusSQL, st, t.now(), id, t.room.ID); err != nil {
		return fmt.Errorf("update booking %d: %w", id, err)
	}
	return nil
}

func (t *roomTx) SetRoomStatus(ctx context.Context, st domain.RoomStatus) error {
	if _, err := t.tx.ExecContext(ctx, setRoomStatusSQL, st, t.now(), t.room.ID); err != nil {
		return fmt.Errorf("set room %d status: %w", t.room.ID, err)
	}
	t.room.Status = st
	return nil
}

// DeleteRoom soft-deletes the room and drops its images; bookings keep referencing the row.
func (t *roomTx) DeleteRoom(ctx context.Context) error {
	now := t.now()
	if _, err := t.tx.ExecContext(ctx, softDeleteRoomSQL, now, now, t.room.ID); err != nil {
		return fmt.Errorf("delete room %d: %w", t.room.ID, err)
	}
	if _, err := t.tx.ExecContext(ctx, deleteRoomImagesSQL, t.room.ID); err != nil {
		return fmt.Errorf("delete room %d images: %w", t.room.ID, err)
	}
	return nil
}

func (t *roomTx) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return getUser(ctx, t.tx, getUserByEmailSQL, emailKey(email))
}

func (t *roomTx) CreateUser(ctx context.Context, u *domain.User) error {
	return insertUser(ctx, t.tx, u, t.now())
}
