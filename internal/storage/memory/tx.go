package memory

import (
	"context"

	"hotel_booking/internal/domain"
)

func (s *Store) roomLock(id int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = make(chan struct{}, 1)
		s.locks[id] = l
	}
	return l
}

// WithRoomLock serializes callers per room. Writes are staged on the tx and applied in one
// step after fn returns nil, so an error or an abandoned context leaves no trace.
func (s *Store) WithRoomLock(ctx context.Context, roomID int64, fn func(tx domain.RoomTx) error) error {
	l := s.roomLock(roomID)
	select {
	case l <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l }()

	s.mu.RLock()
	room, ok := s.liveRoom(roomID)
	s.mu.RUnlock()
	if !ok {
		return domain.ErrRoomNotFound
	}

	t := &tx{s: s, room: copyRoom(room), statuses: map[int64]domain.BookingStatus{}}
	if err := fn(t); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.commit()
}

type tx struct {
	s    *Store
	room domain.Room

	inserted   []domain.Booking
	statuses   map[int64]domain.BookingStatus
	roomStatus domain.RoomStatus
	deleteRoom bool
	users      []domain.User
}

func (t *tx) Room() domain.Room { return t.room }

func (t *tx) ActiveBookings(ctx context.Context) ([]domain.Booking, error) {
	t.s.mu.RLock()
	committed := t.s.roomBookings(t.room.ID, nil)
	t.s.mu.RUnlock()

	var out []domain.Booking
	for _, b := range append(committed, t.inserted...) {
		if st, ok := t.statuses[b.ID]; ok {
			b.Status = st
		}
		if b.Status.HoldsRoom() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (t *tx) Booking(ctx context.Context, id int64) (domain.Booking, error) {
	for _, b := range t.inserted {
		if b.ID == id {
			return t.withStaged(b), nil
		}
	}
	t.s.mu.RLock()
	b, ok := t.s.bookings[id]
	if ok {
		b = t.s.hydrate(b)
	}
	t.s.mu.RUnlock()
	if !ok || b.RoomID != t.room.ID {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return t.withStaged(b), nil
}

func (t *tx) withStaged(b domain.Booking) domain.Booking {
	if st, ok := t.statuses[b.ID]; ok {
		b.Status = st
	}
	return b
}

func (t *tx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	t.s.mu.Lock()
	_, taken := t.s.refs[b.Reference]
	if !taken {
		b.ID = t.s.nextID()
	}
	t.s.mu.Unlock()
	if taken {
		return domain.ErrDuplicateReference
	}
	for _, x := range t.inserted {
		if x.Reference == b.Reference {
			return domain.ErrDuplicateReference
		}
	}
	now := t.s.now()
	b.RoomID = t.room.ID
	b.CreatedAt, b.UpdatedAt = now, now
	t.inserted = append(t.inserted, *b)
	return nil
}

func (t *tx) UpdateBookingStatus(ctx context.Context, id int64, st domain.BookingStatus) error {
	if _, err := t.Booking(ctx, id); err != nil {
		return err
	}
	t.statuses[id] = st
	return nil
}

func (t *tx) SetRoomStatus(ctx context.Context, st domain.RoomStatus) error {
	t.roomStatus = st
	t.room.Status = st
	return nil
}

func (t *tx) DeleteRoom(ctx context.Context) error {
	t.deleteRoom = true
	return nil
}

func (t *tx) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, u := range t.users {
		if emailKey(u.Email) == emailKey(email) {
			return u, nil
		}
	}
	return t.s.FindUserByEmail(ctx, email)
}

func (t *tx) CreateUser(ctx context.Context, u *domain.User) error {
	if _, err := t.FindUserByEmail(ctx, u.Email); err == nil {
		return domain.ErrEmailTaken
	}
	t.s.mu.Lock()
	u.ID = t.s.nextID()
	t.s.mu.Unlock()
	t.users = append(t.users, *u)
	return nil
}

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// Bookings and users touching other rooms may have committed meanwhile.
	for _, b := range t.inserted {
		if _, taken := s.refs[b.Reference]; taken {
			return domain.Internal("commit booking", domain.ErrDuplicateReference)
		}
	}
	for _, u := range t.users {
		if _, taken := s.emails[emailKey(u.Email)]; taken {
			return domain.ErrEmailTaken
		}
	}

	now := s.now()
	for i := range t.users {
		u := t.users[i]
		if err := s.insertUser(&u); err != nil {
			return err
		}
	}
	for _, b := range t.inserted {
		b.Room, b.Guest = nil, nil
		s.bookings[b.ID] = b
		s.refs[b.Reference] = b.ID
	}
	for id, st := range t.statuses {
		b := s.bookings[id]
		b.Status = st
		b.UpdatedAt = now
		s.bookings[id] = b
	}
	if r, ok := s.rooms[t.room.ID]; ok {
		if t.roomStatus != "" {
			r.Status = t.roomStatus
			r.UpdatedAt = now
		}
		if t.deleteRoom {
			s.deleted[r.ID] = now
			r.Images = nil
		}
		s.rooms[r.ID] = r
	}
	return nil
}
