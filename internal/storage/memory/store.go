// Package memory is an in-process Store used in dev mode and by tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"hotel_booking/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[int64]domain.Room
	deleted  map[int64]time.Time
	bookings map[int64]domain.Booking
	refs     map[string]int64
	users    map[int64]domain.User
	emails   map[string]int64
	seq      int64

	locksMu sync.Mutex
	locks   map[int64]chan struct{}

	now func() time.Time
}

func New() *Store {
	return &Store{
		rooms:    map[int64]domain.Room{},
		deleted:  map[int64]time.Time{},
		bookings: map[int64]domain.Booking{},
		refs:     map[string]int64{},
		users:    map[int64]domain.User{},
		emails:   map[string]int64{},
		locks:    map[int64]chan struct{}{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// nextID must be called with mu held for writing.
func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

func emailKey(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

// ---- rooms ----

func (s *Store) CreateRoom(ctx context.Context, r *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.rooms {
		if _, gone := s.deleted[id]; !gone && other.Number == r.Number {
			return domain.ErrRoomNumberTaken
		}
	}
	r.ID = s.nextID()
	if r.Status == "" {
		r.Status = domain.RoomAvailable
	}
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	for i := range r.Images {
		r.Images[i].ID = s.nextID()
		r.Images[i].RoomID = r.ID
	}
	s.rooms[r.ID] = copyRoom(*r)
	return nil
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.liveRoom(id)
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	return copyRoom(r), nil
}

func (s *Store) liveRoom(id int64) (domain.Room, bool) {
	r, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	if _, gone := s.deleted[id]; gone {
		return domain.Room{}, false
	}
	return r, true
}

func (s *Store) ListRooms(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Room
	for id, r := range s.rooms {
		if _, gone := s.deleted[id]; gone {
			continue
		}
		if q.PropertyID != 0 && r.PropertyID != q.PropertyID {
			continue
		}
		if q.Status != "" && r.Status != q.Status {
			continue
		}
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		if q.Number != "" && !strings.Contains(r.Number, q.Number) {
			continue
		}
		out = append(out, copyRoom(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) UpdateRoom(ctx context.Context, id int64, p domain.RoomPatch) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.liveRoom(id)
	if !ok {
		return domain.Room{}, domain.ErrRoomNotFound
	}
	if p.Type != nil {
		r.Type = *p.Type
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	if p.Capacity != nil {
		r.Capacity = *p.Capacity
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Climate != nil {
		r.Climate = *p.Climate
	}
	if p.Maintenance != nil {
		r.Maintenance = *p.Maintenance
	}
	if p.Amenities != nil {
		r.Amenities = append([]string(nil), p.Amenities...)
	}
	r.UpdatedAt = s.now()
	s.rooms[id] = r
	return copyRoom(r), nil
}

func (s *Store) AddRoomImage(ctx context.Context, img *domain.RoomImage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.liveRoom(img.RoomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	r = copyRoom(r)
	img.ID = s.nextID()
	if len(r.Images) == 0 {
		img.Primary = true
	}
	if img.Primary {
		for i := range r.Images {
			r.Images[i].Primary = false
		}
	}
	r.Images = append(r.Images, *img)
	s.rooms[r.ID] = r
	return nil
}

func (s *Store) SetPrimaryImage(ctx context.Context, roomID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.liveRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	found := false
	for _, img := range r.Images {
		found = found || img.ID == imageID
	}
	if !found {
		return domain.ErrImageNotFound
	}
	// the stored room shares its image slice with r
	r = copyRoom(r)
	for i := range r.Images {
		r.Images[i].Primary = r.Images[i].ID == imageID
	}
	s.rooms[roomID] = r
	return nil
}

func (s *Store) DeleteRoomImage(ctx context.Context, roomID, imageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.liveRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	idx := -1
	for i, img := range r.Images {
		if img.ID == imageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrImageNotFound
	}
	wasPrimary := r.Images[idx].Primary
	r.Images = append(r.Images[:idx:idx], r.Images[idx+1:]...)
	if wasPrimary && len(r.Images) > 0 {
		r.Images[0].Primary = true
	}
	s.rooms[roomID] = r
	return nil
}

// ---- bookings ----

func (s *Store) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return s.hydrate(b), nil
}

func (s *Store) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if q.GuestID != 0 && b.GuestID != q.GuestID {
			continue
		}
		if q.RoomID != 0 && b.RoomID != q.RoomID {
			continue
		}
		out = append(out, s.hydrate(b))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Stay.CheckIn.Equal(out[j].Stay.CheckIn) {
			return out[i].Stay.CheckIn.After(out[j].Stay.CheckIn)
		}
		return out[i].ID > out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) RoomBookings(ctx context.Context, roomID int64, excluded []domain.BookingStatus) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomBookings(roomID, excluded), nil
}

func (s *Store) roomBookings(roomID int64, excluded []domain.BookingStatus) []domain.Booking {
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.RoomID != roomID || statusIn(b.Status, excluded) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stay.CheckIn.Before(out[j].Stay.CheckIn) })
	return out
}

func (s *Store) BookingsInWindow(ctx context.Context, propertyID int64, w domain.DateRange) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		r, ok := s.liveRoom(b.RoomID)
		if !ok || r.PropertyID != propertyID || b.Status == domain.StatusCancelled {
			continue
		}
		if domain.OverlapsInclusive(b.Stay, w) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) hydrate(b domain.Booking) domain.Booking {
	if r, ok := s.rooms[b.RoomID]; ok {
		b.Room = &domain.RoomSummary{ID: r.ID, RoomNumber: r.Number, Type: r.Type, Price: r.Price}
	}
	if u, ok := s.users[b.GuestID]; ok {
		b.Guest = &domain.GuestSummary{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
	}
	return b
}

func statusIn(s domain.BookingStatus, set []domain.BookingStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}

// ---- users ----

func (s *Store) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[emailKey(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertUser(u)
}

func (s *Store) insertUser(u *domain.User) error {
	k := emailKey(u.Email)
	if _, taken := s.emails[k]; taken {
		return domain.ErrEmailTaken
	}
	if u.ID == 0 {
		u.ID = s.nextID()
	} else if u.ID > s.seq {
		s.seq = u.ID
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = *u
	s.emails[k] = u.ID
	return nil
}

func copyRoom(r domain.Room) domain.Room {
	r.Amenities = append([]string(nil), r.Amenities...)
	r.Images = append([]domain.RoomImage(nil), r.Images...)
	return r
}
