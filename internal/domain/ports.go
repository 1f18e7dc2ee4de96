package domain

import "context"

// Store is the persistence port. Plain reads run lock-free against committed state;
// every booking write goes through WithRoomLock.
type Store interface {
	RoomRepository
	BookingRepository
	UserRepository

	// WithRoomLock runs fn while holding an exclusive lock on the room. Writes made through
	// the RoomTx become visible only if fn returns nil. A missing or deleted room yields
	// ErrRoomNotFound without calling fn.
	WithRoomLock(ctx context.Context, roomID int64, fn func(tx RoomTx) error) error
}

type RoomRepository interface {
	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id int64) (Room, error)
	ListRooms(ctx context.Context, q RoomsQuery) ([]Room, error)
	UpdateRoom(ctx context.Context, id int64, p RoomPatch) (Room, error)

	AddRoomImage(ctx context.Context, img *RoomImage) error
	SetPrimaryImage(ctx context.Context, roomID, imageID int64) error
	DeleteRoomImage(ctx context.Context, roomID, imageID int64) error
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id int64) (Booking, error)
	ListBookings(ctx context.Context, q BookingsQuery) ([]Booking, error)
	// RoomBookings returns the room's bookings whose status is not in excluded.
	RoomBookings(ctx context.Context, roomID int64, excluded []BookingStatus) ([]Booking, error)
	// BookingsInWindow returns non-cancelled bookings of the property's rooms whose dates
	// touch the closed window [w.CheckIn, w.CheckOut].
	BookingsInWindow(ctx context.Context, propertyID int64, w DateRange) ([]Booking, error)
}

type UserRepository interface {
	GetUser(ctx context.Context, id int64) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u *User) error
}

// RoomTx is storage as seen from inside a room's critical section.
type RoomTx interface {
	// Room is the locked row as read at lock time.
	Room() Room
	ActiveBookings(ctx context.Context) ([]Booking, error)
	// Booking loads a booking of the locked room.
	Booking(ctx context.Context, id int64) (Booking, error)
	// InsertBooking sets b.ID; a clashing reference yields ErrDuplicateReference.
	InsertBooking(ctx context.Context, b *Booking) error
	UpdateBookingStatus(ctx context.Context, id int64, s BookingStatus) error
	SetRoomStatus(ctx context.Context, s RoomStatus) error
	DeleteRoom(ctx context.Context) error

	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u *User) error
}

// Cache holds occupancy snapshots. Get reports a miss as (false, nil) and an unreadable
// value as an error, which callers treat as a miss.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// BookingNotice is the payload handed to the notification collaborator.
type BookingNotice struct {
	MessageID   string `json:"messageId"`
	BookingID   int64  `json:"bookingId"`
	Reference   string `json:"bookingNumber"`
	GuestName   string `json:"guestName"`
	GuestEmail  string `json:"guestEmail"`
	RoomNumber  string `json:"roomNumber"`
	CheckIn     string `json:"checkInDate"`
	CheckOut    string `json:"checkOutDate"`
	Nights      int    `json:"nights"`
	TotalAmount Money  `json:"totalAmount"`
	Status      string `json:"status"`
	WalkIn      bool   `json:"walkIn"`
}

type Notifier interface {
	NotifyBooking(ctx context.Context, n BookingNotice) error
}
