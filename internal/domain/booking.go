package domain

import "time"

type BookingStatus string

const (
	StatusPending       BookingStatus = "pending"
	StatusConfirmed     BookingStatus = "confirmed"
	StatusCheckedIn     BookingStatus = "checked_in"
	StatusCheckedOut    BookingStatus = "checked_out"
	StatusCancelPending BookingStatus = "cancelPending"
	StatusCancelled     BookingStatus = "cancelled"
)

// roomEffects is the lifecycle table: the room status forced by entering a booking status.
// An empty value leaves the room untouched.
var roomEffects = map[BookingStatus]RoomStatus{
	StatusPending:       "",
	StatusConfirmed:     RoomBooked,
	StatusCheckedIn:     RoomBooked,
	StatusCheckedOut:    RoomAvailable,
	StatusCancelPending: "",
	StatusCancelled:     RoomAvailable,
}

// ParseBookingStatus rejects anything outside the six recognized values.
func ParseBookingStatus(s string) (BookingStatus, error) {
	st := BookingStatus(s)
	if _, ok := roomEffects[st]; !ok {
		return "", Detail(ErrInvalidStatus, "%q", s)
	}
	return st, nil
}

func (s BookingStatus) Valid() bool {
	_, ok := roomEffects[s]
	return ok
}

// RoomEffect returns the room status implied by s, and false when the room keeps its status.
func (s BookingStatus) RoomEffect() (RoomStatus, bool) {
	rs := roomEffects[s]
	return rs, rs != ""
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusCheckedOut
}

// BlockingExcluded lists statuses skipped by the conflict scan; such bookings no longer hold their room.
var BlockingExcluded = []BookingStatus{StatusCancelled, StatusCheckedOut}

// HoldsRoom reports whether a booking in status s still claims its dates.
func (s BookingStatus) HoldsRoom() bool {
	for _, x := range BlockingExcluded {
		if s == x {
			return false
		}
	}
	return true
}

type Booking struct {
	ID              int64
	Reference       string
	GuestID         int64
	RoomID          int64
	Stay            DateRange
	GuestCount      int
	Nights          int
	TotalAmount     Money
	Status          BookingStatus
	SpecialRequests *string
	CreatedBy       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Room  *RoomSummary
	Guest *GuestSummary
}

type RoomSummary struct {
	ID         int64
	RoomNumber string
	Type       RoomType
	Price      Money
}

type GuestSummary struct {
	ID    int64
	Name  string
	Email string
	Phone string
}

// BookingsQuery filters booking listings. Zero values mean no filter.
type BookingsQuery struct {
	GuestID int64
	RoomID  int64
	Limit   int
}
