package domain

import (
	"math"
	"strconv"
	"time"
)

type RoomType string

const (
	RoomStandard RoomType = "standard"
	RoomSuite    RoomType = "suite"
	RoomDeluxe   RoomType = "deluxe"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomStandard, RoomSuite, RoomDeluxe:
		return true
	}
	return false
}

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomBooked      RoomStatus = "booked"
	RoomPending     RoomStatus = "pending"
	RoomMaintenance RoomStatus = "maintenance"
)

func (s RoomStatus) Valid() bool {
	switch s {
	case RoomAvailable, RoomBooked, RoomPending, RoomMaintenance:
		return true
	}
	return false
}

type Room struct {
	ID          int64
	PropertyID  int64
	Number      string
	Type        RoomType
	Price       Money
	Capacity    int
	Climate     bool
	Description string
	Amenities   []string
	Status      RoomStatus
	// Maintenance takes the room out of service regardless of its bookings.
	Maintenance bool
	Images      []RoomImage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Blocked reports whether the room refuses bookings for operational reasons.
// Occupancy is never read from Status; the booking intervals are authoritative for that.
func (r Room) Blocked() bool {
	return r.Maintenance || r.Status == RoomMaintenance
}

type RoomImage struct {
	ID      int64
	RoomID  int64
	URL     string
	Primary bool
}

type RoomsQuery struct {
	PropertyID int64
	Status     RoomStatus
	Type       RoomType
	Number     string
}

// RoomPatch carries an administrative edit; nil fields are left unchanged.
type RoomPatch struct {
	Type        *RoomType
	Price       *Money
	Capacity    *int
	Description *string
	Climate     *bool
	Maintenance *bool
	Amenities   []string
}

// Money is an amount in cents.
type Money int64

func MoneyFromFloat(f float64) Money { return Money(math.Round(f * 100)) }

func (m Money) Float() float64 { return float64(m) / 100 }

func (m Money) Times(n int) Money { return m * Money(n) }

func (m Money) String() string { return strconv.FormatFloat(m.Float(), 'f', 2, 64) }

func (m Money) MarshalJSON() ([]byte, error) { return []byte(m.String()), nil }

func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*m = MoneyFromFloat(f)
	return nil
}
