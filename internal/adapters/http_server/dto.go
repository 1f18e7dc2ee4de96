package httpserver

import (
	"time"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

// ---- requests ----

type createBookingRequest struct {
	RoomID          int64   `json:"roomId" validate:"required,gt=0"`
	CheckInDate     string  `json:"checkInDate" validate:"required,datetime=2006-01-02"`
	CheckOutDate    string  `json:"checkOutDate" validate:"required,datetime=2006-01-02"`
	GuestCount      int     `json:"guestCount"`
	SpecialRequests *string `json:"specialRequests" validate:"omitempty,max=1000"`
}

func (r createBookingRequest) input() (app.CreateBookingInput, error) {
	in, err := domain.ParseDate(r.CheckInDate)
	if err != nil {
		return app.CreateBookingInput{}, err
	}
	out, err := domain.ParseDate(r.CheckOutDate)
	if err != nil {
		return app.CreateBookingInput{}, err
	}
	return app.CreateBookingInput{
		RoomID:          r.RoomID,
		CheckIn:         in,
		CheckOut:        out,
		GuestCount:      r.GuestCount,
		SpecialRequests: r.SpecialRequests,
	}, nil
}

type walkInRequest struct {
	createBookingRequest
	GuestName  string `json:"guestName" validate:"required,max=100"`
	GuestEmail string `json:"guestEmail" validate:"required,email"`
	GuestPhone string `json:"guestPhone" validate:"omitempty,max=30"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type roomRequest struct {
	PropertyID  int64        `json:"propertyId" validate:"required,gt=0"`
	RoomNumber  string       `json:"roomNumber" validate:"required,max=20"`
	Type        string       `json:"type" validate:"required,oneof=standard suite deluxe"`
	Price       domain.Money `json:"price" validate:"gt=0"`
	Capacity    int          `json:"capacity" validate:"gte=1"`
	Climate     bool         `json:"climate"`
	Description string       `json:"description" validate:"max=2000"`
	Amenities   []string     `json:"amenities"`
}

func (r roomRequest) room() domain.Room {
	return domain.Room{
		PropertyID:  r.PropertyID,
		Number:      r.RoomNumber,
		Type:        domain.RoomType(r.Type),
		Price:       r.Price,
		Capacity:    r.Capacity,
		Climate:     r.Climate,
		Description: r.Description,
		Amenities:   r.Amenities,
	}
}

type roomUpdateRequest struct {
	Type        *string       `json:"type" validate:"omitempty,oneof=standard suite deluxe"`
	Price       *domain.Money `json:"price" validate:"omitempty,gt=0"`
	Capacity    *int          `json:"capacity" validate:"omitempty,gte=1"`
	Description *string       `json:"description" validate:"omitempty,max=2000"`
	Climate     *bool         `json:"climate"`
	Maintenance *bool         `json:"maintenance"`
	Amenities   []string      `json:"amenities"`
}

func (r roomUpdateRequest) patch() domain.RoomPatch {
	p := domain.RoomPatch{
		Price:       r.Price,
		Capacity:    r.Capacity,
		Description: r.Description,
		Climate:     r.Climate,
		Maintenance: r.Maintenance,
		Amenities:   r.Amenities,
	}
	if r.Type != nil {
		t := domain.RoomType(*r.Type)
		p.Type = &t
	}
	return p
}

type imageRequest struct {
	URL       string `json:"url" validate:"required,url"`
	IsPrimary bool   `json:"isPrimary"`
}

// ---- responses ----

type roomSummaryResponse struct {
	ID         int64        `json:"id"`
	RoomNumber string       `json:"roomNumber"`
	Type       string       `json:"type"`
	Price      domain.Money `json:"price"`
}

type guestSummaryResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type bookingResponse struct {
	ID              int64                 `json:"id"`
	BookingNumber   string                `json:"bookingNumber"`
	GuestID         int64                 `json:"guestId"`
	RoomID          int64                 `json:"roomId"`
	CheckInDate     string                `json:"checkInDate"`
	CheckOutDate    string                `json:"checkOutDate"`
	GuestCount      int                   `json:"guestCount"`
	Nights          int                   `json:"nights"`
	TotalAmount     domain.Money          `json:"totalAmount"`
	Status          string                `json:"status"`
	SpecialRequests *string               `json:"specialRequests,omitempty"`
	CreatedBy       *int64                `json:"createdBy,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
	Room            *roomSummaryResponse  `json:"room,omitempty"`
	Guest           *guestSummaryResponse `json:"guest,omitempty"`
}

func toBooking(b domain.Booking) bookingResponse {
	out := bookingResponse{
		ID:              b.ID,
		BookingNumber:   b.Reference,
		GuestID:         b.GuestID,
		RoomID:          b.RoomID,
		CheckInDate:     b.Stay.CheckIn.Format(domain.DateLayout),
		CheckOutDate:    b.Stay.CheckOut.Format(domain.DateLayout),
		GuestCount:      b.GuestCount,
		Nights:          b.Nights,
		TotalAmount:     b.TotalAmount,
		Status:          string(b.Status),
		SpecialRequests: b.SpecialRequests,
		CreatedBy:       b.CreatedBy,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
	if b.Room != nil {
		out.Room = &roomSummaryResponse{ID: b.Room.ID, RoomNumber: b.Room.RoomNumber, Type: string(b.Room.Type), Price: b.Room.Price}
	}
	if b.Guest != nil {
		out.Guest = &guestSummaryResponse{ID: b.Guest.ID, Name: b.Guest.Name, Email: b.Guest.Email, Phone: b.Guest.Phone}
	}
	return out
}

func toBookings(in []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(in))
	for _, b := range in {
		out = append(out, toBooking(b))
	}
	return out
}

type imageResponse struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary"`
}

type roomResponse struct {
	ID          int64           `json:"id"`
	PropertyID  int64           `json:"propertyId"`
	RoomNumber  string          `json:"roomNumber"`
	Type        string          `json:"type"`
	Price       domain.Money    `json:"price"`
	Capacity    int             `json:"capacity"`
	Climate     bool            `json:"climate"`
	Description string          `json:"description,omitempty"`
	Amenities   []string        `json:"amenities"`
	Status      string          `json:"status"`
	Maintenance bool            `json:"maintenance"`
	Images      []imageResponse `json:"images"`
}

func toRoom(r domain.Room) roomResponse {
	out := roomResponse{
		ID:          r.ID,
		PropertyID:  r.PropertyID,
		RoomNumber:  r.Number,
		Type:        string(r.Type),
		Price:       r.Price,
		Capacity:    r.Capacity,
		Climate:     r.Climate,
		Description: r.Description,
		Amenities:   r.Amenities,
		Status:      string(r.Status),
		Maintenance: r.Maintenance,
		Images:      make([]imageResponse, 0, len(r.Images)),
	}
	if out.Amenities == nil {
		out.Amenities = []string{}
	}
	for _, img := range r.Images {
		out.Images = append(out.Images, toImage(img))
	}
	return out
}

func toRooms(in []domain.Room) []roomResponse {
	out := make([]roomResponse, 0, len(in))
	for _, r := range in {
		out = append(out, toRoom(r))
	}
	return out
}

func toImage(img domain.RoomImage) imageResponse {
	return imageResponse{ID: img.ID, URL: img.URL, IsPrimary: img.Primary}
}

type availabilityResponse struct {
	RoomID       int64  `json:"roomId"`
	IsAvailable  bool   `json:"isAvailable"`
	CheckInDate  string `json:"checkInDate"`
	CheckOutDate string `json:"checkOutDate"`
}
