package app

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

const referenceAttempts = 3

// ReportInvalidator is told about every committed booking write of a property.
type ReportInvalidator interface {
	Invalidate(ctx context.Context, propertyID int64)
}

type BookingConfig struct {
	BcryptCost int
	Now        func() time.Time
}

type BookingService struct {
	store   domain.Store
	notify  *Dispatcher
	reports ReportInvalidator
	log     zerolog.Logger
	cost    int
	now     func() time.Time
}

func NewBookingService(s domain.Store, d *Dispatcher, inv ReportInvalidator, log zerolog.Logger, cfg BookingConfig) *BookingService {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &BookingService{store: s, notify: d, reports: inv, log: log, cost: cfg.BcryptCost, now: cfg.Now}
}

type CreateBookingInput struct {
	RoomID          int64
	CheckIn         time.Time
	CheckOut        time.Time
	GuestCount      int
	SpecialRequests *string
}

type WalkInInput struct {
	CreateBookingInput
	GuestName  string
	GuestEmail string
	GuestPhone string
}

// Create books a room for the calling guest. The booking starts pending and so does the room.
func (s *BookingService) Create(ctx context.Context, p domain.Principal, in CreateBookingInput) (domain.Booking, error) {
	stay, err := s.validateDates(in.CheckIn, in.CheckOut)
	if err != nil {
		return domain.Booking{}, s.reject("create", err)
	}

	var (
		out  domain.Booking
		room domain.Room
	)
	err = s.store.WithRoomLock(ctx, in.RoomID, func(tx domain.RoomTx) error {
		room = tx.Room()
		if err := admit(ctx, tx, in.GuestCount, stay); err != nil {
			return err
		}
		b := newBooking(room, p.ID, stay, in, domain.StatusPending)
		if err := s.insert(ctx, tx, &b); err != nil {
			return err
		}
		if err := tx.SetRoomStatus(ctx, domain.RoomPending); err != nil {
			return domain.Internal("set room status", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject("create", err, in.RoomID)
	}

	observability.ObserveBookingCreated("guest")
	s.log.Info().Int64("booking_id", out.ID).Int64("room_id", room.ID).Str("ref", out.Reference).Msg("booking created")
	s.committed(ctx, room.PropertyID)

	out.Room = summary(room)
	if guest, err := s.store.GetUser(ctx, p.ID); err != nil {
		s.log.Warn().Err(err).Int64("booking_id", out.ID).Msg("guest lookup for notification failed")
	} else {
		out.Guest = &domain.GuestSummary{ID: guest.ID, Name: guest.Name, Email: guest.Email, Phone: guest.Phone}
		s.notify.Dispatch(notice(out, room, guest, false))
	}
	return out, nil
}

// CreateWalkIn books a room on behalf of a guest at the desk. The guest account is found or
// provisioned by email in the same unit of work; the booking starts confirmed and the room booked.
func (s *BookingService) CreateWalkIn(ctx context.Context, p domain.Principal, in WalkInInput) (domain.Booking, error) {
	if !p.Role.IsStaff() {
		return domain.Booking{}, s.reject("walk_in", domain.ErrForbidden)
	}
	if strings.TrimSpace(in.GuestEmail) == "" {
		return domain.Booking{}, s.reject("walk_in", domain.Validation("guest email is required"))
	}
	stay, err := s.validateDates(in.CheckIn, in.CheckOut)
	if err != nil {
		return domain.Booking{}, s.reject("walk_in", err)
	}

	var (
		out   domain.Booking
		room  domain.Room
		guest domain.User
	)
	err = s.store.WithRoomLock(ctx, in.RoomID, func(tx domain.RoomTx) error {
		room = tx.Room()
		if err := admit(ctx, tx, in.GuestCount, stay); err != nil {
			return err
		}
		g, err := s.provisionGuest(ctx, tx, in)
		if err != nil {
			return err
		}
		guest = g

		b := newBooking(room, guest.ID, stay, in.CreateBookingInput, domain.StatusConfirmed)
		staff := p.ID
		b.CreatedBy = &staff
		if err := s.insert(ctx, tx, &b); err != nil {
			return err
		}
		if err := tx.SetRoomStatus(ctx, domain.RoomBooked); err != nil {
			return domain.Internal("set room status", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject("walk_in", err, in.RoomID)
	}

	observability.ObserveBookingCreated("walk_in")
	s.log.Info().
		Int64("booking_id", out.ID).
		Int64("room_id", room.ID).
		Int64("staff_id", p.ID).
		Str("ref", out.Reference).
		Msg("walk-in booking created")
	s.committed(ctx, room.PropertyID)

	out.Room = summary(room)
	out.Guest = &domain.GuestSummary{ID: guest.ID, Name: guest.Name, Email: guest.Email, Phone: guest.Phone}
	s.notify.Dispatch(notice(out, room, guest, true))
	return out, nil
}

// SetStatus moves a booking to any recognized status and applies the paired room status.
// Staff only. Dates are not re-validated.
func (s *BookingService) SetStatus(ctx context.Context, p domain.Principal, bookingID int64, status string) (domain.Booking, error) {
	if !p.Role.IsStaff() {
		return domain.Booking{}, s.reject("set_status", domain.ErrForbidden)
	}
	st, err := domain.ParseBookingStatus(status)
	if err != nil {
		return domain.Booking{}, s.reject("set_status", err)
	}
	return s.transition(ctx, "set_status", bookingID, st, func(domain.Booking) error { return nil })
}

// Cancel lets a guest give up their own booking. The booking is closed as checked_out,
// which frees the room the same way a checkout does.
func (s *BookingService) Cancel(ctx context.Context, p domain.Principal, bookingID int64) (domain.Booking, error) {
	guard := func(b domain.Booking) error {
		if !p.Owns(b) {
			return domain.ErrForbidden
		}
		if b.Status.Terminal() {
			return domain.Detail(domain.ErrBookingClosed, "status %s", b.Status)
		}
		return nil
	}
	return s.transition(ctx, "cancel", bookingID, domain.StatusCheckedOut, guard)
}

func (s *BookingService) transition(ctx context.Context, op string, bookingID int64, st domain.BookingStatus, guard func(domain.Booking) error) (domain.Booking, error) {
	cur, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, s.reject(op, err)
	}

	var (
		out  domain.Booking
		room domain.Room
	)
	err = s.store.WithRoomLock(ctx, cur.RoomID, func(tx domain.RoomTx) error {
		room = tx.Room()
		b, err := tx.Booking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := guard(b); err != nil {
			return err
		}
		if err := tx.UpdateBookingStatus(ctx, b.ID, st); err != nil {
			return domain.Internal("update booking status", err)
		}
		if rs, ok := st.RoomEffect(); ok {
			if err := tx.SetRoomStatus(ctx, rs); err != nil {
				return domain.Internal("set room status", err)
			}
		}
		b.Status = st
		out = b
		return nil
	})
	if err != nil {
		return domain.Booking{}, s.reject(op, err, cur.RoomID)
	}

	observability.ObserveTransition(string(st))
	s.log.Info().
		Int64("booking_id", out.ID).
		Int64("room_id", room.ID).
		Str("from", string(cur.Status)).
		Str("to", string(st)).
		Msg("booking status changed")
	s.committed(ctx, room.PropertyID)
	return out, nil
}

// validateDates applies the date rules in order: no past check-in, then checkout after check-in.
func (s *BookingService) validateDates(checkIn, checkOut time.Time) (domain.DateRange, error) {
	today := domain.Midnight(s.now())
	stay := domain.NewDateRange(checkIn, checkOut)
	if stay.CheckIn.Before(today) {
		return stay, domain.ErrPastCheckIn
	}
	if !stay.Valid() {
		return stay, domain.ErrInvertedDates
	}
	return stay, nil
}

// admit runs the checks that need the locked room: capacity first, then availability.
func admit(ctx context.Context, tx domain.RoomTx, guests int, stay domain.DateRange) error {
	room := tx.Room()
	if guests < 1 {
		return domain.Validation("guest count must be at least 1")
	}
	if guests > room.Capacity {
		return domain.Detail(domain.ErrCapacityExceeded, "maximum %d guests", room.Capacity)
	}
	if room.Blocked() {
		return domain.ErrRoomOutOfOrder
	}
	held, err := tx.ActiveBookings(ctx)
	if err != nil {
		return domain.Internal("load room bookings", err)
	}
	if b, clash := firstConflict(held, stay, 0); clash {
		return domain.Detail(domain.ErrRoomUnavailable, "booked %s", b.Stay)
	}
	return nil
}

func newBooking(room domain.Room, guestID int64, stay domain.DateRange, in CreateBookingInput, st domain.BookingStatus) domain.Booking {
	nights := stay.Nights()
	return domain.Booking{
		GuestID:         guestID,
		RoomID:          room.ID,
		Stay:            stay,
		GuestCount:      in.GuestCount,
		Nights:          nights,
		TotalAmount:     room.Price.Times(nights),
		Status:          st,
		SpecialRequests: in.SpecialRequests,
	}
}

// insert writes b under a fresh reference, regenerating it on collision.
func (s *BookingService) insert(ctx context.Context, tx domain.RoomTx, b *domain.Booking) error {
	for i := 0; i < referenceAttempts; i++ {
		b.Reference = s.reference()
		err := tx.InsertBooking(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrDuplicateReference) {
			return domain.Internal("insert booking", err)
		}
		s.log.Debug().Str("ref", b.Reference).Msg("booking reference collision, regenerating")
	}
	return domain.Internal("generate booking reference", domain.ErrDuplicateReference)
}

// reference is BK, the low 8 digits of the epoch millis, and 2 random digits.
func (s *BookingService) reference() string {
	ms := s.now().UnixMilli() % 100_000_000
	return fmt.Sprintf("BK%08d%02d", ms, rand.IntN(100))
}

func (s *BookingService) provisionGuest(ctx context.Context, tx domain.RoomTx, in WalkInInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.GuestEmail))
	u, err := tx.FindUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, domain.Internal("find guest", err)
	}

	hash, err := s.placeholderCredential()
	if err != nil {
		return domain.User{}, domain.Internal("hash placeholder credential", err)
	}
	u = domain.User{
		Name:         in.GuestName,
		Email:        email,
		Phone:        in.GuestPhone,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
		Active:       true,
	}
	if err := tx.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return domain.User{}, err
		}
		return domain.User{}, domain.Internal("create guest", err)
	}
	s.log.Info().Int64("user_id", u.ID).Msg("walk-in guest provisioned")
	return u, nil
}

// placeholderCredential hashes a random secret nobody knows; the guest resets it to log in.
func (s *BookingService) placeholderCredential() (string, error) {
	var raw [12]byte
	if _, err := crand.Read(raw[:]); err != nil {
		return "", err
	}
	h, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(raw[:])), s.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (s *BookingService) committed(ctx context.Context, propertyID int64) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, propertyID)
	}
}

// reject counts and logs a refused write; internal failures get full context.
func (s *BookingService) reject(op string, err error, roomID ...int64) error {
	kind := domain.KindOf(err)
	observability.ObserveBookingRejected(kind.String())
	ev := s.log.Debug()
	if kind == domain.KindInternal {
		ev = s.log.Error()
	}
	if len(roomID) > 0 {
		ev = ev.Int64("room_id", roomID[0])
	}
	ev.Err(err).Str("op", op).Msg("booking write rejected")
	return err
}

func summary(r domain.Room) *domain.RoomSummary {
	return &domain.RoomSummary{ID: r.ID, RoomNumber: r.Number, Type: r.Type, Price: r.Price}
}

func notice(b domain.Booking, r domain.Room, g domain.User, walkIn bool) domain.BookingNotice {
	return domain.BookingNotice{
		BookingID:   b.ID,
		Reference:   b.Reference,
		GuestName:   g.Name,
		GuestEmail:  g.Email,
		RoomNumber:  r.Number,
		CheckIn:     b.Stay.CheckIn.Format(domain.DateLayout),
		CheckOut:    b.Stay.CheckOut.Format(domain.DateLayout),
		Nights:      b.Nights,
		TotalAmount: b.TotalAmount,
		Status:      string(b.Status),
		WalkIn:      walkIn,
	}
}
