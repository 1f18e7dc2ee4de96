package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"hotel_booking/internal/domain"
)

// RoomService is inventory administration. Writes are manager only; reads are public.
type RoomService struct {
	store   domain.Store
	reports ReportInvalidator
	log     zerolog.Logger
}

func NewRoomService(s domain.Store, inv ReportInvalidator, log zerolog.Logger) *RoomService {
	return &RoomService{store: s, reports: inv, log: log}
}

func (s *RoomService) Create(ctx context.Context, p domain.Principal, r domain.Room) (domain.Room, error) {
	if !p.Role.CanManageRooms() {
		return domain.Room{}, domain.ErrForbidden
	}
	r.Number = strings.TrimSpace(r.Number)
	if err := validateRoom(r); err != nil {
		return domain.Room{}, err
	}
	r.Status = domain.RoomAvailable
	if err := s.store.CreateRoom(ctx, &r); err != nil {
		return domain.Room{}, err
	}
	s.log.Info().Int64("room_id", r.ID).Str("number", r.Number).Msg("room created")
	s.invalidate(ctx, r.PropertyID)
	return r, nil
}

func (s *RoomService) Get(ctx context.Context, id int64) (domain.Room, error) {
	return s.store.GetRoom(ctx, id)
}

func (s *RoomService) List(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.Validation("unknown room status %q", q.Status)
	}
	if q.Type != "" && !q.Type.Valid() {
		return nil, domain.Validation("unknown room type %q", q.Type)
	}
	return s.store.ListRooms(ctx, q)
}

// SearchByNumber matches room numbers containing the given fragment.
func (s *RoomService) SearchByNumber(ctx context.Context, number string) ([]domain.Room, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.Validation("room number is required")
	}
	return s.store.ListRooms(ctx, domain.RoomsQuery{Number: number})
}

func (s *RoomService) Update(ctx context.Context, p domain.Principal, id int64, patch domain.RoomPatch) (domain.Room, error) {
	if !p.Role.CanManageRooms() {
		return domain.Room{}, domain.ErrForbidden
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return domain.Room{}, domain.Validation("unknown room type %q", *patch.Type)
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return domain.Room{}, domain.Validation("price must be positive")
	}
	if patch.Capacity != nil && *patch.Capacity <= 0 {
		return domain.Room{}, domain.Validation("capacity must be positive")
	}
	r, err := s.store.UpdateRoom(ctx, id, patch)
	if err != nil {
		return domain.Room{}, err
	}
	s.log.Info().Int64("room_id", id).Msg("room updated")
	return r, nil
}

// Delete retires a room and its images. A room some booking still holds cannot be deleted.
func (s *RoomService) Delete(ctx context.Context, p domain.Principal, id int64) error {
	if !p.Role.CanManageRooms() {
		return domain.ErrForbidden
	}
	var propertyID int64
	err := s.store.WithRoomLock(ctx, id, func(tx domain.RoomTx) error {
		propertyID = tx.Room().PropertyID
		held, err := tx.ActiveBookings(ctx)
		if err != nil {
			return domain.Internal("load room bookings", err)
		}
		if len(held) > 0 {
			return domain.Detail(domain.ErrRoomInUse, "%d active", len(held))
		}
		return tx.DeleteRoom(ctx)
	})
	if err != nil {
		return err
	}
	s.log.Info().Int64("room_id", id).Msg("room deleted")
	s.invalidate(ctx, propertyID)
	return nil
}

func (s *RoomService) AddImage(ctx context.Context, p domain.Principal, roomID int64, url string, primary bool) (domain.RoomImage, error) {
	if !p.Role.CanManageRooms() {
		return domain.RoomImage{}, domain.ErrForbidden
	}
	if strings.TrimSpace(url) == "" {
		return domain.RoomImage{}, domain.Validation("image url is required")
	}
	img := domain.RoomImage{RoomID: roomID, URL: url, Primary: primary}
	if err := s.store.AddRoomImage(ctx, &img); err != nil {
		return domain.RoomImage{}, err
	}
	return img, nil
}

func (s *RoomService) SetPrimaryImage(ctx context.Context, p domain.Principal, roomID, imageID int64) error {
	if !p.Role.CanManageRooms() {
		return domain.ErrForbidden
	}
	return s.store.SetPrimaryImage(ctx, roomID, imageID)
}

func (s *RoomService) DeleteImage(ctx context.Context, p domain.Principal, roomID, imageID int64) error {
	if !p.Role.CanManageRooms() {
		return domain.ErrForbidden
	}
	return s.store.DeleteRoomImage(ctx, roomID, imageID)
}

func (s *RoomService) invalidate(ctx context.Context, propertyID int64) {
	if s.reports != nil {
		s.reports.Invalidate(ctx, propertyID)
	}
}

func validateRoom(r domain.Room) error {
	switch {
	case r.Number == "":
		return domain.Validation("room number is required")
	case r.PropertyID <= 0:
		return domain.Validation("property id is required")
	case !r.Type.Valid():
		return domain.Validation("unknown room type %q", r.Type)
	case r.Price <= 0:
		return domain.Validation("price must be positive")
	case r.Capacity <= 0:
		return domain.Validation("capacity must be positive")
	}
	return nil
}
