package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"hotel_booking/internal/domain"
)

const (
	defaultReportDays = 30
	maxReportDays     = 366
)

type OccupancyReport struct {
	PropertyID int64            `json:"propertyId"`
	TotalRooms int              `json:"totalRooms"`
	Period     ReportPeriod     `json:"reportPeriod"`
	Summary    OccupancySummary `json:"summary"`
	Daily      []DayOccupancy   `json:"dailyOccupancy"`
}

type ReportPeriod struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	TotalDays int    `json:"totalDays"`
}

type OccupancySummary struct {
	TotalNightsBooked    int     `json:"totalNightsBooked"`
	AverageOccupancyRate float64 `json:"averageOccupancyRate"`
	// NoData marks a scope without rooms, where rates are reported as 0.
	NoData bool `json:"noData"`
}

type DayOccupancy struct {
	Date           string  `json:"date"`
	BookedRooms    int     `json:"bookedRooms"`
	AvailableRooms int     `json:"availableRooms"`
	OccupancyRate  float64 `json:"occupancyRate"`
}

type OccupancyService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewOccupancyService(s domain.Store, c domain.Cache, ttl time.Duration, log zerolog.Logger, now func() time.Time) *OccupancyService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &OccupancyService{store: s, cache: c, cacheTTL: ttl, log: log, now: now}
}

// Report aggregates occupancy for a property over the closed window [start, end].
// A nil start means today; a nil end means start plus 30 days.
func (s *OccupancyService) Report(ctx context.Context, p domain.Principal, propertyID int64, start, end *time.Time) (OccupancyReport, error) {
	if !p.Role.CanManageRooms() {
		return OccupancyReport{}, domain.ErrForbidden
	}
	if propertyID <= 0 {
		return OccupancyReport{}, domain.Validation("property id is required")
	}
	from := domain.Midnight(s.now())
	if start != nil {
		from = domain.Midnight(*start)
	}
	to := from.AddDate(0, 0, defaultReportDays)
	if end != nil {
		to = domain.Midnight(*end)
	}
	if to.Before(from) {
		return OccupancyReport{}, domain.Validation("end date must not be before start date")
	}
	if to.After(from.AddDate(0, 0, maxReportDays)) {
		return OccupancyReport{}, domain.Validation("report window must not exceed %d days", maxReportDays)
	}
	window := domain.DateRange{CheckIn: from, CheckOut: to}

	key := s.key(ctx, propertyID, window)
	var cached OccupancyReport
	if key != "" {
		ok, err := s.cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			// unreadable snapshot: drop it and recompute
			s.log.Warn().Err(err).Str("key", key).Msg("occupancy cache get failed")
			if err := s.cache.Del(ctx, key); err != nil {
				s.log.Warn().Err(err).Str("key", key).Msg("occupancy cache del failed")
			}
		case ok:
			return cached, nil
		}
	}

	rooms, err := s.store.ListRooms(ctx, domain.RoomsQuery{PropertyID: propertyID})
	if err != nil {
		return OccupancyReport{}, domain.Internal("list rooms", err)
	}
	bookings, err := s.store.BookingsInWindow(ctx, propertyID, window)
	if err != nil {
		return OccupancyReport{}, domain.Internal("load bookings", err)
	}

	out := BuildOccupancy(propertyID, len(rooms), bookings, window)
	if key != "" {
		if err := s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds())); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("occupancy cache set failed")
		}
	}
	return out, nil
}

// Invalidate bumps the property's generation so cached reports are no longer addressed.
func (s *OccupancyService) Invalidate(ctx context.Context, propertyID int64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, genKey(propertyID)); err != nil {
		s.log.Warn().Err(err).Int64("property_id", propertyID).Msg("occupancy cache invalidation failed")
	}
}

// key returns "" when caching is off or the generation cannot be read.
func (s *OccupancyService) key(ctx context.Context, propertyID int64, w domain.DateRange) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	var gen int64
	if _, err := s.cache.Get(ctx, genKey(propertyID), &gen); err != nil {
		return ""
	}
	return fmt.Sprintf("occupancy:%d:%d:%s", propertyID, gen, w)
}

func genKey(propertyID int64) string { return fmt.Sprintf("occupancy:gen:%d", propertyID) }

// BuildOccupancy replays bookings into a per-day histogram over the closed window.
// Each booking is clipped to the window and counts every calendar day from its check-in to
// its check-out inclusive. A room is counted at most once per day.
func BuildOccupancy(propertyID int64, totalRooms int, bookings []domain.Booking, w domain.DateRange) OccupancyReport {
	days := domain.DaysBetween(w.CheckIn, w.CheckOut)
	index := make(map[string]int, len(days))
	for i, d := range days {
		index[d.Format(domain.DateLayout)] = i
	}

	occupied := make([]map[int64]struct{}, len(days))
	for _, b := range bookings {
		if b.Status == domain.StatusCancelled {
			continue
		}
		from, to := b.Stay.CheckIn, b.Stay.CheckOut
		if from.Before(w.CheckIn) {
			from = w.CheckIn
		}
		if to.After(w.CheckOut) {
			to = w.CheckOut
		}
		for _, d := range domain.DaysBetween(from, to) {
			i, ok := index[d.Format(domain.DateLayout)]
			if !ok {
				continue
			}
			if occupied[i] == nil {
				occupied[i] = map[int64]struct{}{}
			}
			occupied[i][b.RoomID] = struct{}{}
		}
	}

	out := OccupancyReport{
		PropertyID: propertyID,
		TotalRooms: totalRooms,
		Period: ReportPeriod{
			StartDate: w.CheckIn.Format(domain.DateLayout),
			EndDate:   w.CheckOut.Format(domain.DateLayout),
			TotalDays: len(days),
		},
		Daily: make([]DayOccupancy, 0, len(days)),
	}
	for i, d := range days {
		booked := len(occupied[i])
		out.Summary.TotalNightsBooked += booked
		out.Daily = append(out.Daily, DayOccupancy{
			Date:           d.Format(domain.DateLayout),
			BookedRooms:    booked,
			AvailableRooms: max(totalRooms-booked, 0),
			OccupancyRate:  percent(booked, totalRooms),
		})
	}
	out.Summary.NoData = totalRooms == 0
	out.Summary.AverageOccupancyRate = percent(out.Summary.TotalNightsBooked, totalRooms*len(days))
	return out
}

// percent is part/whole as a percentage rounded to 2 decimals; an empty whole gives 0.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*10000) / 100
}
