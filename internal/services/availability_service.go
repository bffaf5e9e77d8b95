package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/localbazaar/reservation-backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ResourceCatalog is the read-only lookup of bookable resources.
// Implemented by database.ResourceRepository and cache.ResourceCache.
type ResourceCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Resource, error)
}

// AvailabilityResult is the outcome of a capacity check
type AvailabilityResult struct {
	Available         bool `json:"available"`
	RemainingCapacity int  `json:"remainingCapacity"`
}

// AvailabilityService decides whether a resource can take another booking
type AvailabilityService struct {
	catalog        ResourceCatalog
	bookingRepo    *database.BookingRepository
	maxBookingDays int
	logger         *logrus.Logger
	now            func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(
	catalog ResourceCatalog,
	bookingRepo *database.BookingRepository,
	maxBookingDays int,
	logger *logrus.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		catalog:        catalog,
		bookingRepo:    bookingRepo,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		now:            time.Now,
	}
}

// ValidateRequest checks the interval and party size against the resource
// and returns the number of billable units.
func (s *AvailabilityService) ValidateRequest(resource *models.Resource, interval models.Interval, partySize int) (int, error) {
	if resource == nil {
		return 0, newError(KindNotFound, "resource not found")
	}
	if !resource.IsActive {
		return 0, newError(KindUnavailable, "resource %s is not accepting bookings", resource.ID)
	}
	if interval.Start.IsZero() || interval.End.IsZero() {
		return 0, newError(KindValidation, "intervalStart and intervalEnd are required")
	}
	if !interval.Start.Before(interval.End) {
		return 0, newError(KindValidation, "intervalStart must be before intervalEnd")
	}
	if partySize < 1 {
		return 0, newError(KindValidation, "partySize must be at least 1")
	}
	if !resource.AcceptsPartySize(partySize) {
		return 0, newError(KindValidation, "partySize %d exceeds the maximum of %d for this resource", partySize, resource.MaxPartySize)
	}

	now := s.now().UTC()

	switch resource.Category {
	case models.CategoryLodging:
		start, end := interval.Start.UTC(), interval.End.UTC()
		if !isMidnight(start) || !isMidnight(end) {
			return 0, newError(KindValidation, "lodging bookings must start and end on whole dates")
		}
		if start.Before(startOfDay(now)) {
			return 0, newError(KindValidation, "check-in date is in the past")
		}
		nights := int(end.Sub(start).Hours() / 24)
		if s.maxBookingDays > 0 && nights > s.maxBookingDays {
			return 0, newError(KindValidation, "stays are limited to %d nights", s.maxBookingDays)
		}
		return nights, nil

	case models.CategoryDining:
		if interval.Start.Before(now) {
			return 0, newError(KindValidation, "intervalStart is in the past")
		}
		if interval.Duration() != resource.SlotDuration() {
			return 0, newError(KindValidation, "table slots are exactly %d minutes", int(resource.SlotDuration().Minutes()))
		}
		return 1, nil

	case models.CategoryTransport:
		if interval.Start.Before(now) {
			return 0, newError(KindValidation, "intervalStart is in the past")
		}
		hours := int(math.Ceil(interval.Duration().Hours()))
		if s.maxBookingDays > 0 && hours > s.maxBookingDays*24 {
			return 0, newError(KindValidation, "vehicle bookings are limited to %d hours", s.maxBookingDays*24)
		}
		return hours, nil
	}

	return 0, newError(KindValidation, "unsupported resource category %q", resource.Category)
}

// BaseAmount prices the units at the resource's unit price
func BaseAmount(resource *models.Resource, units int) decimal.Decimal {
	return resource.UnitPrice.Mul(decimal.NewFromInt(int64(units))).Round(2)
}

// Check counts overlapping active bookings. Inside booking creation q must be
// the transaction that holds the resource row lock.
func (s *AvailabilityService) Check(ctx context.Context, q sqlx.QueryerContext, resource *models.Resource, interval models.Interval) (*AvailabilityResult, error) {
	overlapping, err := s.bookingRepo.CountOverlapping(ctx, q, resource.ID, interval, s.now())
	if err != nil {
		return nil, err
	}

	remaining := resource.TotalCapacity - overlapping
	if remaining < 0 {
		// Capacity was lowered below existing bookings
		s.logger.WithFields(logrus.Fields{
			"resource_id": resource.ID,
			"capacity":    resource.TotalCapacity,
			"overlapping": overlapping,
		}).Warn("Resource is overbooked")
		remaining = 0
	}

	return &AvailabilityResult{
		Available:         remaining >= 1,
		RemainingCapacity: remaining,
	}, nil
}

// Preview answers an availability query without taking any lock.
// The answer may be stale by the time a booking is attempted.
func (s *AvailabilityService) Preview(ctx context.Context, resourceID uuid.UUID, interval models.Interval, partySize int) (*models.AvailabilityResponse, error) {
	resource, err := s.catalog.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	units, err := s.ValidateRequest(resource, interval, partySize)
	if err != nil {
		return nil, err
	}

	result, err := s.Check(ctx, nil, resource, interval)
	if err != nil {
		return nil, translateDBError(err, "failed to check availability")
	}

	return &models.AvailabilityResponse{
		ResourceID:        resource.ID,
		Category:          resource.Category,
		IntervalStart:     interval.Start,
		IntervalEnd:       interval.End,
		Available:         result.Available,
		RemainingCapacity: result.RemainingCapacity,
		Units:             units,
		BaseAmount:        BaseAmount(resource, units),
	}, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
