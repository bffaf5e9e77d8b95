package services

import (
	"context"
	"time"

	"github.com/localbazaar/reservation-backend/internal/database"
	"github.com/sirupsen/logrus"
)

// SweepResult summarizes one expiry pass
type SweepResult struct {
	Scanned int `json:"scanned"`
	Expired int `json:"expired"`
	Skipped int `json:"skipped"` // moved on by a payment or another sweeper first
	Failed  int `json:"failed"`
}

// ExpirySweeperService releases capacity held by bookings whose hold ran out
type ExpirySweeperService struct {
	bookingRepo *database.BookingRepository
	ledger      *BookingLedgerService
	batchSize   int
	logger      *logrus.Logger
	now         func() time.Time
}

// NewExpirySweeperService creates a new expiry sweeper
func NewExpirySweeperService(
	bookingRepo *database.BookingRepository,
	ledger *BookingLedgerService,
	batchSize int,
	logger *logrus.Logger,
) *ExpirySweeperService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExpirySweeperService{
		bookingRepo: bookingRepo,
		ledger:      ledger,
		batchSize:   batchSize,
		logger:      logger,
		now:         time.Now,
	}
}

// RunOnce expires one batch of lapsed bookings, oldest first.
// A failure on one booking never stops the batch.
func (s *ExpirySweeperService) RunOnce(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	lapsed, err := s.bookingRepo.ListExpired(ctx, s.now(), s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list expired bookings")
		return result, err
	}
	result.Scanned = len(lapsed)
	if len(lapsed) == 0 {
		return result, nil
	}

	s.logger.WithField("count", len(lapsed)).Info("Processing expired bookings")

	for _, booking := range lapsed {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		_, err := s.ledger.Expire(ctx, booking.ID)
		switch {
		case err == nil:
			result.Expired++
		case IsKind(err, KindInvalidStateTransition):
			result.Skipped++
			s.logger.WithField("booking_id", booking.ID).Debug("Booking moved on before expiry, skipping")
		default:
			result.Failed++
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to expire booking")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scanned": result.Scanned,
		"expired": result.Expired,
		"skipped": result.Skipped,
		"failed":  result.Failed,
	}).Info("Expiry sweep finished")

	return result, nil
}
