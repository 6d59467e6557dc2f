package settlement

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically groups un-batched settlement items into a new open
// batch. Items younger than the grace delay are left alone so that a refund
// arriving shortly after completion lands in the same sweep.
type Sweeper struct {
	service       *Service
	sweepInterval time.Duration
	graceDelay    time.Duration
}

func NewSweeper(service *Service) *Sweeper {
	return &Sweeper{
		service:       service,
		sweepInterval: 5 * time.Minute,
		graceDelay:    10 * time.Minute,
	}
}

// Start begins the sweep loop and blocks until the context is cancelled
func (s *Sweeper) Start(ctx context.Context) {
	logger := log.With().Str("component", "settlement_sweeper").Logger()
	logger.Info().
		Dur("sweep_interval", s.sweepInterval).
		Dur("grace_delay", s.graceDelay).
		Msg("starting settlement batch sweeper")

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down settlement batch sweeper")
			return
		case <-ticker.C:
			if err := s.sweepOnce(); err != nil {
				logger.Error().Err(err).Msg("failed to sweep un-batched settlement items")
			}
		}
	}
}

func (s *Sweeper) sweepOnce() error {
	logger := log.With().Str("component", "settlement_sweeper").Logger()

	cutoff := time.Now().Add(-s.graceDelay)
	pending, err := s.service.GetDB().CountUngroupedBefore(cutoff)
	if err != nil {
		return err
	}
	if pending == 0 {
		logger.Debug().Msg("no un-batched settlement items to sweep")
		return nil
	}

	batch, err := s.service.CreateBatch(time.Time{}, cutoff)
	if err != nil {
		return err
	}

	logger.Info().
		Str("settlement_id", batch.SettlementID).
		Int64("item_count", batch.ItemCount).
		Time("cutoff", cutoff).
		Msg("swept un-batched settlement items into batch")

	return nil
}
