package settlement

import (
	"context"
	"time"

	"github.com/ksred/auction-api/internal/locks"
	"github.com/rs/zerolog/log"
)

// Closer is the time-based auction closer. It periodically stamps closed_at
// on items whose scheduled end has passed and hands items with a leader off
// to settlement. Each item is closed under its exclusive lock so a close
// never interleaves with an in-flight bid resolution.
type Closer struct {
	db       *Database
	locks    *locks.Registry
	service  *Service
	interval time.Duration
}

func NewCloser(service *Service, lockRegistry *locks.Registry, interval time.Duration) *Closer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Closer{
		db:       service.GetDB(),
		locks:    lockRegistry,
		service:  service,
		interval: interval,
	}
}

// Start begins the closing loop and blocks until the context is cancelled.
func (c *Closer) Start(ctx context.Context) {
	logger := log.With().Str("component", "auction_closer").Logger()
	logger.Info().Dur("interval", c.interval).Msg("starting auction closer")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down auction closer")
			return
		case <-ticker.C:
			if err := c.CloseExpired(); err != nil {
				logger.Error().Err(err).Msg("failed to close expired auctions")
			}
		}
	}
}

// CloseExpired closes every item whose end time has passed. Exported so the
// loop body can be driven directly.
func (c *Closer) CloseExpired() error {
	logger := log.With().Str("component", "auction_closer").Logger()

	now := time.Now()
	expired, err := c.db.GetExpiredOpenItems(now)
	if err != nil {
		return err
	}

	for _, candidate := range expired {
		release := c.locks.Lock(candidate.ItemID)

		// Re-read under the lock: a buy-now purchase may have closed the
		// item between the scan and the lock acquisition.
		item, err := c.db.GetItem(candidate.ItemID)
		if err != nil {
			release()
			logger.Error().Err(err).Str("item_id", candidate.ItemID).Msg("failed to re-read item")
			continue
		}
		if item == nil || item.ClosedAt != nil || now.Before(item.EndAt) {
			release()
			continue
		}

		closedAt := time.Now()
		item.ClosedAt = &closedAt
		if err := c.db.UpdateItem(item); err != nil {
			release()
			logger.Error().Err(err).Str("item_id", item.ItemID).Msg("failed to stamp closed auction")
			continue
		}
		release()

		logger.Info().
			Str("item_id", item.ItemID).
			Time("end_at", item.EndAt).
			Msg("auction closed")

		if item.LeaderID != nil {
			if err := c.service.Settle(item.ItemID, *item.LeaderID, item.CurrentPrice); err != nil {
				logger.Error().Err(err).Str("item_id", item.ItemID).Msg("failed to trigger settlement")
			}
		}
	}

	return nil
}
