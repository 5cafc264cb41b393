package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Processor drains the outbox. Each job gets at most one delivery attempt;
// a failed job stays visible as FAILED for operators instead of blocking or
// retrying on the bidding path.
type Processor struct {
	db       *Database
	mailer   Mailer
	interval time.Duration
}

func NewProcessor(gormDB *gorm.DB, mailer Mailer, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Processor{
		db:       NewDatabase(gormDB),
		mailer:   mailer,
		interval: interval,
	}
}

// Start begins the outbox processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "notification_processor").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting notification processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down notification processor")
			return
		case <-ticker.C:
			if err := p.ProcessPending(); err != nil {
				logger.Error().Err(err).Msg("failed to process pending notifications")
			}
		}
	}
}

// ProcessPending delivers every pending outbox job once.
func (p *Processor) ProcessPending() error {
	logger := log.With().Str("component", "notification_processor").Logger()

	jobs, err := p.db.GetPendingNotifications()
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(jobs)).Msg("processing pending notifications")

	for _, job := range jobs {
		job.Attempts++
		job.UpdatedAt = time.Now()

		if err := p.deliver(&job); err != nil {
			logger.Error().Err(err).
				Str("notification_id", job.NotificationID).
				Str("kind", job.Kind).
				Msg("notification delivery failed")
			job.Status = StatusFailed
		} else {
			job.Status = StatusSent
		}

		if err := p.db.UpdateNotification(&job); err != nil {
			logger.Error().Err(err).
				Str("notification_id", job.NotificationID).
				Msg("failed to update notification status")
		}
	}

	return nil
}

func (p *Processor) deliver(job *Notification) error {
	recipient, err := p.db.GetUserByID(job.RecipientID)
	if err != nil {
		return err
	}
	if recipient == nil || recipient.Email == "" {
		return fmt.Errorf("no deliverable address for recipient %s", job.RecipientID)
	}

	var body payload
	if err := json.Unmarshal([]byte(job.Payload), &body); err != nil {
		return fmt.Errorf("corrupt payload: %w", err)
	}

	return p.mailer.Send(Mail{
		To:      recipient.Email,
		Subject: subjectFor(job.Kind, &body),
		Body:    bodyFor(job.Kind, recipient.FullName, &body),
	})
}

func subjectFor(kind string, body *payload) string {
	switch kind {
	case KindBidReceived:
		if body.Sold {
			return fmt.Sprintf("Sold: %s reached its buy-now price", body.ItemName)
		}
		return fmt.Sprintf("New bid on your item: %s", body.ItemName)
	case KindBidPlaced:
		if body.Winning {
			return fmt.Sprintf("You're winning: %s", body.ItemName)
		}
		return fmt.Sprintf("Bid placed: %s", body.ItemName)
	case KindPriceUpdated:
		if body.Outbid {
			return fmt.Sprintf("You've been outbid: %s", body.ItemName)
		}
		return fmt.Sprintf("Price updated: %s", body.ItemName)
	case KindBidderRejected:
		return fmt.Sprintf("Your bid has been rejected: %s", body.ItemName)
	default:
		return fmt.Sprintf("Auction update: %s", body.ItemName)
	}
}

func bodyFor(kind, recipientName string, body *payload) string {
	switch kind {
	case KindBidReceived:
		return fmt.Sprintf("Dear %s, your item %q received a new bid. Current price: %.0f.",
			recipientName, body.ItemName, body.CurrentPrice)
	case KindBidPlaced:
		if body.Winning {
			return fmt.Sprintf("Dear %s, you are currently the highest bidder on %q at %.0f.",
				recipientName, body.ItemName, body.CurrentPrice)
		}
		return fmt.Sprintf("Dear %s, your bid on %q was placed but another bidder holds a higher maximum. Current price: %.0f.",
			recipientName, body.ItemName, body.CurrentPrice)
	case KindPriceUpdated:
		if body.Outbid {
			return fmt.Sprintf("Dear %s, another bidder has surpassed your bid on %q. New price: %.0f.",
				recipientName, body.ItemName, body.CurrentPrice)
		}
		return fmt.Sprintf("Dear %s, you are still the highest bidder on %q, but the price has risen to %.0f.",
			recipientName, body.ItemName, body.CurrentPrice)
	case KindBidderRejected:
		return fmt.Sprintf("Dear %s, the seller has rejected your bids on %q. You can no longer bid on this item.",
			recipientName, body.ItemName)
	default:
		return fmt.Sprintf("Dear %s, there is an update on %q.", recipientName, body.ItemName)
	}
}
