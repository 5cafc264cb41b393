package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/bidding"
	"github.com/ksred/auction-api/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service enqueues outbox jobs for committed auction outcomes. Enqueueing is
// fire-and-forget: failures are logged and never surfaced to the caller,
// because the outcome is already committed.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// NotifyBidPlaced fans a bid outcome out to the seller, the bidder and the
// displaced leader. The displaced leader is only told when the price actually
// moved; a resolution that changed nothing for them stays silent.
func (s *Service) NotifyBidPlaced(outcome *bidding.BidOutcome) {
	logger := log.With().
		Str("item_id", outcome.ItemID).
		Str("component", "notification").
		Logger()

	jobs := []*Notification{
		s.newJob(KindBidReceived, outcome.SellerID, outcome, payload{
			ItemName:     outcome.ItemName,
			CurrentPrice: outcome.CurrentPrice,
			LeaderID:     outcome.LeaderID,
			Sold:         outcome.Sold,
		}),
		s.newJob(KindBidPlaced, outcome.BidderID, outcome, payload{
			ItemName:     outcome.ItemName,
			CurrentPrice: outcome.CurrentPrice,
			LeaderID:     outcome.LeaderID,
			Sold:         outcome.Sold,
			Winning:      outcome.Winning(),
		}),
	}

	if outcome.PreviousLeaderID != "" &&
		outcome.PreviousLeaderID != outcome.BidderID &&
		outcome.PriceChanged {
		jobs = append(jobs, s.newJob(KindPriceUpdated, outcome.PreviousLeaderID, outcome, payload{
			ItemName:     outcome.ItemName,
			CurrentPrice: outcome.CurrentPrice,
			LeaderID:     outcome.LeaderID,
			Sold:         outcome.Sold,
			Outbid:       outcome.LeaderID != outcome.PreviousLeaderID,
		}))
	}

	for _, job := range jobs {
		if err := s.db.CreateNotification(job); err != nil {
			logger.Error().Err(err).Str("kind", job.Kind).Msg("failed to enqueue notification")
		}
	}
}

// NotifyRejected tells a bidder they were barred from the item.
func (s *Service) NotifyRejected(item *types.AuctionItem, bidderID string) {
	job := s.newJobRaw(KindBidderRejected, bidderID, item.ItemID, payload{
		ItemName:     item.Name,
		CurrentPrice: item.CurrentPrice,
	})
	if err := s.db.CreateNotification(job); err != nil {
		log.Error().Err(err).
			Str("item_id", item.ItemID).
			Str("component", "notification").
			Msg("failed to enqueue rejection notification")
	}
}

func (s *Service) newJob(kind, recipientID string, outcome *bidding.BidOutcome, body payload) *Notification {
	return s.newJobRaw(kind, recipientID, outcome.ItemID, body)
}

func (s *Service) newJobRaw(kind, recipientID, itemID string, body payload) *Notification {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte("{}")
	}
	return &Notification{
		NotificationID: "NTF_" + uuid.New().String(),
		Kind:           kind,
		RecipientID:    recipientID,
		ItemID:         itemID,
		Payload:        string(raw),
		Status:         StatusPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}
