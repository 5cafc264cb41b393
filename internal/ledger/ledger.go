package ledger

import (
	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service reads the public bid history of an item. The ledger only records
// price-changing events, so self-raises and equal-ceiling ties never appear.
type Service struct {
	db *Database
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: NewDatabase(db)}
}

// History returns the item's ledger entries in chronological order.
func (s *Service) History(itemID string) ([]types.LedgerEntry, error) {
	item, err := s.db.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, types.ErrItemNotFound
	}
	return s.db.GetLedgerEntries(itemID)
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// GetBidHistoryHandler handles GET requests for an item's bid ledger.
// URL parameter: item_id.
func (h *GinHandlers) GetBidHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID := c.Param("item_id")

		entries, err := h.service.History(itemID)
		if err != nil {
			log.Error().Err(err).Str("item_id", itemID).Msg("failed to fetch bid history")
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"item_id": itemID,
			"count":   len(entries),
			"bids":    entries,
		})
	}
}
