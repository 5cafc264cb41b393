package settlement

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service owns settlement handoff records.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// TriggerSettlement hands the closed auction off to the order workflow. It is
// idempotent on the item id: the first caller creates the record, every later
// caller gets the existing one back.
func (s *Service) TriggerSettlement(itemID, winnerID string, finalPrice float64) (*Settlement, error) {
	logger := log.With().
		Str("item_id", itemID).
		Str("winner_id", winnerID).
		Str("service", "settlement").
		Logger()

	existing, err := s.db.GetSettlementByItemID(itemID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	settlement := &Settlement{
		SettlementID: "STL_" + uuid.New().String(),
		ItemID:       itemID,
		WinnerID:     winnerID,
		FinalPrice:   finalPrice,
		Status:       StatusPendingPayment,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	if err := s.db.CreateSettlement(settlement); err != nil {
		// A concurrent trigger may have won the unique index race; the
		// existing record is the settlement.
		if existing, getErr := s.db.GetSettlementByItemID(itemID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	logger.Info().
		Str("settlement_id", settlement.SettlementID).
		Float64("final_price", finalPrice).
		Msg("auction handed off to order workflow")

	return settlement, nil
}

// Settle adapts TriggerSettlement to the bidding engine's Settler interface.
func (s *Service) Settle(itemID, winnerID string, finalPrice float64) error {
	_, err := s.TriggerSettlement(itemID, winnerID, finalPrice)
	return err
}

// GetSettlementByItemID retrieves the settlement for an item, if any.
func (s *Service) GetSettlementByItemID(itemID string) (*Settlement, error) {
	return s.db.GetSettlementByItemID(itemID)
}

// GetDB exposes the database for the closer processor.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetItemSettlementHandler handles GET requests for an item's settlement.
// URL parameter: item_id.
func (h *GinHandlers) GetItemSettlementHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID := c.Param("item_id")

		settlement, err := h.service.GetSettlementByItemID(itemID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if settlement == nil {
			response.NotFound(c, "No settlement for this item")
			return
		}

		response.Success(c, settlement)
	}
}
