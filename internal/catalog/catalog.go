package catalog

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ksred/auction-api/internal/types"
	"github.com/ksred/auction-api/pkg/response"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	errEndAtNotFuture = &types.DomainError{
		Code:    "INVALID_LISTING",
		Message: "end_at must be in the future",
		Status:  http.StatusBadRequest,
	}
	errStepNotPositive = &types.DomainError{
		Code:    "INVALID_LISTING",
		Message: "step_price must be greater than zero",
		Status:  http.StatusBadRequest,
	}
	errBuyNowBelowStart = &types.DomainError{
		Code:    "INVALID_LISTING",
		Message: "buy_now_price must be greater than starting_price",
		Status:  http.StatusBadRequest,
	}
)

type Service struct {
	db *Database
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: NewDatabase(db)}
}

// CreateItem lists a new auction item for the seller. The item opens in the
// no-bids state with its current price at the starting price.
func (s *Service) CreateItem(sellerID string, req *CreateItemRequest) (*types.AuctionItem, error) {
	logger := log.With().
		Str("operation", "create_item").
		Str("seller_id", sellerID).
		Logger()

	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return nil, &types.DomainError{
			Code:    "INVALID_LISTING",
			Message: "end_at must be an RFC 3339 timestamp",
			Status:  http.StatusBadRequest,
		}
	}

	now := time.Now()
	if !endAt.After(now) {
		return nil, errEndAtNotFuture
	}
	if req.StepPrice <= 0 {
		return nil, errStepNotPositive
	}
	if req.BuyNowPrice != nil && *req.BuyNowPrice <= req.StartingPrice {
		return nil, errBuyNowBelowStart
	}

	item := &types.AuctionItem{
		ItemID:        "ITM_" + uuid.New().String(),
		SellerID:      sellerID,
		Name:          req.Name,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		StepPrice:     req.StepPrice,
		BuyNowPrice:   req.BuyNowPrice,
		CurrentPrice:  req.StartingPrice,
		EndAt:         endAt,
		AutoExtend:    req.AutoExtend,
		AllowUnrated:  req.AllowUnrated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.db.CreateItem(item); err != nil {
		logger.Error().Err(err).Msg("failed to create item")
		return nil, err
	}

	logger.Info().
		Str("item_id", item.ItemID).
		Float64("starting_price", item.StartingPrice).
		Time("end_at", item.EndAt).
		Msg("item listed")

	return item, nil
}

// GetItem returns the public detail view of one item, including its
// competitive bid count.
func (s *Service) GetItem(itemID string) (*ItemDetail, error) {
	item, err := s.db.GetItem(itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, types.ErrItemNotFound
	}

	bidCount, err := s.db.CountLedgerEntries(itemID)
	if err != nil {
		return nil, err
	}

	return toDetail(item, bidCount), nil
}

// ListOpenItems returns every item still accepting bids.
func (s *Service) ListOpenItems() ([]types.AuctionItem, error) {
	return s.db.GetOpenItems()
}

func toDetail(item *types.AuctionItem, bidCount int64) *ItemDetail {
	return &ItemDetail{
		ItemID:        item.ItemID,
		SellerID:      item.SellerID,
		Name:          item.Name,
		Description:   item.Description,
		StartingPrice: item.StartingPrice,
		StepPrice:     item.StepPrice,
		BuyNowPrice:   item.BuyNowPrice,
		CurrentPrice:  item.CurrentPrice,
		LeaderID:      item.LeaderID,
		BidCount:      bidCount,
		EndAt:         item.EndAt,
		AutoExtend:    item.AutoExtend,
		AllowUnrated:  item.AllowUnrated,
		ClosedAt:      item.ClosedAt,
		Sold:          item.Sold,
		CreatedAt:     item.CreatedAt,
	}
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// CreateItemHandler handles POST requests to list a new item.
// Requires a valid JWT token.
func (h *GinHandlers) CreateItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID := c.GetString("userID")

		var req CreateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		item, err := h.service.CreateItem(sellerID, &req)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"item": item})
	}
}

// GetItemHandler handles GET requests for one item's detail.
// URL parameter: item_id.
func (h *GinHandlers) GetItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := h.service.GetItem(c.Param("item_id"))
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"item": detail})
	}
}

// ListItemsHandler handles GET requests for all open items.
func (h *GinHandlers) ListItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := h.service.ListOpenItems()
		if err != nil {
			log.Error().Err(err).Msg("failed to list open items")
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"count": len(items),
			"items": items,
		})
	}
}
