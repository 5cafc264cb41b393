package reputation

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/pkg/response"
	"gorm.io/gorm"
)

// Service answers the bidding engine's eligibility questions and records new
// reviews.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// RatingPoint returns positives / (positives + negatives) over the user's
// non-neutral reviews, or 0 when they have none.
func (s *Service) RatingPoint(userID string) (float64, error) {
	positives, negatives, err := s.db.CountRatings(userID)
	if err != nil {
		return 0, err
	}
	total := positives + negatives
	if total == 0 {
		return 0, nil
	}
	return float64(positives) / float64(total), nil
}

// HasRatedHistory reports whether the user has any non-neutral review. A user
// without one counts as unrated for bidding eligibility.
func (s *Service) HasRatedHistory(userID string) (bool, error) {
	positives, negatives, err := s.db.CountRatings(userID)
	if err != nil {
		return false, err
	}
	return positives+negatives > 0, nil
}

// CreateReview records a rating for a counterparty.
func (s *Service) CreateReview(reviewerID, revieweeID, itemID string, rating int, comment string) (*Review, error) {
	review := &Review{
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		ItemID:     itemID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now(),
	}
	if err := s.db.CreateReview(review); err != nil {
		return nil, err
	}
	return review, nil
}

// GinHandlers contains HTTP handlers for reputation endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// CreateReviewHandler handles POST requests to review a counterparty.
// URL parameter: user_id (the reviewee); reviewer comes from the JWT.
func (h *GinHandlers) CreateReviewHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reviewerID := c.GetString("userID")
		revieweeID := c.Param("user_id")

		var request struct {
			ItemID  string `json:"item_id" binding:"required"`
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if request.Rating < -1 || request.Rating > 1 {
			response.BadRequest(c, "rating must be -1, 0 or 1")
			return
		}
		if revieweeID == reviewerID {
			response.BadRequest(c, "you cannot review yourself")
			return
		}

		review, err := h.service.CreateReview(reviewerID, revieweeID, request.ItemID, request.Rating, request.Comment)
		response.Handle(c, review, err)
	}
}

// GetRatingHandler handles GET requests for a user's rating point.
func (h *GinHandlers) GetRatingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("user_id")

		point, err := h.service.RatingPoint(userID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		rated, err := h.service.HasRatedHistory(userID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{
			"user_id":      userID,
			"rating_point": point,
			"rated":        rated,
		})
	}
}
