package settings

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ksred/auction-api/pkg/response"
	"gorm.io/gorm"
)

const (
	KeyAutoExtendTriggerMinutes  = "auto_extend_trigger_minutes"
	KeyAutoExtendDurationMinutes = "auto_extend_duration_minutes"
	KeyMinRatingPoint            = "min_rating_point"
)

// Defaults applied when a setting row is absent.
var defaults = map[string]string{
	KeyAutoExtendTriggerMinutes:  "5",
	KeyAutoExtendDurationMinutes: "10",
	KeyMinRatingPoint:            "0.8",
}

// Service is the policy config provider for the bidding engine.
type Service struct {
	db *Database
}

func NewService(gormDB *gorm.DB) *Service {
	return &Service{
		db: NewDatabase(gormDB),
	}
}

// Current reads the policy from storage, falling back to defaults for any
// missing row. Callers must not cache the result across resolutions.
func (s *Service) Current() (*Policy, error) {
	rows, err := s.db.GetAll()
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(defaults))
	for key, value := range defaults {
		values[key] = value
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}

	trigger, err := strconv.Atoi(values[KeyAutoExtendTriggerMinutes])
	if err != nil {
		return nil, err
	}
	duration, err := strconv.Atoi(values[KeyAutoExtendDurationMinutes])
	if err != nil {
		return nil, err
	}
	minRating, err := strconv.ParseFloat(values[KeyMinRatingPoint], 64)
	if err != nil {
		return nil, err
	}

	return &Policy{
		AutoExtendTriggerMinutes:  trigger,
		AutoExtendDurationMinutes: duration,
		MinRatingPoint:            minRating,
	}, nil
}

// Update persists the given policy values.
func (s *Service) Update(policy *Policy) error {
	values := map[string]string{
		KeyAutoExtendTriggerMinutes:  strconv.Itoa(policy.AutoExtendTriggerMinutes),
		KeyAutoExtendDurationMinutes: strconv.Itoa(policy.AutoExtendDurationMinutes),
		KeyMinRatingPoint:            strconv.FormatFloat(policy.MinRatingPoint, 'f', -1, 64),
	}

	for key, value := range values {
		if err := s.db.Upsert(key, value); err != nil {
			return err
		}
	}
	return nil
}

// GinHandlers contains HTTP handlers for the internal settings endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

func (h *GinHandlers) GetSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, err := h.service.Current()
		response.Handle(c, policy, err)
	}
}

func (h *GinHandlers) UpdateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request Policy
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if request.AutoExtendTriggerMinutes <= 0 || request.AutoExtendDurationMinutes <= 0 {
			response.BadRequest(c, "auto-extend windows must be positive")
			return
		}
		if request.MinRatingPoint < 0 || request.MinRatingPoint > 1 {
			response.BadRequest(c, "min rating point must be between 0 and 1")
			return
		}

		if err := h.service.Update(&request); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, request)
	}
}
