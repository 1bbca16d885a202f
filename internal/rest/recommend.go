package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"buckit/business/bandit"
	"buckit/domain"
	"buckit/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	RecommendHandler struct {
		validate         *validator.Validate
		recommendService RecommendService
	}

	RecommendService interface {
		Recommend(ctx context.Context, req domain.RecommendRequest, clientIP string) (*domain.RecommendResponse, error)
		LogFeedback(ctx context.Context, userID, itemID, eventType string, features [bandit.FeatureDim]float64) (float64, error)
	}

	FeedbackRequest struct {
		UserID    string    `json:"userId" validate:"required"`
		ItemID    string    `json:"itemId" validate:"required"`
		EventType string    `json:"eventType" validate:"required,oneof=impression view like save start complete hide skip"`
		Features  []float64 `json:"features" validate:"omitempty,len=6"`
	}

	FeedbackResponse struct {
		Success bool    `json:"success"`
		Reward  float64 `json:"reward"`
	}

	rateLimitBody struct {
		Error     string `json:"error"`
		Remaining int    `json:"remaining"`
		ResetAt   string `json:"reset_at"`
	}
)

// ResponseError represent the response error struct. The key is
// "error" so failure bodies line up with the 429 payload and with what
// clients of this surface already parse.
type ResponseError struct {
	Message string `json:"error"`
}

func NewRecommendHandler(svc RecommendService) *RecommendHandler {
	return &RecommendHandler{
		validate:         validator.New(),
		recommendService: svc,
	}
}

// Recommend serves POST /api/v1/recommendations. The response body is
// the pipeline payload itself, not an envelope, so cached and fresh
// responses are byte-compatible.
func (h *RecommendHandler) Recommend(c echo.Context) error {
	var req domain.RecommendRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	metrics.RecommendRequests.Inc()
	start := time.Now()
	resp, err := h.recommendService.Recommend(c.Request().Context(), req, c.RealIP())
	metrics.RecommendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) {
			metrics.RecommendRateLimited.Inc()
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter().Seconds())))
			return c.JSON(http.StatusTooManyRequests, rateLimitBody{
				Error:     "Rate limit exceeded",
				Remaining: rl.Remaining,
				ResetAt:   rl.ResetAt.Format(time.RFC3339),
			})
		}
		if errors.Is(err, domain.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusOK, resp)
}

// Feedback serves POST /api/v1/recommendations/feedback.
func (h *RecommendHandler) Feedback(c echo.Context) error {
	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	// missing features default to the zero vector, matching clients
	// that only report the event type
	var features [bandit.FeatureDim]float64
	copy(features[:], req.Features)

	reward, err := h.recommendService.LogFeedback(c.Request().Context(), req.UserID, req.ItemID, req.EventType, features)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated(FeedbackResponse{
		Success: true,
		Reward:  reward,
	}))
}
