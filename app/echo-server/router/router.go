package router

import (
	"buckit/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendHandler) {
	reco := api.Group("/recommendations")

	reco.POST("", handler.Recommend)
	reco.POST("/feedback", handler.Feedback)
}
