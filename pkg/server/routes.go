package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Router struct {
	featureHandler *FeatureHandler
	cellHandler    *CellHandler
}

func NewRouter(featureHandler *FeatureHandler, cellHandler *CellHandler) *Router {
	return &Router{
		featureHandler: featureHandler,
		cellHandler:    cellHandler,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		features := v1.Group("/features")
		{
			features.POST("/cached", r.featureHandler.Cached)
			features.POST("/osm", r.featureHandler.Live)
		}

		cells := v1.Group("/cells")
		{
			cells.GET("", r.cellHandler.Locate)
			cells.GET("/:id/neighbors", r.cellHandler.Neighbors)
		}
	}
}
