package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kass/waykit/pkg/grid"
)

// maxNeighborRadius bounds the response of the neighbors endpoint to
// (2·50+1)² ids.
const maxNeighborRadius = 50

// CellLocator maps coordinates to grid cells.
type CellLocator interface {
	CellAt(lat, lon float64) (grid.Cell, error)
}

type CellHandler struct {
	locator CellLocator
}

func NewCellHandler(locator CellLocator) *CellHandler {
	return &CellHandler{locator: locator}
}

// Locate handles GET /v1/cells?lat=&lon=
func (h *CellHandler) Locate(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lat must be a number in [-90, 90]"})
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lon must be a number in [-180, 180]"})
		return
	}

	cell, err := h.locator.CellAt(lat, lon)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cell_id": cell.ID(),
		"col":     cell.Col,
		"row":     cell.Row,
	})
}

// Neighbors handles GET /v1/cells/:id/neighbors?r=1
func (h *CellHandler) Neighbors(c *gin.Context) {
	id := c.Param("id")
	r, err := strconv.Atoi(c.DefaultQuery("r", "1"))
	if err != nil || r < 0 || r > maxNeighborRadius {
		c.JSON(http.StatusBadRequest, gin.H{"error": "r must be an integer in [0, 50]"})
		return
	}

	ids, err := grid.NeighborsSquare(id, r)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, grid.ErrInvalidArgument) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cell_id":   id,
		"r":         r,
		"neighbors": ids,
	})
}
