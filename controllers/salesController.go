package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/models"
	"github.com/ken-eddy/simplesales/sales"
)

type SaleCreator interface {
	Create(ctx context.Context, req sales.Request) (*models.Sale, bool, error)
}

type SaleHistory interface {
	List(ctx context.Context, businessID uint, limit, offset int) ([]models.Sale, error)
	Get(ctx context.Context, businessID, saleID uint) (*models.Sale, error)
}

type SalesController struct {
	engine  SaleCreator
	history SaleHistory
}

func NewSalesController(engine SaleCreator, history SaleHistory) *SalesController {
	return &SalesController{engine: engine, history: history}
}

// CreateSale answers 201 for a new sale and for a replay of a known
// request_id; replays are marked with the Idempotent-Replayed header.
func (sc *SalesController) CreateSale(c *gin.Context) {
	var input struct {
		RequestID string       `json:"request_id"`
		Items     []sales.Item `json:"items"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid sale payload")
		return
	}

	sale, replayed, err := sc.engine.Create(c.Request.Context(), sales.Request{
		BusinessID: businessID(c),
		RequestID:  input.RequestID,
		Items:      input.Items,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replayed", "true")
	}
	c.JSON(http.StatusCreated, sale)
}

func (sc *SalesController) GetSales(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}

	list, err := sc.history.List(c.Request.Context(), businessID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (sc *SalesController) GetSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	sale, err := sc.history.Get(c.Request.Context(), businessID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
