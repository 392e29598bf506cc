package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ken-eddy/simplesales/catalog"
	"github.com/ken-eddy/simplesales/inventory"
	"github.com/ken-eddy/simplesales/models"
)

type ProductService interface {
	Create(ctx context.Context, businessID uint, in catalog.CreateInput) (*models.Product, error)
	List(ctx context.Context, businessID uint) ([]models.Product, error)
	Get(ctx context.Context, businessID, productID uint) (*models.Product, error)
	Update(ctx context.Context, businessID, productID uint, in catalog.UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, businessID, productID uint) error
}

type InventoryService interface {
	Create(ctx context.Context, businessID, productID uint, in inventory.CreateInput) (*models.Inventory, error)
	Update(ctx context.Context, businessID, productID uint, in inventory.UpdateInput) (*models.Inventory, error)
	List(ctx context.Context, businessID uint) ([]models.Inventory, error)
	LowStock(ctx context.Context, businessID uint) ([]models.Inventory, error)
}

type ProductController struct {
	products  ProductService
	inventory InventoryService
}

func NewProductController(products ProductService, inv InventoryService) *ProductController {
	return &ProductController{products: products, inventory: inv}
}

func (pc *ProductController) GetProducts(c *gin.Context) {
	products, err := pc.products.List(c.Request.Context(), businessID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (pc *ProductController) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := pc.products.Get(c.Request.Context(), businessID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	var input catalog.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid product payload")
		return
	}

	product, err := pc.products.Create(c.Request.Context(), businessID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var input catalog.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid product payload")
		return
	}

	product, err := pc.products.Update(c.Request.Context(), businessID(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := pc.products.Delete(c.Request.Context(), businessID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// inventoryPayload carries the expiry date as a calendar day string.
type inventoryPayload struct {
	QuantityAvailable *int    `json:"quantity_available"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
	ExpiryDate        *string `json:"expiry_date"`
}

type inventoryView struct {
	ID                uint    `json:"id"`
	ProductID         uint    `json:"product_id"`
	ProductName       string  `json:"product_name,omitempty"`
	QuantityAvailable int     `json:"quantity_available"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	ExpiryDate        *string `json:"expiry_date"`
	IsLow             bool    `json:"is_low"`
}

func viewInventory(inv models.Inventory) inventoryView {
	v := inventoryView{
		ID:                inv.ID,
		ProductID:         inv.ProductID,
		QuantityAvailable: inv.QuantityAvailable,
		LowStockThreshold: inv.LowStockThreshold,
		IsLow:             inv.IsLow(),
	}
	if inv.Product != nil {
		v.ProductName = inv.Product.Name
	}
	if inv.ExpiryDate != nil {
		d := inv.ExpiryDate.Format(dateLayout)
		v.ExpiryDate = &d
	}
	return v
}

func viewInventories(list []models.Inventory) []inventoryView {
	out := make([]inventoryView, 0, len(list))
	for _, inv := range list {
		out = append(out, viewInventory(inv))
	}
	return out
}

func (pc *ProductController) CreateInventory(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	var input inventoryPayload
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid inventory payload")
		return
	}
	if input.QuantityAvailable == nil {
		badRequest(c, "quantity_available is required")
		return
	}
	expiry, err := optionalDate(input.ExpiryDate, "expiry_date")
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := pc.inventory.Create(c.Request.Context(), businessID(c), productID, inventory.CreateInput{
		QuantityAvailable: *input.QuantityAvailable,
		LowStockThreshold: input.LowStockThreshold,
		ExpiryDate:        expiry,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewInventory(*inv))
}

func (pc *ProductController) UpdateInventory(c *gin.Context) {
	productID, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	var input inventoryPayload
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid inventory payload")
		return
	}
	expiry, err := optionalDate(input.ExpiryDate, "expiry_date")
	if err != nil {
		respondError(c, err)
		return
	}

	inv, err := pc.inventory.Update(c.Request.Context(), businessID(c), productID, inventory.UpdateInput{
		QuantityAvailable: input.QuantityAvailable,
		LowStockThreshold: input.LowStockThreshold,
		ExpiryDate:        expiry,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewInventory(*inv))
}

func (pc *ProductController) GetInventory(c *gin.Context) {
	list, err := pc.inventory.List(c.Request.Context(), businessID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewInventories(list))
}

func (pc *ProductController) LowStockItems(c *gin.Context) {
	list, err := pc.inventory.LowStock(c.Request.Context(), businessID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewInventories(list))
}
