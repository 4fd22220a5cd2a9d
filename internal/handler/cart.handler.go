package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type updateCartItemRequest struct {
	Size     string `json:"size"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

func (h *Handler) ListCart(c *gin.Context) {
	entries, err := h.carts.List(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.carts.AddItem(c.Request.Context(), actorFrom(c).UserID, req.ProductID, req.Size, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": entry})
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.carts.UpdateQuantity(c.Request.Context(), actorFrom(c).UserID, c.Param("productId"), req.Size, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": entry})
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	if err := h.carts.RemoveItem(c.Request.Context(), actorFrom(c).UserID, c.Param("productId"), c.Query("size")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
