package controllers

import (
	"net/http"

	"ticketshop/middleware"
	"ticketshop/models"
	"ticketshop/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OrderController handles HTTP requests for the ticket purchase flow.
type OrderController struct {
	orderService services.OrderService
}

// NewOrderController creates a new OrderController.
func NewOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// SubmitCoupon handles POST /tickets/:channelID/coupon.
func (oc *OrderController) SubmitCoupon(ctx *gin.Context) {
	channelID := ctx.Param("channelID")

	var req models.SubmitCouponRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	snap, svcErr := oc.orderService.SubmitCoupon(ctx.Request.Context(), channelID, req.Code)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"coupon": snap})
}

// CreateOrder handles POST /tickets/:channelID/orders (product selection).
func (oc *OrderController) CreateOrder(ctx *gin.Context) {
	channelID := ctx.Param("channelID")

	var req models.CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	// The buyer is whoever the gateway authenticated, never the request body.
	buyerID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	req.BuyerID = buyerID

	order, svcErr := oc.orderService.CreateOrder(ctx.Request.Context(), channelID, &req)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"order": order})
}

// LatestOrder handles GET /tickets/:channelID/orders/latest.
func (oc *OrderController) LatestOrder(ctx *gin.Context) {
	channelID := ctx.Param("channelID")

	order, svcErr := oc.orderService.LatestOrder(ctx.Request.Context(), channelID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"order": order})
}

// IssuePaymentLink handles POST /orders/:orderID/payment-link.
func (oc *OrderController) IssuePaymentLink(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("orderID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	var req models.IssuePaymentLinkRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	order, svcErr := oc.orderService.IssuePaymentLink(ctx.Request.Context(), orderID, req.Method)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"order":       order,
		"payment_url": order.PaymentURL,
	})
}

// ForceClose handles POST /orders/:orderID/force-close.
func (oc *OrderController) ForceClose(ctx *gin.Context) {
	orderID, err := uuid.Parse(ctx.Param("orderID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}

	count, closable, svcErr := oc.orderService.ForceClose(ctx.Request.Context(), orderID)
	if svcErr != nil {
		ctx.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"confirmations": count,
		"closable":      closable,
	})
}
