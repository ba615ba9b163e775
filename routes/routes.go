package routes

import (
	"ticketshop/controllers"
	"ticketshop/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all API routes.
func RegisterRoutes(r *gin.Engine, cc *controllers.CouponController, oc *controllers.OrderController, wc *controllers.WebhookController) {
	// Provider callbacks authenticate via their own signature schemes.
	webhooks := r.Group("/webhooks")
	webhooks.POST("/stripe", wc.StripeWebhook)
	webhooks.POST("/crypto", wc.CryptoWebhook)

	// Ticket flow (driven by the chat gateway).
	tickets := r.Group("/tickets")
	tickets.Use(middleware.AuthMiddleware())
	tickets.POST("/:channelID/coupon", oc.SubmitCoupon)
	tickets.POST("/:channelID/orders", oc.CreateOrder)
	tickets.GET("/:channelID/orders/latest", oc.LatestOrder)

	orders := r.Group("/orders")
	orders.Use(middleware.AuthMiddleware())
	orders.POST("/:orderID/payment-link", oc.IssuePaymentLink)
	orders.POST("/:orderID/force-close", oc.ForceClose)

	// Coupon ledger administration.
	coupons := r.Group("/coupons")
	coupons.Use(middleware.AuthMiddleware())
	coupons.POST("/preview", cc.PreviewDiscount)
	coupons.GET("/:code", cc.GetCoupon)

	adminCoupons := coupons.Group("")
	adminCoupons.Use(middleware.AdminOnly())
	adminCoupons.POST("", cc.CreateCoupon)
	adminCoupons.GET("", cc.ListCoupons)
	adminCoupons.DELETE("/:code", cc.RemoveCoupon)
}
