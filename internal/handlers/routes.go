package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/happypaws/dogwalk-backend/internal/middleware"
	"github.com/happypaws/dogwalk-backend/internal/models"
)

// MaxWebhookBodyBytes bounds the webhook payload kept for signature checks
const MaxWebhookBodyBytes = 1 << 20

// RegisterRoutes mounts the booking and payment API on api. auth must populate
// the user context the handlers read.
func RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc, bookings *BookingHandler, payments *PaymentHandler) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	bookingRoutes := api.Group("/bookings")
	bookingRoutes.Use(auth)
	{
		bookingRoutes.POST("", bookings.CreateBooking)
		bookingRoutes.GET("", bookings.GetMyBookings)
		bookingRoutes.GET("/admin/all", adminOnly, bookings.GetAllBookings)
		bookingRoutes.GET("/:id", bookings.GetBooking)
		bookingRoutes.PUT("/:id", bookings.UpdateBooking)
		bookingRoutes.DELETE("/:id", bookings.DeleteBooking)
	}

	paymentRoutes := api.Group("/payments")
	{
		// Public, gated by the provider signature
		paymentRoutes.POST("/webhook", middleware.RawBody(MaxWebhookBodyBytes), payments.Webhook)

		paymentRoutes.POST("/create-payment-intent", auth, payments.CreatePaymentIntent)
		paymentRoutes.GET("/status/:bookingId", auth, payments.GetPaymentStatus)
		paymentRoutes.POST("/refund/:id", auth, adminOnly, payments.RefundPayment)
		paymentRoutes.GET("/admin/audit/:bookingId", auth, adminOnly, payments.GetAuditTrail)
		paymentRoutes.POST("/admin/reconcile", auth, adminOnly, payments.Reconcile)
		paymentRoutes.GET("/admin/reconcile/status", auth, adminOnly, payments.ReconcileStatus)
	}
}
