package http

import (
	"errors"
	"net/http"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/feed"
	"restaurant-service/internal/infra"
	"restaurant-service/internal/repository"
	"restaurant-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Services groups what the handlers call into.
type Services struct {
	Verification *services.VerificationService
	Status       *services.StatusService
	Tracking     *services.TrackingService
	Submissions  *services.SubmissionService
	Admin        *services.AdminService
}

type Handler struct {
	svc         Services
	session     *feed.Session
	audit       infra.AuditInterface
	callbackURL string
	log         *zap.Logger
}

func NewHandler(svc Services, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, log: logger.Named("http")}
}

// SetSession attaches the live back-office view used by the admin routes.
func (h *Handler) SetSession(s *feed.Session) {
	h.session = s
}

func (h *Handler) SetAudit(a infra.AuditInterface) {
	h.audit = a
}

// SetCallbackURL sets the redirect used when a checkout does not name one.
func (h *Handler) SetCallbackURL(url string) {
	h.callbackURL = url
}

func (h *Handler) RegisterRoutes(r *gin.Engine, admin ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	r.POST("/verify-and-save-order", h.VerifyAndSaveOrder)
	r.POST("/api/verify-and-save-order", h.VerifyAndSaveOrder)
	r.POST("/payments/initialize", h.InitializePayment)
	r.GET("/orders/track", h.TrackOrder)

	r.POST("/reservations", h.CreateReservation)
	r.POST("/reviews", h.CreateReview)
	r.POST("/contacts", h.CreateContact)

	g := r.Group("/admin", admin...)
	g.GET("/notifications", h.Notifications)
	g.GET("/activity", h.Activity)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/stream", h.Stream)
	g.GET("/audit/:entity", h.AuditTrail)
	g.GET("/:table", h.ListRecords)
	g.PUT("/orders/:id/status", h.UpdateOrderStatus)
	g.PUT("/reservations/:id/status", h.updateStatus(domain.TableReservations))
	g.PUT("/contacts/:id/status", h.updateStatus(domain.TableContacts))
	g.DELETE("/:table/:id", h.DeleteRecord)
	g.POST("/:table/seen", h.MarkSeen)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) VerifyAndSaveOrder(c *gin.Context) {
	var req VerifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}

	res, err := h.svc.Verification.VerifyAndSaveOrder(c.Request.Context(), req.Reference, req.Order)
	if err != nil {
		if errors.Is(err, services.ErrOrderSaveFailed) {
			c.JSON(http.StatusInternalServerError, MessageResponse{
				OK:    false,
				Error: "Payment successful but the order could not be saved. Please contact support with reference " + req.Reference + ".",
			})
			return
		}
		h.fail(c, err)
		return
	}

	msg := "Order saved"
	if res.AlreadySaved {
		msg = "Order already saved"
	}
	c.JSON(http.StatusOK, OrderResponse{OK: true, Order: res.Order, AlreadySaved: res.AlreadySaved, Message: msg})
}

func (h *Handler) InitializePayment(c *gin.Context) {
	var req InitializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}
	callback := req.CallbackURL
	if callback == "" {
		callback = h.callbackURL
	}

	checkout, err := h.svc.Verification.InitializePayment(c.Request.Context(), services.CheckoutRequest{
		Email:       req.Email,
		Cart:        req.Order,
		CallbackURL: callback,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "checkout": checkout})
}

func (h *Handler) TrackOrder(c *gin.Context) {
	view, err := h.svc.Tracking.Track(c.Request.Context(), c.Query("order_number"), c.Query("phone"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "tracking": view})
}

func (h *Handler) CreateReservation(c *gin.Context) {
	var req services.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}
	r, err := h.svc.Submissions.CreateReservation(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": r.ID, "message": "Reservation received"})
}

func (h *Handler) CreateReview(c *gin.Context) {
	var req services.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}
	r, err := h.svc.Submissions.CreateReview(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": r.ID, "message": "Thank you for your review"})
}

func (h *Handler) CreateContact(c *gin.Context) {
	var req services.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, MessageResponse{OK: false, Error: err.Error()})
		return
	}
	m, err := h.svc.Submissions.CreateContactMessage(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": m.ID, "message": "Message sent"})
}

// fail maps service errors onto status codes. Unknown errors are 500.
func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, MessageResponse{OK: false, Error: err.Error()})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrReferenceMismatch),
		errors.Is(err, services.ErrPaymentNotVerified),
		errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrCurrencyMismatch),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, domain.ErrUnknownTable),
		errors.Is(err, repository.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTransitionNotAllowed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
