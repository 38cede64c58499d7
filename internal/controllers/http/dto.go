package http

import "restaurant-service/internal/domain"

type VerifyOrderRequest struct {
	Reference string              `json:"reference" binding:"required"`
	Order     domain.OrderPayload `json:"order"`
}

type OrderResponse struct {
	OK           bool          `json:"ok"`
	Order        *domain.Order `json:"order,omitempty"`
	AlreadySaved bool          `json:"already_saved"`
	Message      string        `json:"message,omitempty"`
}

type InitializePaymentRequest struct {
	Email       string              `json:"email" binding:"required,email"`
	Order       domain.OrderPayload `json:"order"`
	CallbackURL string              `json:"callback_url"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SeenRequest marks ids as seen. An empty list marks every unseen record
// currently shown.
type SeenRequest struct {
	IDs []uint64 `json:"ids"`
}

type MessageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type RecordsResponse struct {
	OK      bool            `json:"ok"`
	Table   domain.Table    `json:"table"`
	Filter  string          `json:"filter"`
	Records []domain.Record `json:"records"`
	Stale   bool            `json:"stale,omitempty"`
}
