package services

import (
	"time"

	"restaurant-service/internal/domain"
	"restaurant-service/internal/infra"
)

const (
	TestReference   = "UBPAY-1760000000000"
	TestOrderNumber = "UB000000"
	TestPhone       = "0241234567"
)

var TestNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// CreateMockPayload is a two-line cart totalling 45.00.
func CreateMockPayload(reference string) domain.OrderPayload {
	return domain.OrderPayload{
		OrderNumber:      TestOrderNumber,
		PaymentReference: reference,
		Name:             "Ama Mensah",
		Phone:            TestPhone,
		Address:          "12 Ring Road, Accra",
		OrderType:        "delivery",
		Items: []domain.OrderItem{
			{Name: "Jollof Rice", Price: 20.00, Quantity: 2},
			{Name: "Kelewele", Price: 5.00, Quantity: 1},
		},
		Total:    45.00,
		Currency: "GHS",
	}
}

func CreateMockVerification(amountMinor int64) *infra.Verification {
	return &infra.Verification{
		Success:     true,
		Status:      "success",
		Reference:   TestReference,
		AmountMinor: amountMinor,
		Currency:    "GHS",
	}
}

func CreateMockOrder(id uint64, status domain.OrderStatus) *domain.Order {
	o := CreateMockPayload(TestReference).NewOrder(TestNow)
	o.ID = id
	o.Status = status
	return o
}
