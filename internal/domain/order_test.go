package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validPayload() OrderPayload {
	return OrderPayload{
		OrderNumber:      "ub123456",
		PaymentReference: "UBPAY-1700000000000",
		Name:             "Ama Mensah",
		Phone:            "0240000000",
		Address:          "12 Ring Road",
		Items: []OrderItem{
			{Name: "Jollof", Price: 20.00, Quantity: 2},
			{Name: "Kelewele", Price: 5.00, Quantity: 1},
		},
		Total:    45.00,
		Currency: "ghs",
		Status:   "Delivered",
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(4500), MinorUnits(45.00))
	assert.Equal(t, int64(1999), MinorUnits(19.99))
	assert.Equal(t, int64(30), MinorUnits(0.1+0.2))
}

func TestOrderPayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *OrderPayload)
		wantErr error
		errText string
	}{
		{name: "valid", mutate: func(p *OrderPayload) {}},
		{name: "zero total", mutate: func(p *OrderPayload) { p.Total = 0 }, wantErr: ErrBadTotal},
		{name: "no items", mutate: func(p *OrderPayload) { p.Items = nil }, wantErr: ErrEmptyItems},
		{name: "zero quantity", mutate: func(p *OrderPayload) { p.Items[0].Quantity = 0 }, errText: "quantity"},
		{name: "blank name", mutate: func(p *OrderPayload) { p.Items[1].Name = " " }, errText: "name is empty"},
		{name: "total differs", mutate: func(p *OrderPayload) { p.Total = 40 }, wantErr: ErrTotalDiffers},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(&p)
			err := p.Validate()
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				assert.ErrorContains(t, err, tt.errText)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderPayload_NewOrderIgnoresClientStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := validPayload().NewOrder(now)

	assert.Equal(t, StatusReceived, o.Status)
	assert.False(t, o.Seen)
	assert.Equal(t, "UB123456", o.OrderNumber)
	assert.Equal(t, "GHS", o.Currency)
	assert.Equal(t, now, o.CreatedAt)
	assert.Len(t, o.Items, 2)
}
