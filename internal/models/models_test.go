package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	assert.True(t, OrderStatusPending.CanTransition(OrderStatusConfirmed))
	assert.True(t, OrderStatusConfirmed.CanTransition(OrderStatusDelivered))

	assert.False(t, OrderStatusPending.CanTransition(OrderStatusDelivered))
	assert.False(t, OrderStatusConfirmed.CanTransition(OrderStatusPending))
	assert.False(t, OrderStatusDelivered.CanTransition(OrderStatusConfirmed))
	assert.False(t, OrderStatus("SHIPPED").CanTransition(OrderStatusDelivered))
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Valid())
	assert.False(t, OrderStatus("pending").Valid())
}

func TestLineTotals(t *testing.T) {
	line := CartLine{Quantity: 3, UnitPrice: decimal.RequireFromString("19.99")}
	assert.True(t, decimal.RequireFromString("59.97").Equal(line.LineTotal()))

	item := OrderItem{Quantity: 2, PriceAtOrderTime: decimal.NewFromInt(10)}
	assert.True(t, decimal.NewFromInt(20).Equal(item.LineTotal()))
}
