package service

import "shop-service/internal/models"

// Role is the capacity in which a principal acts on an order
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// StockEffect is the stock movement a status transition carries
type StockEffect int

const (
	EffectNone StockEffect = iota
	EffectRelease
	EffectReserve
)

func (e StockEffect) String() string {
	switch e {
	case EffectRelease:
		return "release"
	case EffectReserve:
		return "reserve"
	default:
		return "none"
	}
}

type transitionKey struct {
	role Role
	from models.OrderStatus
	to   models.OrderStatus
}

// transitions lists every legal (role, from, to) triple. Anything absent is forbidden.
var transitions = map[transitionKey]StockEffect{
	{RoleOwner, models.OrderStatusPending, models.OrderStatusCancelled}: EffectRelease,

	{RoleStaff, models.OrderStatusPending, models.OrderStatusShipped}:   EffectNone,
	{RoleStaff, models.OrderStatusPending, models.OrderStatusDelivered}: EffectNone,
	{RoleStaff, models.OrderStatusPending, models.OrderStatusCancelled}: EffectRelease,
	{RoleStaff, models.OrderStatusShipped, models.OrderStatusDelivered}: EffectNone,
	{RoleStaff, models.OrderStatusShipped, models.OrderStatusCancelled}: EffectRelease,
	{RoleStaff, models.OrderStatusCancelled, models.OrderStatusPending}: EffectReserve,
}

// LookupTransition reports whether role may move an order from one status to another,
// and which stock effect the move carries.
func LookupTransition(role Role, from, to models.OrderStatus) (StockEffect, bool) {
	effect, ok := transitions[transitionKey{role: role, from: from, to: to}]
	return effect, ok
}

// roleFor resolves the principal's role on an order. Staff act as staff even on their own orders.
func roleFor(principal *models.User, order *models.Order) (Role, bool) {
	switch {
	case principal.IsStaff:
		return RoleStaff, true
	case principal.ID == order.UserID:
		return RoleOwner, true
	default:
		return "", false
	}
}
