package services

import "shoestore/internal/models"

// Actor identifies who requests a status change.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorAdmin    Actor = "admin"
)

var adminTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipping, models.OrderStatusCancelled},
	models.OrderStatusShipping:   {models.OrderStatusDelivered},
}

// CanTransition reports whether actor may move an order from one status to another.
// Self-transitions and anything leaving a terminal status are never allowed.
func CanTransition(actor Actor, from, to models.OrderStatus) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	switch actor {
	case ActorAdmin:
		for _, next := range adminTransitions[from] {
			if next == to {
				return true
			}
		}
		return false
	case ActorCustomer:
		return to == models.OrderStatusCancelled && restocksOnCancel(from)
	default:
		return false
	}
}

// restocksOnCancel reports whether cancelling from the status returns reserved stock.
func restocksOnCancel(from models.OrderStatus) bool {
	return from == models.OrderStatusPending || from == models.OrderStatusProcessing
}
