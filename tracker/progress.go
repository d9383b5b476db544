package tracker

import "food-delivery/tracking/models"

// Order progress is rendered as four steps: placed, preparing, on the way,
// delivered. Unknown statuses fall back to step 0 rather than failing.
const (
	StepPlaced    = 0
	StepPreparing = 1
	StepOnTheWay  = 2
	StepDelivered = 3
)

// StepForStatus maps an order status to its progress step.
func StepForStatus(status models.OrderStatus) int {
	switch status {
	case models.StatusPaid, models.StatusPreparing, models.StatusReady:
		return StepPreparing
	case models.StatusAssigned, models.StatusPickup, models.StatusPickedUp:
		return StepOnTheWay
	case models.StatusDelivered:
		return StepDelivered
	default:
		return StepPlaced
	}
}

// ProgressWidth is the progress bar fill percentage. A rejected order
// shows a fixed failure bar instead of step progress.
func ProgressWidth(status models.OrderStatus) int {
	if status == models.StatusRejected {
		return 25
	}
	switch StepForStatus(status) {
	case StepPreparing:
		return 50
	case StepOnTheWay:
		return 75
	case StepDelivered:
		return 100
	default:
		return 25
	}
}

// StatusDescription is the customer-facing line for a status.
func StatusDescription(status models.OrderStatus) string {
	switch status {
	case models.StatusPending:
		return "Waiting for the restaurant to confirm your order"
	case models.StatusAccepted:
		return "The restaurant has accepted your order"
	case models.StatusRejected:
		return "Sorry, the restaurant could not take your order"
	case models.StatusPaid:
		return "Payment received, sending your order to the kitchen"
	case models.StatusPreparing:
		return "Your food is being prepared"
	case models.StatusReady:
		return "Your order is ready and waiting for a courier"
	case models.StatusAssigned:
		return "A courier is heading to the restaurant"
	case models.StatusPickup, models.StatusPickedUp:
		return "Your order is on the way"
	case models.StatusDelivered:
		return "Your order has been delivered"
	default:
		return "Tracking your order"
	}
}

// ShouldPoll reports whether the session keeps refreshing on its interval.
// Polling only runs while a courier is actively moving the order.
func ShouldPoll(status models.OrderStatus) bool {
	switch status {
	case models.StatusAssigned, models.StatusPickup, models.StatusPickedUp:
		return true
	default:
		return false
	}
}

// Terminal reports whether the order can no longer change status.
func Terminal(status models.OrderStatus) bool {
	return status == models.StatusDelivered || status == models.StatusRejected
}
