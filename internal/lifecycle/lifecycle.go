// Package lifecycle holds the order status state machine: which actor may
// move an order from one status to another.
package lifecycle

import (
	"errors"
	"fmt"

	"medigo/internal/models"
)

var (
	ErrTerminal          = errors.New("order is in a terminal state")
	ErrRoleNotPermitted  = errors.New("role may not set this status")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// ActorAssignment is the pseudo-actor used for the driver assignment edge.
// Both a driver taking an order and a pharmacy assigning one go through it.
const ActorAssignment models.Role = "assignment"

type key struct {
	from  models.OrderStatus
	actor models.Role
	to    models.OrderStatus
}

// progression is the forward order of the non-terminal statuses.
var progression = []models.OrderStatus{
	models.OrderStatusPending,
	models.OrderStatusConfirmed,
	models.OrderStatusPreparing,
	models.OrderStatusReadyForPickup,
	models.OrderStatusAssigned,
	models.OrderStatusPickedUp,
	models.OrderStatusOutForDelivery,
	models.OrderStatusDelivered,
}

// roleTargets is the fixed role table: the statuses each role may request.
var roleTargets = map[models.Role][]models.OrderStatus{
	models.RolePharmacy: {
		models.OrderStatusConfirmed,
		models.OrderStatusPreparing,
		models.OrderStatusReadyForPickup,
		models.OrderStatusCancelled,
	},
	models.RoleDriver: {
		models.OrderStatusPickedUp,
		models.OrderStatusOutForDelivery,
		models.OrderStatusDelivered,
	},
	models.RoleCustomer: {
		models.OrderStatusCancelled,
	},
	ActorAssignment: {
		models.OrderStatusAssigned,
	},
}

var transitions = buildTable()

func buildTable() map[key]bool {
	t := make(map[key]bool)
	allow := func(from models.OrderStatus, actor models.Role, to models.OrderStatus) {
		t[key{from, actor, to}] = true
	}

	allow(models.OrderStatusPending, models.RolePharmacy, models.OrderStatusConfirmed)
	allow(models.OrderStatusConfirmed, models.RolePharmacy, models.OrderStatusPreparing)
	allow(models.OrderStatusPreparing, models.RolePharmacy, models.OrderStatusReadyForPickup)

	allow(models.OrderStatusReadyForPickup, ActorAssignment, models.OrderStatusAssigned)
	allow(models.OrderStatusAssigned, ActorAssignment, models.OrderStatusAssigned)

	allow(models.OrderStatusAssigned, models.RoleDriver, models.OrderStatusPickedUp)
	allow(models.OrderStatusPickedUp, models.RoleDriver, models.OrderStatusOutForDelivery)
	allow(models.OrderStatusOutForDelivery, models.RoleDriver, models.OrderStatusDelivered)

	for _, from := range progression {
		if IsTerminal(from) {
			continue
		}
		allow(from, models.RolePharmacy, models.OrderStatusCancelled)
		allow(from, models.RoleCustomer, models.OrderStatusCancelled)
	}
	return t
}

// IsTerminal reports whether no further transition can leave s.
func IsTerminal(s models.OrderStatus) bool {
	return s == models.OrderStatusDelivered || s == models.OrderStatusCancelled
}

// Check validates moving an order from current to requested on behalf of
// actor. Admins are not part of the table and are always refused.
func Check(current models.OrderStatus, actor models.Role, requested models.OrderStatus) error {
	if !requested.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, requested)
	}
	if !permitted(actor, requested) {
		return fmt.Errorf("%w: %s cannot set %s", ErrRoleNotPermitted, actor, requested)
	}
	if IsTerminal(current) {
		return fmt.Errorf("%w: order is already %s", ErrTerminal, current)
	}
	if !transitions[key{current, actor, requested}] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, requested)
	}
	return nil
}

// AllowedTargets lists the statuses actor may ever request.
func AllowedTargets(actor models.Role) []models.OrderStatus {
	out := make([]models.OrderStatus, len(roleTargets[actor]))
	copy(out, roleTargets[actor])
	return out
}

// Next returns the status that follows s in the normal progression.
func Next(s models.OrderStatus) (models.OrderStatus, bool) {
	for i, st := range progression {
		if st == s && i+1 < len(progression) {
			return progression[i+1], true
		}
	}
	return "", false
}

func permitted(actor models.Role, requested models.OrderStatus) bool {
	for _, s := range roleTargets[actor] {
		if s == requested {
			return true
		}
	}
	return false
}
