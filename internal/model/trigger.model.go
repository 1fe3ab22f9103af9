package model

import (
	"errors"
	"fmt"
)

var ErrInvalidTrigger = errors.New("invalid trigger")

// Trigger is the closed set of event types a flow can be bound to.
type Trigger string

const (
	TriggerOrderCreated   Trigger = "order_created"
	TriggerOrderFulfilled Trigger = "order_fulfilled"
	TriggerOrderCancelled Trigger = "order_cancelled"
	TriggerCartCreated    Trigger = "cart_created"
	TriggerCartAbandoned  Trigger = "cart_abandoned"
)

var triggers = []Trigger{
	TriggerOrderCreated,
	TriggerOrderFulfilled,
	TriggerOrderCancelled,
	TriggerCartCreated,
	TriggerCartAbandoned,
}

func Triggers() []Trigger {
	out := make([]Trigger, len(triggers))
	copy(out, triggers)
	return out
}

func (t Trigger) Valid() bool {
	for _, v := range triggers {
		if v == t {
			return true
		}
	}
	return false
}

func ParseTrigger(s string) (Trigger, error) {
	t := Trigger(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTrigger, s)
	}
	return t, nil
}
