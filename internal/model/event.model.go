package model

import (
	"errors"
	"fmt"
	"maps"
)

// Keys with a meaning to the engine. Every other key in TriggerEvent.Data
// is a template variable.
const (
	DataCustomerID    = "customerId"
	DataCustomerPhone = "customerPhone"
	DataCustomerName  = "customer_name"
	DataCustomerEmail = "customer_email"
	DataOrderNumber   = "order_number"
	DataTotalAmount   = "total_amount"
	DataCurrency      = "currency"
	DataCartToken     = "cart_token"
	DataPhone         = "phone"
	DataEmail         = "email"
)

var ErrInvalidEvent = errors.New("invalid event")

type TriggerEvent struct {
	Type     Trigger           `json:"type"`
	TenantID string            `json:"tenantId"`
	Data     map[string]string `json:"data"`
}

func (e TriggerEvent) Validate() error {
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidTrigger, e.Type)
	}
	if e.TenantID == "" {
		return fmt.Errorf("%w: tenantId is required", ErrInvalidEvent)
	}
	return nil
}

// CopyData returns a copy of Data that is safe to mutate.
func (e TriggerEvent) CopyData() map[string]string {
	if e.Data == nil {
		return map[string]string{}
	}
	return maps.Clone(e.Data)
}

type DispatchResult struct {
	Matched     int `json:"matched"`
	Executed    int `json:"executed"`
	Failed      int `json:"failed"`
	JobsCreated int `json:"jobsCreated"`
}
