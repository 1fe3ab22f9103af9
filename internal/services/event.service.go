package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/logger"
)

type CartRepository interface {
	Upsert(ctx context.Context, c *model.Cart) (*model.Cart, error)
	MarkConvertedByContact(ctx context.Context, tenantID, email, phone string) (int64, error)
}

type CustomerRepository interface {
	Create(ctx context.Context, c *model.Customer) (*model.Customer, error)
	FindByContact(ctx context.Context, tenantID, email, phone string) (*model.Customer, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev model.TriggerEvent) (string, error)
}

type EventDispatcher interface {
	Dispatch(ctx context.Context, ev model.TriggerEvent) (model.DispatchResult, error)
}

type IngestResult struct {
	Queued         bool                  `json:"queued"`
	MessageID      string                `json:"messageId,omitempty"`
	CartsConverted int64                 `json:"cartsConverted,omitempty"`
	Dispatch       *model.DispatchResult `json:"dispatch,omitempty"`
}

// EventService is the intake for trigger events. It applies the side
// effects an event carries for carts and customers, then either queues the
// event for the engine or, without a publisher, dispatches it inline.
type EventService struct {
	carts      CartRepository
	customers  CustomerRepository
	dispatcher EventDispatcher
	publisher  EventPublisher
}

func NewEventService(carts CartRepository, customers CustomerRepository, dispatcher EventDispatcher, publisher EventPublisher) *EventService {
	return &EventService{
		carts:      carts,
		customers:  customers,
		dispatcher: dispatcher,
		publisher:  publisher,
	}
}

func (s *EventService) Ingest(ctx context.Context, ev model.TriggerEvent) (*IngestResult, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.Data = ev.CopyData()
	if ev.Data == nil {
		ev.Data = map[string]string{}
	}

	res := &IngestResult{}
	switch ev.Type {
	case model.TriggerOrderCreated, model.TriggerOrderFulfilled, model.TriggerOrderCancelled:
		if err := s.resolveCustomer(ctx, ev); err != nil {
			return nil, err
		}
		if ev.Type == model.TriggerOrderCreated {
			n, err := s.carts.MarkConvertedByContact(ctx, ev.TenantID, email(ev.Data), phone(ev.Data))
			if err != nil {
				return nil, fmt.Errorf("failed to convert carts: %w", err)
			}
			res.CartsConverted = n
			if n > 0 {
				logger.Info("carts converted by order", "tenant_id", ev.TenantID, "count", n)
			}
		}
	case model.TriggerCartCreated:
		if err := s.upsertCart(ctx, ev); err != nil {
			return nil, err
		}
	}

	if s.publisher != nil {
		id, err := s.publisher.Publish(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("failed to queue event: %w", err)
		}
		res.Queued = true
		res.MessageID = id
		return res, nil
	}

	dr, err := s.dispatcher.Dispatch(ctx, ev)
	if err != nil {
		return nil, err
	}
	res.Dispatch = &dr
	return res, nil
}

// resolveCustomer fills customerId for order events that carry only contact
// details, creating the customer on first sight.
func (s *EventService) resolveCustomer(ctx context.Context, ev model.TriggerEvent) error {
	if ev.Data[model.DataCustomerID] != "" {
		return nil
	}
	em, ph := email(ev.Data), phone(ev.Data)
	if em == "" && ph == "" {
		return nil
	}

	c, err := s.customers.FindByContact(ctx, ev.TenantID, em, ph)
	if errors.Is(err, repository.ErrCustomerNotFound) {
		name := ev.Data[model.DataCustomerName]
		if name == "" {
			name = "Customer"
		}
		c, err = s.customers.Create(ctx, &model.Customer{TenantID: ev.TenantID, Name: name, Email: em, Phone: ph})
	}
	if err != nil {
		return fmt.Errorf("failed to resolve customer: %w", err)
	}

	ev.Data[model.DataCustomerID] = c.ID
	if ev.Data[model.DataCustomerName] == "" && c.Name != "" {
		ev.Data[model.DataCustomerName] = c.Name
	}
	return nil
}

func (s *EventService) upsertCart(ctx context.Context, ev model.TriggerEvent) error {
	token := strings.TrimSpace(ev.Data[model.DataCartToken])
	if token == "" {
		return fmt.Errorf("%w: cart_token is required for %s", ErrInvalidInput, ev.Type)
	}

	c := &model.Cart{
		TenantID:    ev.TenantID,
		CartToken:   token,
		CustomerID:  optional(ev.Data[model.DataCustomerID]),
		Email:       optional(email(ev.Data)),
		Phone:       optional(phone(ev.Data)),
		TotalAmount: ev.Data[model.DataTotalAmount],
		Currency:    ev.Data[model.DataCurrency],
	}
	saved, err := s.carts.Upsert(ctx, c)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	logger.Debug("cart saved", "tenant_id", ev.TenantID, "cart_id", saved.ID)
	return nil
}

func email(data map[string]string) string {
	if v := data[model.DataCustomerEmail]; v != "" {
		return v
	}
	return data[model.DataEmail]
}

func phone(data map[string]string) string {
	if v := data[model.DataCustomerPhone]; v != "" {
		return v
	}
	return data[model.DataPhone]
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
