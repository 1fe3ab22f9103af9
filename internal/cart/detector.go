package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/message-automation/internal/model"
	"github.com/nimasrn/message-automation/internal/repository"
	"github.com/nimasrn/message-automation/pkg/logger"
	"github.com/nimasrn/message-automation/pkg/prom"
)

type CartStore interface {
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]*model.Cart, error)
	MarkRecoverySent(ctx context.Context, id string, at time.Time) error
}

type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	FindByContact(ctx context.Context, tenantID, email, phone string) (*model.Customer, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, ev model.TriggerEvent) (model.DispatchResult, error)
}

type Config struct {
	Cutoff    time.Duration
	BatchSize int
}

// Detector fires cart_abandoned for carts left unconverted past the cutoff.
// A cart is flagged once its attempt is made or its customer is known to be
// missing, so a cart gets at most one recovery attempt. Carts whose customer
// lookup failed are retried on the next sweep.
type Detector struct {
	carts      CartStore
	customers  CustomerStore
	dispatcher Dispatcher
	config     Config
	now        func() time.Time
}

func NewDetector(carts CartStore, customers CustomerStore, dispatcher Dispatcher, config Config) *Detector {
	if config.Cutoff <= 0 {
		config.Cutoff = time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	return &Detector{
		carts:      carts,
		customers:  customers,
		dispatcher: dispatcher,
		config:     config,
		now:        time.Now,
	}
}

// Sweep handles one batch of stale carts. Only a failed lookup is returned.
func (d *Detector) Sweep(ctx context.Context) error {
	now := d.now()
	carts, err := d.carts.FindStale(ctx, now.Add(-d.config.Cutoff), d.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to load stale carts: %w", err)
	}

	fired := 0
	for _, c := range carts {
		// carts not reached before cancellation stay unflagged
		if ctx.Err() != nil {
			break
		}
		res := d.attempt(ctx, c)
		if res == outcomeDeferred {
			continue
		}
		if res == outcomeFired {
			fired++
		}
		if err := d.carts.MarkRecoverySent(context.WithoutCancel(ctx), c.ID, now); err != nil {
			logger.Error("failed to flag cart recovery", "cart_id", c.ID, "tenant_id", c.TenantID, "error", err)
		}
	}

	if len(carts) > 0 {
		logger.Info("cart sweep finished", "stale", len(carts), "fired", fired)
	}
	return nil
}

type outcome int

const (
	outcomeFired outcome = iota
	outcomeSkipped
	// deferred carts are left unflagged for the next sweep
	outcomeDeferred
)

func (d *Detector) attempt(ctx context.Context, c *model.Cart) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cart recovery panicked", "cart_id", c.ID, "tenant_id", c.TenantID, "panic", r)
			prom.CartSwept("error")
			result = outcomeSkipped
		}
	}()

	customer, err := d.resolveCustomer(ctx, c)
	if err != nil {
		logger.Warn("failed to resolve cart customer, retrying next sweep", "cart_id", c.ID, "tenant_id", c.TenantID, "error", err)
		return outcomeDeferred
	}
	if customer == nil {
		logger.Warn("abandoned cart has no customer, skipping", "cart_id", c.ID, "tenant_id", c.TenantID)
		prom.CartSwept("skipped")
		return outcomeSkipped
	}

	ev := model.TriggerEvent{
		Type:     model.TriggerCartAbandoned,
		TenantID: c.TenantID,
		Data:     triggerData(c, customer),
	}
	if _, err := d.dispatcher.Dispatch(ctx, ev); err != nil {
		logger.Error("cart_abandoned dispatch failed", "cart_id", c.ID, "tenant_id", c.TenantID, "error", err)
		prom.CartSwept("error")
		return outcomeSkipped
	}

	prom.CartSwept("fired")
	return outcomeFired
}

// resolveCustomer prefers the cart's linked customer and falls back to a
// contact match. It returns a nil customer when neither resolves, and an
// error only when a lookup failed.
func (d *Detector) resolveCustomer(ctx context.Context, c *model.Cart) (*model.Customer, error) {
	if c.CustomerID != nil && *c.CustomerID != "" {
		customer, err := d.customers.GetByID(ctx, *c.CustomerID)
		if err == nil {
			return customer, nil
		}
		if !errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, err
		}
	}

	customer, err := d.customers.FindByContact(ctx, c.TenantID, deref(c.Email), deref(c.Phone))
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return customer, nil
}

func triggerData(c *model.Cart, customer *model.Customer) map[string]string {
	phone := deref(c.Phone)
	data := map[string]string{
		model.DataPhone:         phone,
		model.DataCustomerPhone: phone,
		model.DataTotalAmount:   c.TotalAmount,
		model.DataCurrency:      c.Currency,
		model.DataCartToken:     c.CartToken,
		model.DataCustomerID:    customer.ID,
		model.DataCustomerName:  customer.Name,
	}
	if email := deref(c.Email); email != "" {
		data[model.DataEmail] = email
	}
	return data
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
