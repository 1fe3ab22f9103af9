package repository

import "errors"

var (
	ErrTenantNotFound   = errors.New("tenant not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrFlowNotFound     = errors.New("flow not found")
	ErrTemplateNotFound = errors.New("template not found")
	ErrJobNotFound      = errors.New("message job not found")
	ErrJobNotPending    = errors.New("message job is not pending")
	ErrCartNotFound     = errors.New("cart not found")
	ErrQuotaExceeded    = errors.New("quota exceeded")
)
