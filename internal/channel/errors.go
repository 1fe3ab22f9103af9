package channel

import (
	"errors"
	"fmt"
)

var (
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrChannelNotConfigured = errors.New("channel not configured")
	ErrTenantInactive       = fmt.Errorf("%w: tenant subscription is not active", ErrChannelNotConfigured)
)

// ProviderError is an upstream rejection, timeout or transport failure.
// Message is already normalized for display in a job's lastError.
type ProviderError struct {
	Provider string
	Message  string
}

func (e *ProviderError) Error() string {
	return e.Message
}

func providerError(provider, format string, args ...any) *ProviderError {
	return &ProviderError{Provider: provider, Message: fmt.Sprintf(format, args...)}
}
