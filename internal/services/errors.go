package services

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	// ErrNoDefaultTemplates is returned when seeding yields no SMS or
	// WhatsApp template to build the default flow from.
	ErrNoDefaultTemplates = errors.New("no default sms or whatsapp template to seed the default flow from")
)
