package model

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStep = errors.New("invalid step")

type ActionType string

const (
	ActionSendSMS      ActionType = "send_sms"
	ActionSendWhatsApp ActionType = "send_whatsapp"
	ActionWait         ActionType = "wait"
	ActionCondition    ActionType = "condition"
)

type DelayUnit string

const (
	DelayMinutes DelayUnit = "minutes"
	DelayHours   DelayUnit = "hours"
)

type Flow struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Trigger         Trigger    `json:"trigger"`
	IsActive        bool       `json:"isActive"`
	TriggerCount    int64      `json:"triggerCount"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty"`
	Steps           []Step     `json:"steps"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Step is a tagged union keyed by ActionType. Exactly one of Send, Wait or
// Condition is set for a known action type.
type Step struct {
	ID         string           `json:"id,omitempty"`
	StepOrder  int              `json:"stepOrder"`
	ActionType ActionType       `json:"actionType"`
	Send       *SendAction      `json:"send,omitempty"`
	Wait       *WaitAction      `json:"wait,omitempty"`
	Condition  *ConditionAction `json:"condition,omitempty"`
}

// SendAction carries either a template reference or a literal message.
type SendAction struct {
	DelayMinutes int    `json:"delayMinutes"`
	TemplateID   string `json:"templateId,omitempty"`
	Message      string `json:"message,omitempty"`
}

type WaitAction struct {
	DelayMinutes int `json:"delayMinutes"`
}

type ConditionAction struct {
	Expression string `json:"expression"`
}

// StepConfig is the persisted shape of a step's configuration.
type StepConfig struct {
	Delay      int    `json:"delay,omitempty"`
	TemplateID string `json:"templateId,omitempty"`
	Message    string `json:"message,omitempty"`
	Condition  string `json:"condition,omitempty"`
}

// Channel reports the channel a send step targets.
func (s Step) Channel() (Channel, bool) {
	switch s.ActionType {
	case ActionSendSMS:
		return ChannelSMS, true
	case ActionSendWhatsApp:
		return ChannelWhatsApp, true
	}
	return "", false
}

func (s Step) Validate() error {
	switch s.ActionType {
	case ActionSendSMS, ActionSendWhatsApp:
		if s.Send == nil {
			return fmt.Errorf("%w: %s step %d has no send config", ErrInvalidStep, s.ActionType, s.StepOrder)
		}
		if s.Send.DelayMinutes < 0 {
			return fmt.Errorf("%w: step %d has a negative delay", ErrInvalidStep, s.StepOrder)
		}
		hasTemplate, hasMessage := s.Send.TemplateID != "", s.Send.Message != ""
		if hasTemplate == hasMessage {
			return fmt.Errorf("%w: step %d needs exactly one of templateId or message", ErrInvalidStep, s.StepOrder)
		}
	case ActionWait:
		if s.Wait == nil || s.Wait.DelayMinutes < 0 {
			return fmt.Errorf("%w: wait step %d needs a non-negative delay", ErrInvalidStep, s.StepOrder)
		}
	case ActionCondition:
		if s.Condition == nil || s.Condition.Expression == "" {
			return fmt.Errorf("%w: condition step %d has no expression", ErrInvalidStep, s.StepOrder)
		}
	default:
		return fmt.Errorf("%w: unknown action type %q", ErrInvalidStep, s.ActionType)
	}
	return nil
}

// Config flattens the step into its persisted configuration.
func (s Step) Config() StepConfig {
	var c StepConfig
	switch {
	case s.Send != nil:
		c.Delay = s.Send.DelayMinutes
		c.TemplateID = s.Send.TemplateID
		c.Message = s.Send.Message
	case s.Wait != nil:
		c.Delay = s.Wait.DelayMinutes
	case s.Condition != nil:
		c.Condition = s.Condition.Expression
	}
	return c
}

// StepFromConfig rebuilds the union from a persisted row. Unknown action
// types come back with no variant set.
func StepFromConfig(id string, order int, action ActionType, c StepConfig) Step {
	s := Step{ID: id, StepOrder: order, ActionType: action}
	switch action {
	case ActionSendSMS, ActionSendWhatsApp:
		s.Send = &SendAction{DelayMinutes: c.Delay, TemplateID: c.TemplateID, Message: c.Message}
	case ActionWait:
		s.Wait = &WaitAction{DelayMinutes: c.Delay}
	case ActionCondition:
		s.Condition = &ConditionAction{Expression: c.Condition}
	}
	return s
}

// DelayToMinutes converts a delay in the given unit to minutes.
func DelayToMinutes(value int, unit DelayUnit) (int, error) {
	if value < 0 {
		return 0, fmt.Errorf("%w: negative delay %d", ErrInvalidStep, value)
	}
	switch unit {
	case DelayMinutes, "":
		return value, nil
	case DelayHours:
		return value * 60, nil
	}
	return 0, fmt.Errorf("%w: unknown delay unit %q", ErrInvalidStep, unit)
}

// NormalizeStepOrder renumbers steps 1..N in slice order.
func NormalizeStepOrder(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		s.StepOrder = i + 1
		out[i] = s
	}
	return out
}

type StepInput struct {
	ActionType ActionType `json:"actionType"`
	Delay      int        `json:"delay"`
	DelayUnit  DelayUnit  `json:"delayUnit"`
	TemplateID string     `json:"templateId"`
	Message    string     `json:"message"`
	Condition  string     `json:"condition"`
}

// ToStep converts merchant input into a step, converting the delay to
// minutes. The caller assigns StepOrder.
func (in StepInput) ToStep() (Step, error) {
	delay, err := DelayToMinutes(in.Delay, in.DelayUnit)
	if err != nil {
		return Step{}, err
	}
	return StepFromConfig("", 0, in.ActionType, StepConfig{
		Delay:      delay,
		TemplateID: in.TemplateID,
		Message:    in.Message,
		Condition:  in.Condition,
	}), nil
}

type FlowInput struct {
	TenantID    string      `json:"tenantId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Trigger     string      `json:"trigger"`
	IsActive    *bool       `json:"isActive"`
	Steps       []StepInput `json:"steps"`
}
