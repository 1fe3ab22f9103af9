package fixtures

import (
	"github.com/nimasrn/message-automation/internal/model"
)

const (
	TestPhone      = "010 1234 5678"
	TestPhoneE164  = "201012345678"
	TestCustomer   = "Sara"
	TestOrderNo    = "1007"
	TestCartToken  = "cart-abc"
	TestCurrency   = "EGP"
	TestOrderTotal = "450.00"
)

func OrderCreatedEvent(tenantID string) model.TriggerEvent {
	return model.TriggerEvent{
		Type:     model.TriggerOrderCreated,
		TenantID: tenantID,
		Data: map[string]string{
			model.DataPhone:        TestPhone,
			model.DataCustomerName: TestCustomer,
			model.DataOrderNumber:  TestOrderNo,
			model.DataTotalAmount:  TestOrderTotal,
			model.DataCurrency:     TestCurrency,
		},
	}
}

func CartCreatedEvent(tenantID, customerID string) model.TriggerEvent {
	return model.TriggerEvent{
		Type:     model.TriggerCartCreated,
		TenantID: tenantID,
		Data: map[string]string{
			model.DataCartToken:   TestCartToken,
			model.DataCustomerID:  customerID,
			model.DataPhone:       TestPhone,
			model.DataTotalAmount: TestOrderTotal,
			model.DataCurrency:    TestCurrency,
		},
	}
}

func CartRecoveryFlow(tenantID string) model.FlowInput {
	return model.FlowInput{
		TenantID: tenantID,
		Name:     "Cart Recovery",
		Trigger:  string(model.TriggerCartAbandoned),
		Steps: []model.StepInput{
			{ActionType: model.ActionSendSMS, Message: "You left something in your cart"},
		},
	}
}
