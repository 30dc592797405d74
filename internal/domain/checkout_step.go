package domain

type CheckoutStep string

const (
	StepDeliveryInfo     CheckoutStep = "DELIVERY_INFO"
	StepPaymentSelection CheckoutStep = "PAYMENT_SELECTION"
	StepReview           CheckoutStep = "REVIEW"
	StepSubmitting       CheckoutStep = "SUBMITTING"
	StepSucceeded        CheckoutStep = "SUCCEEDED"
	StepFailed           CheckoutStep = "FAILED"
)

var stepTransitions = map[CheckoutStep][]CheckoutStep{
	StepDeliveryInfo:     {StepPaymentSelection},
	StepPaymentSelection: {StepReview, StepDeliveryInfo},
	StepReview:           {StepSubmitting, StepPaymentSelection},
	StepSubmitting:       {StepSucceeded, StepFailed},
	StepFailed:           {StepReview},
}

// CanTransitionTo reports whether moving from s to next is a legal edge.
func (s CheckoutStep) CanTransitionTo(next CheckoutStep) bool {
	for _, allowed := range stepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CheckoutStep) IsTerminal() bool {
	return s == StepSucceeded || s == StepFailed
}

// CanAbandon is true before submission has started.
func (s CheckoutStep) CanAbandon() bool {
	return s == StepDeliveryInfo || s == StepPaymentSelection || s == StepReview
}

// String representation (for logging)
func (s CheckoutStep) String() string {
	return string(s)
}
