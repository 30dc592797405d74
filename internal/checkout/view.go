package checkout

import (
	"errors"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/order"
)

type ErrorView struct {
	Kind    domain.ErrorKind  `json:"kind"`
	Message string            `json:"message"`
	Action  domain.Action     `json:"action,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func NewErrorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	var ce *domain.CheckoutError
	if errors.As(err, &ce) {
		return &ErrorView{Kind: ce.Kind, Message: ce.Message, Action: ce.Action(), Fields: ce.Fields}
	}
	return &ErrorView{Message: err.Error()}
}

// View is a consistent read of the flow for rendering.
type View struct {
	Step           domain.CheckoutStep    `json:"step"`
	Delivery       domain.DeliveryInfo    `json:"delivery"`
	Method         domain.PaymentMethod   `json:"paymentMethod"`
	AttemptID      string                 `json:"attemptId,omitempty"`
	FieldErrors    map[string]string      `json:"fieldErrors,omitempty"`
	Error          *ErrorView             `json:"error,omitempty"`
	Order          *domain.Order          `json:"order,omitempty"`
	Session        *domain.PaymentSession `json:"paymentSession,omitempty"`
	PendingOrderID string                 `json:"pendingOrderId,omitempty"`
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Step:      f.step,
		Delivery:  f.delivery,
		Method:    f.method,
		AttemptID: f.attemptID,
		Error:     NewErrorView(f.lastErr),
	}
	if len(f.fieldErrors) > 0 {
		v.FieldErrors = make(map[string]string, len(f.fieldErrors))
		for k, msg := range f.fieldErrors {
			v.FieldErrors[k] = msg
		}
	}
	if f.result != nil {
		v.Order = f.result.Order
		v.Session = f.result.Session
	}
	if f.pending != nil {
		v.PendingOrderID = f.pending.ID
	}
	return v
}

// compile-time check that the coordinator satisfies Submitter
var _ Submitter = (*order.Coordinator)(nil)
