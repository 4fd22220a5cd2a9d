package domain

type PaymentMethod string

const (
	CashOnDelivery PaymentMethod = "Cash On Delivery"
	OnlinePayment  PaymentMethod = "Online Payment"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

// PaymentConfirmation is what the client relays back from the processor's
// checkout once the customer has paid.
type PaymentConfirmation struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

func (c PaymentConfirmation) Complete() bool {
	return c.OrderRef != "" && c.PaymentRef != "" && c.Signature != ""
}
