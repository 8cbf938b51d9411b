package billing

import "errors"

var (
	// ErrNilBill is returned when a nil bill is supplied.
	ErrNilBill = errors.New("billing: nil bill")
	// ErrNegativeConsumption is returned when consumption is negative.
	ErrNegativeConsumption = errors.New("billing: negative consumption")
	// ErrNegativeRate is returned when a rate schedule carries a negative rate.
	ErrNegativeRate = errors.New("billing: negative rate")
	// ErrBillNotFound is returned when a bill is not found.
	ErrBillNotFound = errors.New("billing: bill not found")
	// ErrPaymentNotFound is returned when a payment is not found.
	ErrPaymentNotFound = errors.New("billing: payment not found")
	// ErrInsufficientPayment is returned when the tendered amount is below the amount due.
	ErrInsufficientPayment = errors.New("billing: received amount below amount due")
	// ErrBillAlreadyPaid is returned when an operation requires an unpaid bill.
	ErrBillAlreadyPaid = errors.New("billing: bill already paid")
)
