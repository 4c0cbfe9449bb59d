package status

import "errors"

var (
	ErrValidation                    = errors.New("request: missing or malformed field")
	ErrPaymentVerificationFailed     = errors.New("payment: verification failed")
	ErrPaymentCredentialsUnavailable = errors.New("payment: provider credentials unavailable")
	ErrAllocationExhausted           = errors.New("ticket: allocation attempt budget exhausted")
	ErrStorageFailure                = errors.New("storage: operation failed")
	ErrNotificationFailed            = errors.New("notification: send failed")
	ErrUnauthorized                  = errors.New("auth: admin token required")
	ErrTicketNotFound                = errors.New("ticket: ticket not found")
)
