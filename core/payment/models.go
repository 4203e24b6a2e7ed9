package payment

import (
	"crypto/sha512"
	"encoding/hex"
	"time"
)

// Statuses
const (
	StatusPending = "pending"
	StatusPaid    = "paid"
	StatusFailed  = "failed"
	StatusExpired = "expired"
)

type (
	Payment struct {
		ID          string     `json:"id"`
		OrderID     string     `json:"order_id"`
		StudentID   string     `json:"student_id"`
		CourseID    string     `json:"course_id"`
		Amount      int64      `json:"amount"`
		Status      string     `json:"status"`
		SnapToken   string     `json:"snap_token"`
		RedirectURL string     `json:"redirect_url"`
		CreatedAt   time.Time  `json:"created_at"`
		PaidAt      *time.Time `json:"paid_at"`
	}

	// Order is what the gateway needs to open a transaction.
	Order struct {
		OrderID       string
		Amount        int64
		ItemID        string
		ItemName      string
		CustomerName  string
		CustomerEmail string
		CustomerPhone string
	}

	// Transaction is the gateway answer to an Order.
	Transaction struct {
		Token       string `json:"token"`
		RedirectURL string `json:"redirect_url"`
	}

	// Notification is the asynchronous status update posted by the gateway.
	Notification struct {
		OrderID           string `json:"order_id"`
		TransactionID     string `json:"transaction_id"`
		TransactionStatus string `json:"transaction_status"`
		FraudStatus       string `json:"fraud_status"`
		StatusCode        string `json:"status_code"`
		GrossAmount       string `json:"gross_amount"`
		PaymentType       string `json:"payment_type"`
		SignatureKey      string `json:"signature_key"`
	}
)

type CheckoutRequest struct {
	CourseID string `json:"course_id" validate:"required,uuid"`
}

type QueryFilter struct {
	StudentID string `query:"student"`
	CourseID  string `query:"course"`
	Status    string `query:"status"`
}

// Signature computes the notification signature: SHA512(order_id + status_code + gross_amount + server_key).
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// MapStatus translates a gateway transaction status into a payment status.
// An empty result means the notification does not change the payment.
func MapStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		switch fraudStatus {
		case "", "accept":
			return StatusPaid
		case "deny":
			return StatusFailed
		}
		return StatusPending
	case "settlement":
		return StatusPaid
	case "pending":
		return StatusPending
	case "deny", "cancel", "failure":
		return StatusFailed
	case "expire":
		return StatusExpired
	}
	return ""
}
