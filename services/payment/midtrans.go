// Package paymentsvc opens checkout transactions on Midtrans Snap.
package paymentsvc

import (
	"context"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/core/payment"
)

const itemNameMax = 50

type SnapGateway struct {
	client    snap.Client
	serverKey string
}

var _ payment.Gateway = (*SnapGateway)(nil)

func NewSnapGateway(conf core.PaymentConfig) *SnapGateway {
	env := midtrans.Sandbox
	if conf.Production {
		env = midtrans.Production
	}
	gw := &SnapGateway{serverKey: conf.MidtransServerKey}
	gw.client.New(conf.MidtransServerKey, env)
	return gw
}

// NewGateway returns nil when no server key is configured, which disables checkout.
func NewGateway(conf *core.Config) payment.Gateway {
	if conf.Payment.MidtransServerKey == "" {
		return nil
	}
	return NewSnapGateway(conf.Payment)
}

func (gw *SnapGateway) ServerKey() string {
	return gw.serverKey
}

func (gw *SnapGateway) CreateTransaction(ctx context.Context, o payment.Order) (payment.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return payment.Transaction{}, err
	}
	res, merr := gw.client.CreateTransaction(snapRequest(o))
	if merr != nil {
		return payment.Transaction{}, errors.Errorf("midtrans: %s", merr.GetMessage())
	}
	return payment.Transaction{Token: res.Token, RedirectURL: res.RedirectURL}, nil
}

func snapRequest(o payment.Order) *snap.Request {
	return &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  o.OrderID,
			GrossAmt: o.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: o.CustomerName,
			Email: o.CustomerEmail,
			Phone: o.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:       o.ItemID,
			Name:     truncate(o.ItemName, itemNameMax),
			Price:    o.Amount,
			Qty:      1,
			Category: "course",
		}},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
