package payment

import (
	"context"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

type StripeGateway struct {
	api *client.API
}

func NewStripeGateway(secretKey string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api}
}

func (g *StripeGateway) Transfer(ctx context.Context, idempotencyKey string, amountCents int64, payeeAccountID string) (string, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amountCents),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(payeeAccountID),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	tr, err := g.api.Transfers.New(params)
	if err != nil {
		return "", err
	}
	return tr.ID, nil
}
