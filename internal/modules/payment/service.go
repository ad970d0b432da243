package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/georgemunganga/printa-storefront/internal/remote"
)

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid payment request")

// IdempotencyHeader carries the request key to the upstream.
const IdempotencyHeader = "Idempotency-Key"

// Service forwards wallet and subscription payments to the upstream.
type Service interface {
	// FundWallet tops up userID's wallet. An empty key gets a fresh one.
	FundWallet(ctx context.Context, c remote.Caller, userID, key string, req FundWalletRequest) (*Transaction, error)

	// PaySubscription pays for a subscription plan.
	PaySubscription(ctx context.Context, c remote.Caller, userID, key string, req SubscriptionPaymentRequest) (*Transaction, error)

	// WalletBalance returns userID's wallet.
	WalletBalance(ctx context.Context, c remote.Caller, userID string) (*Wallet, error)
}

type service struct {
	newKey func() string
}

// NewService creates a new payment service.
func NewService() Service {
	return &service{newKey: uuid.NewString}
}

type payment struct {
	provider Provider
	amount   float64
	currency string
	phone    string
}

func validate(provider string, amount float64, currency, phone string) (payment, error) {
	p, ok := ParseProvider(provider)
	if !ok {
		return payment{}, fmt.Errorf("%w: unsupported provider %q", ErrInvalidRequest, provider)
	}
	if amount <= 0 {
		return payment{}, fmt.Errorf("%w: amount must be greater than 0", ErrInvalidRequest)
	}
	phone = strings.TrimSpace(phone)
	if p.MobileMoney() && phone == "" {
		return payment{}, fmt.Errorf("%w: phone_number is required for %s", ErrInvalidRequest, p)
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return payment{provider: p, amount: amount, currency: strings.ToUpper(currency), phone: phone}, nil
}

func (s *service) FundWallet(ctx context.Context, c remote.Caller, userID, key string, req FundWalletRequest) (*Transaction, error) {
	p, err := validate(req.Provider, req.Amount, req.Currency, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"userId":      userID,
		"provider":    p.provider,
		"amount":      p.amount,
		"currency":    p.currency,
		"phoneNumber": p.phone,
	}
	return s.submit(ctx, c, remote.EPWalletFund, key, p, body)
}

func (s *service) PaySubscription(ctx context.Context, c remote.Caller, userID, key string, req SubscriptionPaymentRequest) (*Transaction, error) {
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, fmt.Errorf("%w: plan_id is required", ErrInvalidRequest)
	}
	p, err := validate(req.Provider, req.Amount, req.Currency, req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"userId":      userID,
		"planId":      req.PlanID,
		"provider":    p.provider,
		"amount":      p.amount,
		"currency":    p.currency,
		"phoneNumber": p.phone,
	}
	return s.submit(ctx, c, remote.EPSubscriptionPay, key, p, body)
}

func (s *service) submit(ctx context.Context, c remote.Caller, endpoint, key string, p payment, body map[string]any) (*Transaction, error) {
	if key == "" {
		key = s.newKey()
	}
	var tx Transaction
	if err := c.Call(ctx, endpoint, nil, body, &tx, remote.WithHeader(IdempotencyHeader, key)); err != nil {
		return nil, err
	}
	if tx.Provider == "" {
		tx.Provider = p.provider
	}
	if tx.Amount == 0 {
		tx.Amount = p.amount
	}
	if tx.Currency == "" {
		tx.Currency = p.currency
	}
	tx.Status = NormaliseStatus(tx.Provider, tx.ProviderStatus)
	tx.IdempotencyKey = key
	return &tx, nil
}

func (s *service) WalletBalance(ctx context.Context, c remote.Caller, userID string) (*Wallet, error) {
	var w Wallet
	if err := c.Call(ctx, remote.EPWalletBalance, map[string]string{"userId": userID}, nil, &w); err != nil {
		return nil, err
	}
	if w.UserID == "" {
		w.UserID = userID
	}
	if w.Currency == "" {
		w.Currency = DefaultCurrency
	}
	return &w, nil
}
