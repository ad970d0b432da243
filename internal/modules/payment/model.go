package payment

import (
	"encoding/json"
	"strings"
)

// Provider represents a supported payment gateway.
type Provider string

const (
	ProviderMTNMomo Provider = "MTN_MOMO"
	ProviderAirtel  Provider = "AIRTEL_MONEY"
	ProviderCard    Provider = "CARD"
)

// ParseProvider accepts the canonical names and the short forms the
// dashboard forms send ("mtn", "airtel", "card").
func ParseProvider(s string) (Provider, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MTN_MOMO", "MTN":
		return ProviderMTNMomo, true
	case "AIRTEL_MONEY", "AIRTEL":
		return ProviderAirtel, true
	case "CARD":
		return ProviderCard, true
	}
	return "", false
}

// MobileMoney reports whether the provider debits a phone wallet.
func (p Provider) MobileMoney() bool {
	return p == ProviderMTNMomo || p == ProviderAirtel
}

// TxStatus represents the normalised lifecycle of a payment.
type TxStatus string

const (
	TxPending    TxStatus = "PENDING"
	TxProcessing TxStatus = "PROCESSING"
	TxCompleted  TxStatus = "COMPLETED"
	TxFailed     TxStatus = "FAILED"
)

// DefaultCurrency is applied when a request leaves currency empty.
const DefaultCurrency = "ZMW"

// Transaction is the upstream's record of a wallet funding or subscription payment.
type Transaction struct {
	ID             string   `json:"id"`
	Provider       Provider `json:"provider"`
	ProviderStatus string   `json:"provider_status,omitempty"`
	Status         TxStatus `json:"status"`
	Amount         float64  `json:"amount"`
	Currency       string   `json:"currency"`
	Message        string   `json:"message,omitempty"`
	IdempotencyKey string   `json:"idempotency_key"`
}

// UnmarshalJSON accepts "_id"/"transactionId" and camelCase provider fields.
// Status is left raw; the service normalises it.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             string  `json:"id"`
		MongoID        string  `json:"_id"`
		TransactionID  string  `json:"transactionId"`
		Provider       string  `json:"provider"`
		ProviderStatus string  `json:"provider_status"`
		ProviderCamel  string  `json:"providerStatus"`
		Status         string  `json:"status"`
		Amount         float64 `json:"amount"`
		Currency       string  `json:"currency"`
		Message        string  `json:"message"`
		IdempotencyKey string  `json:"idempotency_key"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	provider, _ := ParseProvider(raw.Provider)
	*t = Transaction{
		ID:             first(raw.ID, raw.MongoID, raw.TransactionID),
		Provider:       provider,
		ProviderStatus: first(raw.ProviderStatus, raw.ProviderCamel, raw.Status),
		Status:         TxStatus(strings.ToUpper(raw.Status)),
		Amount:         raw.Amount,
		Currency:       raw.Currency,
		Message:        raw.Message,
		IdempotencyKey: raw.IdempotencyKey,
	}
	return nil
}

// Wallet is a user's stored balance.
type Wallet struct {
	UserID   string  `json:"user_id"`
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

func (w *Wallet) UnmarshalJSON(data []byte) error {
	var raw struct {
		UserID    string  `json:"user_id"`
		UserCamel string  `json:"userId"`
		User      string  `json:"user"`
		Balance   float64 `json:"balance"`
		Currency  string  `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = Wallet{
		UserID:   first(raw.UserID, raw.UserCamel, raw.User),
		Balance:  raw.Balance,
		Currency: first(raw.Currency, DefaultCurrency),
	}
	return nil
}

// ── Request DTOs ──────────────────────────────────────────────────────────────

// FundWalletRequest is the payload to top up the caller's wallet.
type FundWalletRequest struct {
	Provider    string  `json:"provider"` // MTN_MOMO | AIRTEL_MONEY | CARD
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"` // defaults to ZMW
	PhoneNumber string  `json:"phone_number,omitempty"`
}

// SubscriptionPaymentRequest pays for a vendor subscription plan.
type SubscriptionPaymentRequest struct {
	PlanID      string  `json:"plan_id"`
	Provider    string  `json:"provider"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
