// Package calldata defines the immutable per-call metadata supplied at
// dispatch time: who is being called, about which debt, and where the
// call may be transferred.
package calldata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Debt status values carried on dispatch metadata. Status changes during a
// call are reflected only through emitted events; the metadata itself is
// never mutated.
const (
	DebtStatusUnpaid   = "unpaid"
	DebtStatusDisputed = "disputed"
	DebtStatusSettled  = "settled"
	DebtStatusPlan     = "plan"
)

// Customer identifies the account holder being called.
type Customer struct {
	Name          string `json:"name"`
	AccountNumber string `json:"account_number"`
}

// Debt describes the obligation under collection.
type Debt struct {
	Amount   float64 `json:"amount"`
	Creditor string  `json:"creditor"`
	Age      string  `json:"age,omitempty"`
	Type     string  `json:"type,omitempty"`
	DueDate  string  `json:"due_date,omitempty"`
	Status   string  `json:"status,omitempty"`
}

// Dial carries the outbound destination and the optional human transfer target.
type Dial struct {
	To         string `json:"to"`
	TransferTo string `json:"transfer_to,omitempty"`
}

// CallMetadata is the full dispatch payload for one call. It is immutable
// for the lifetime of the call.
type CallMetadata struct {
	Customer Customer `json:"customer"`
	Debt     Debt     `json:"debt"`
	Dial     Dial     `json:"dial"`
}

// ErrNoDialTarget indicates the dispatch metadata has no destination number.
var ErrNoDialTarget = errors.New("calldata: dial.to is required")

// Parse decodes and validates dispatch metadata JSON.
func Parse(raw []byte) (*CallMetadata, error) {
	var md CallMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("calldata: decode metadata: %w", err)
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	return &md, nil
}

// Validate checks the fields the call lifecycle depends on.
func (m *CallMetadata) Validate() error {
	if strings.TrimSpace(m.Dial.To) == "" {
		return ErrNoDialTarget
	}
	if strings.TrimSpace(m.Customer.AccountNumber) == "" {
		return errors.New("calldata: customer.account_number is required")
	}
	if m.Debt.Amount < 0 {
		return fmt.Errorf("calldata: debt.amount must not be negative, got %v", m.Debt.Amount)
	}
	if m.Debt.Status != "" {
		switch m.Debt.Status {
		case DebtStatusUnpaid, DebtStatusDisputed, DebtStatusSettled, DebtStatusPlan:
		default:
			return fmt.Errorf("calldata: unknown debt.status %q", m.Debt.Status)
		}
	}
	return nil
}

// LastFour returns the trailing four characters of the account number,
// used for identity verification.
func (m *CallMetadata) LastFour() string {
	acct := m.Customer.AccountNumber
	if len(acct) < 4 {
		return acct
	}
	return acct[len(acct)-4:]
}
