// Package subscription defines streaming payment flows between two accounts.
package subscription

import (
	"strconv"
	"time"

	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/types"
)

// Index is the ledger-wide identifier of a subscription. The first issued
// value is 1, values are never reused, and issuance stops at math.MaxInt64
// so every store can persist an index as a signed 64-bit column.
type Index uint64

// String implements fmt.Stringer.
func (i Index) String() string { return strconv.FormatUint(uint64(i), 10) }

// Subscription streams Rate units per second from Source to Destination.
// Everything accrued before LastSettled has already been folded into the
// stored balances of both parties.
type Subscription struct {
	types.Entity
	ID          Index           `json:"id"`
	Source      types.AccountID `json:"source"`
	Destination types.AccountID `json:"destination"`
	Rate        types.Rate      `json:"rate"`
	Start       time.Time       `json:"start"`
	LastSettled time.Time       `json:"last_settled"`
}

// Accrued returns the amount streamed between LastSettled and at.
func (s *Subscription) Accrued(at time.Time) (types.Amount, error) {
	return s.Rate.Over(types.ElapsedSeconds(s.LastSettled, at))
}

// Involves reports whether account is the source or destination.
func (s *Subscription) Involves(account types.AccountID) bool {
	return s.Source == account || s.Destination == account
}

// Clone returns a copy safe to mutate independently of s.
func (s *Subscription) Clone() *Subscription {
	c := *s
	return &c
}

// Settlement is the accrual folded into stored balances when a subscription
// is settled, updated or removed.
type Settlement struct {
	ID           id.SettlementID `json:"id"`
	Subscription Index           `json:"subscription"`
	Source       types.AccountID `json:"source"`
	Destination  types.AccountID `json:"destination"`
	Amount       types.Amount    `json:"amount"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
}
