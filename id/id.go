// Package id defines TypeID-based identity types for Paystream records.
//
// Subscriptions are addressed by a monotonically increasing integer index
// (see package subscription). Everything the ledger records beside them
// (payouts, deposits, withdrawals, reports, settlements) carries a single ID
// struct with a prefix that identifies the record type. IDs are K-sortable
// (UUIDv7-based), globally unique, and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all Paystream record types.
const (
	PrefixPayout     Prefix = "pay" // Treasury payout
	PrefixDeposit    Prefix = "dep" // External deposit
	PrefixWithdrawal Prefix = "wdr" // External withdrawal
	PrefixReport     Prefix = "rpt" // Reporter flag on a source account
	PrefixSettlement Prefix = "stl" // Settlement of a subscription's accrual
)

// ID identifies a Paystream record. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "pay_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of any other record type.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// PayoutID is a type-safe identifier for treasury payouts (prefix: "pay").
type PayoutID = ID

// DepositID is a type-safe identifier for deposits (prefix: "dep").
type DepositID = ID

// WithdrawalID is a type-safe identifier for withdrawals (prefix: "wdr").
type WithdrawalID = ID

// ReportID is a type-safe identifier for reporter flags (prefix: "rpt").
type ReportID = ID

// SettlementID is a type-safe identifier for settlements (prefix: "stl").
type SettlementID = ID

// MovementID identifies a balance movement. It carries the prefix of the
// record that caused it: "dep", "wdr" or "pay".
type MovementID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewPayoutID generates a new unique payout ID.
func NewPayoutID() ID { return New(PrefixPayout) }

// NewDepositID generates a new unique deposit ID.
func NewDepositID() ID { return New(PrefixDeposit) }

// NewWithdrawalID generates a new unique withdrawal ID.
func NewWithdrawalID() ID { return New(PrefixWithdrawal) }

// NewReportID generates a new unique report ID.
func NewReportID() ID { return New(PrefixReport) }

// NewSettlementID generates a new unique settlement ID.
func NewSettlementID() ID { return New(PrefixSettlement) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParsePayoutID parses a string and validates the "pay" prefix.
func ParsePayoutID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayout) }

// ParseDepositID parses a string and validates the "dep" prefix.
func ParseDepositID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDeposit) }

// ParseWithdrawalID parses a string and validates the "wdr" prefix.
func ParseWithdrawalID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWithdrawal) }

// ParseReportID parses a string and validates the "rpt" prefix.
func ParseReportID(s string) (ID, error) { return ParseWithPrefix(s, PrefixReport) }

// ParseSettlementID parses a string and validates the "stl" prefix.
func ParseSettlementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSettlement) }

// ParseMovementID parses a string and validates it carries one of the
// movement prefixes.
func ParseMovementID(s string) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	switch parsed.Prefix() {
	case PrefixDeposit, PrefixWithdrawal, PrefixPayout:
		return parsed, nil
	default:
		return Nil, fmt.Errorf("id: %q is not a movement id", s)
	}
}

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. The Nil ID is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if i.IsNil() {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
