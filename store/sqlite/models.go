package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/paystream/balance"
	"github.com/xraph/paystream/id"
	"github.com/xraph/paystream/reporter"
	"github.com/xraph/paystream/subscription"
	"github.com/xraph/paystream/treasury"
	"github.com/xraph/paystream/types"
)

// stateKey is the primary key of the single state row.
const stateKey = "ledger"

// ==================== State models ====================

type stateModel struct {
	grove.BaseModel `grove:"table:paystream_state"`

	ID             string    `grove:"id,pk"`
	Owner          string    `grove:"owner"`
	Treasury       string    `grove:"treasury"`
	ReserveSeconds int64     `grove:"reserve_seconds"`
	LastIndex      int64     `grove:"last_index"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
}

func toStateModel(s *treasury.State) *stateModel {
	return &stateModel{
		ID:             stateKey,
		Owner:          s.Owner.String(),
		Treasury:       s.Treasury.String(),
		ReserveSeconds: s.HorizonSeconds(),
		LastIndex:      int64(s.LastIndex),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func fromStateModel(m *stateModel) *treasury.State {
	return &treasury.State{
		Entity:         types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Owner:          types.AccountID(m.Owner),
		Treasury:       types.AccountID(m.Treasury),
		ReserveHorizon: time.Duration(m.ReserveSeconds) * time.Second,
		LastIndex:      subscription.Index(m.LastIndex),
	}
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:paystream_subscriptions"`

	ID          int64     `grove:"id,pk"`
	Source      string    `grove:"source"`
	Destination string    `grove:"destination"`
	Rate        int64     `grove:"rate"`
	StartAt     time.Time `grove:"start_at"`
	LastSettled time.Time `grove:"last_settled"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:          int64(s.ID),
		Source:      s.Source.String(),
		Destination: s.Destination.String(),
		Rate:        int64(s.Rate),
		StartAt:     s.Start,
		LastSettled: s.LastSettled,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) *subscription.Subscription {
	return &subscription.Subscription{
		Entity:      types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          subscription.Index(m.ID),
		Source:      types.AccountID(m.Source),
		Destination: types.AccountID(m.Destination),
		Rate:        types.Rate(m.Rate),
		Start:       m.StartAt.UTC(),
		LastSettled: m.LastSettled.UTC(),
	}
}

// ==================== Flow models ====================

type flowModel struct {
	grove.BaseModel `grove:"table:paystream_flows"`

	Direction    string `grove:"direction,pk"`
	Account      string `grove:"account,pk"`
	Subscription int64  `grove:"subscription_id,pk"`
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:paystream_balances"`

	Account   string    `grove:"account,pk"`
	Stored    int64     `grove:"stored"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func fromBalanceModel(m *balanceModel) *balance.Account {
	return &balance.Account{
		Entity:  types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Account: types.AccountID(m.Account),
		Stored:  types.Amount(m.Stored),
	}
}

type movementModel struct {
	grove.BaseModel `grove:"table:paystream_movements"`

	ID        string    `grove:"id,pk"`
	Account   string    `grove:"account"`
	Kind      string    `grove:"kind"`
	Amount    int64     `grove:"amount"`
	CreatedAt time.Time `grove:"created_at"`
}

func toMovementModel(mv *balance.Movement) *movementModel {
	return &movementModel{
		ID:        mv.ID.String(),
		Account:   mv.Account.String(),
		Kind:      string(mv.Kind),
		Amount:    int64(mv.Amount),
		CreatedAt: mv.CreatedAt,
	}
}

func fromMovementModel(m *movementModel) (*balance.Movement, error) {
	mvID, err := id.ParseMovementID(m.ID)
	if err != nil {
		return nil, err
	}
	return &balance.Movement{
		ID:        mvID,
		Account:   types.AccountID(m.Account),
		Kind:      balance.Kind(m.Kind),
		Amount:    types.Amount(m.Amount),
		CreatedAt: m.CreatedAt.UTC(),
	}, nil
}

// ==================== Payout models ====================

type payoutModel struct {
	grove.BaseModel `grove:"table:paystream_payouts"`

	ID          string    `grove:"id,pk"`
	Treasury    string    `grove:"treasury"`
	Destination string    `grove:"destination"`
	Amount      int64     `grove:"amount"`
	CreatedAt   time.Time `grove:"created_at"`
}

func toPayoutModel(p *treasury.Payout) *payoutModel {
	return &payoutModel{
		ID:          p.ID.String(),
		Treasury:    p.Treasury.String(),
		Destination: p.Destination.String(),
		Amount:      int64(p.Amount),
		CreatedAt:   p.CreatedAt,
	}
}

func fromPayoutModel(m *payoutModel) (*treasury.Payout, error) {
	payoutID, err := id.ParsePayoutID(m.ID)
	if err != nil {
		return nil, err
	}
	return &treasury.Payout{
		ID:          payoutID,
		Treasury:    types.AccountID(m.Treasury),
		Destination: types.AccountID(m.Destination),
		Amount:      types.Amount(m.Amount),
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

// ==================== Reporter models ====================

type reporterModel struct {
	grove.BaseModel `grove:"table:paystream_reporters"`

	Account   string    `grove:"account,pk"`
	Stake     int64     `grove:"stake"`
	CreatedAt time.Time `grove:"created_at"`
	UpdatedAt time.Time `grove:"updated_at"`
}

func toReporterModel(r *reporter.Reporter) *reporterModel {
	return &reporterModel{
		Account:   r.Account.String(),
		Stake:     int64(r.Stake),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromReporterModel(m *reporterModel) *reporter.Reporter {
	return &reporter.Reporter{
		Entity:  types.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		Account: types.AccountID(m.Account),
		Stake:   types.Amount(m.Stake),
	}
}

type reportModel struct {
	grove.BaseModel `grove:"table:paystream_reports"`

	ID            string    `grove:"id,pk"`
	Reporter      string    `grove:"reporter"`
	Source        string    `grove:"source"`
	LiveBalance   int64     `grove:"live_balance"`
	ReporterShare int64     `grove:"reporter_share"`
	TreasuryShare int64     `grove:"treasury_share"`
	CreatedAt     time.Time `grove:"created_at"`
}

func toReportModel(r *reporter.Report) *reportModel {
	return &reportModel{
		ID:            r.ID.String(),
		Reporter:      r.Reporter.String(),
		Source:        r.Source.String(),
		LiveBalance:   int64(r.LiveBalance),
		ReporterShare: int64(r.ReporterShare),
		TreasuryShare: int64(r.TreasuryShare),
		CreatedAt:     r.CreatedAt,
	}
}

func fromReportModel(m *reportModel) (*reporter.Report, error) {
	reportID, err := id.ParseReportID(m.ID)
	if err != nil {
		return nil, err
	}
	return &reporter.Report{
		ID:            reportID,
		Reporter:      types.AccountID(m.Reporter),
		Source:        types.AccountID(m.Source),
		LiveBalance:   types.Amount(m.LiveBalance),
		ReporterShare: types.Amount(m.ReporterShare),
		TreasuryShare: types.Amount(m.TreasuryShare),
		CreatedAt:     m.CreatedAt.UTC(),
	}, nil
}
