package audithook

// Action constants for audit events.
const (
	// Subscription actions
	ActionSubscriptionCreated = "subscription.created"
	ActionSubscriptionUpdated = "subscription.updated"
	ActionSubscriptionRemoved = "subscription.removed"
	ActionSettled             = "subscription.settled"
	ActionReserveRejected     = "reserve.rejected"

	// Balance actions
	ActionDeposit    = "balance.deposit"
	ActionWithdrawal = "balance.withdrawal"

	// Treasury actions
	ActionStateChanged   = "treasury.state_changed"
	ActionTreasuryPaid   = "treasury.paid"
	ActionTransferFailed = "treasury.transfer_failed"

	// Reporter actions
	ActionReporterAdded   = "reporter.added"
	ActionReporterRemoved = "reporter.removed"
	ActionReporterClaimed = "reporter.claimed"
	ActionSourceReported  = "reporter.source_reported"
)

// Resource constants for audit events.
const (
	ResourceSubscription = "subscription"
	ResourceAccount      = "account"
	ResourceTreasury     = "treasury"
	ResourcePayout       = "payout"
	ResourceReporter     = "reporter"
	ResourceReport       = "report"
)

// Category constants for audit events.
const (
	CategoryStreaming  = "streaming"
	CategoryBalance    = "balance"
	CategoryGovernance = "governance"
	CategoryPayment    = "payment"
	CategorySolvency   = "solvency"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
