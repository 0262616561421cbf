package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// Without it every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions skips the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool)
			for _, action := range AllActions() {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// AllActions returns every action the extension can emit.
func AllActions() []string {
	return []string{
		ActionSubscriptionCreated,
		ActionSubscriptionUpdated,
		ActionSubscriptionRemoved,
		ActionSettled,
		ActionReserveRejected,
		ActionDeposit,
		ActionWithdrawal,
		ActionStateChanged,
		ActionTreasuryPaid,
		ActionTransferFailed,
		ActionReporterAdded,
		ActionReporterRemoved,
		ActionReporterClaimed,
		ActionSourceReported,
	}
}
