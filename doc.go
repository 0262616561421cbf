// Package paystream provides a continuous-payment streaming ledger for Go
// applications.
//
// Accounts open subscriptions that stream a fixed number of token units per
// second from a source to a destination. The ledger never ticks: it keeps a
// stored balance per account and, for every subscription, the instant it
// was last settled. The live balance of an account at any time is its
// stored balance plus what streamed in minus what streamed out since those
// instants.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/paystream"
//	    "github.com/xraph/paystream/store/memory"
//	)
//
//	l := paystream.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	if _, err := l.Initialize(ctx, "admin"); err != nil {
//	    log.Fatal(err)
//	}
//
// The host authenticates callers and passes the caller's account through
// the context:
//
//	alice := paystream.WithCaller(ctx, "alice")
//	l.Deposit(alice, "alice", 1_000_000)
//	sub, err := l.AddSubscription(alice, time.Time{}, "alice", "bob", 100)
//
// # Reserve
//
// A source may only take on a new obligation if its live balance can fund
// all of its outbound rates for the reserve horizon (one hour unless
// configured). Withdrawals and reporter stakes are held to the same rule.
//
// # Atomicity
//
// Every mutating call runs in a single store transaction and either applies
// all of its changes or none. Plugins are notified after commit.
//
// # Storage
//
// Four backends implement store.Store: memory, PostgreSQL and SQLite (via
// Grove) and MongoDB. Settled records (payouts, movements, reports) carry
// TypeID identifiers:
//
//	pay_01h2xcejqtf2nbrexx3vqjhp41  // Payout ID
//	dep_01h2xcejqtf2nbrexx3vqjhp41  // Deposit ID
//	rpt_01h455vb4pex5vsknk084sn02q  // Report ID
package paystream
