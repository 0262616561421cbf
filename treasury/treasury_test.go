package treasury

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestStateHelpers(t *testing.T) {
	s := &State{Owner: "root", ReserveHorizon: 90 * time.Minute, LastIndex: 4}
	if s.HasTreasury() {
		t.Error("HasTreasury true before a treasury was set")
	}
	s.Treasury = "vault"
	if !s.HasTreasury() {
		t.Error("HasTreasury false after setting treasury")
	}
	if got := s.NextIndex(); got != 5 {
		t.Errorf("NextIndex = %d, want 5", got)
	}
	if got := s.HorizonSeconds(); got != 5400 {
		t.Errorf("HorizonSeconds = %d, want 5400", got)
	}
}

func TestTransferFunc(t *testing.T) {
	boom := errors.New("boom")
	var seen *Payout
	tr := TransferFunc(func(_ context.Context, p *Payout) error {
		seen = p
		return boom
	})

	p := &Payout{Destination: "carol", Amount: 10}
	if err := tr.Transfer(context.Background(), p); !errors.Is(err, boom) {
		t.Fatalf("Transfer error = %v, want boom", err)
	}
	if seen != p {
		t.Error("TransferFunc did not receive the payout")
	}
	if err := NoopTransferer.Transfer(context.Background(), p); err != nil {
		t.Errorf("NoopTransferer returned %v", err)
	}
}
