package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLedgerTopOrdersByPointsThenEarliest(t *testing.T) {
	ledger := NewLedger()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	ledger.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	_ = ledger.Award(ctx, bob, 20)
	_ = ledger.Award(ctx, alice, 10)
	_ = ledger.Award(ctx, carol, 5)
	_ = ledger.Award(ctx, alice, 10)

	top, err := ledger.Top(ctx, 2)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].UserID != bob || top[1].UserID != alice {
		t.Fatalf("expected bob then alice (earlier tie), got %+v", top)
	}
	if top[1].Points != 20 {
		t.Fatalf("expected alice total 20, got %d", top[1].Points)
	}
}
