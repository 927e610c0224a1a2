package fee

import (
	"testing"
	"time"

	"github.com/driftlab/market-backend/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		want   int64
	}{
		{"free claim", 0, 0},
		{"tiny amount hits minimum", 100, 50}, // 2% of $1 is 2c, floored up
		{"just under minimum threshold", 2_400, 50},
		{"last cent of 2% band", 2_499, 50},
		{"first cent of 3% band", 2_500, 75},
		{"fifty dollars", 5_000, 150},
		{"last cent of 3% band", 9_999, 299}, // 299.97 floored
		{"first cent of 4% band", 10_000, 400},
		{"last cent of 4% band", 49_999, 1_999},
		{"first cent of 5% band", 50_000, 2_500},
		{"last cent of 5% band", 199_999, 9_999},
		{"first cent of 6% band", 200_000, 12_000},
		{"large amount", 1_000_000, 60_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Calculate(tt.amount); got != tt.want {
				t.Fatalf("Calculate(%d)=%d want %d", tt.amount, got, tt.want)
			}
		})
	}
}

func TestSplitInvariant(t *testing.T) {
	amounts := []int64{1, 49, 50, 99, 2_499, 2_500, 5_000, 9_999, 10_000, 49_999, 50_000, 199_999, 200_000, 987_654}
	for _, a := range amounts {
		f, s := Split(a)
		if f+s != a {
			t.Fatalf("Split(%d): %d+%d != %d", a, f, s, a)
		}
		if f < MinimumFeeCents {
			t.Fatalf("Split(%d): fee %d below minimum", a, f)
		}
		if s < 0 {
			t.Fatalf("Split(%d): negative seller amount %d", a, s)
		}
	}
}

func TestFiftyDollarManualTransferScenario(t *testing.T) {
	f, s := Split(5_000)
	if f != 150 || s != 4_850 {
		t.Fatalf("got fee=%d seller=%d, want 150/4850", f, s)
	}
	if w := Window(model.DeliveryManualTransfer, false); w != 7*24*time.Hour {
		t.Fatalf("manual transfer window=%v want 168h", w)
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name     string
		method   model.DeliveryMethod
		verified bool
		want     time.Duration
	}{
		{"instant download verified seller", model.DeliveryInstantDownload, true, 0},
		{"instant download new seller", model.DeliveryInstantDownload, false, 72 * time.Hour},
		{"repository access", model.DeliveryRepositoryAccess, true, 72 * time.Hour},
		{"manual transfer", model.DeliveryManualTransfer, true, 7 * 24 * time.Hour},
		{"domain transfer", model.DeliveryDomainTransfer, false, 14 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Window(tt.method, tt.verified); got != tt.want {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}
