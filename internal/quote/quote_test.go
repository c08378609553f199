package quote

import (
	"errors"
	"math"
	"testing"

	"github.com/muse0509/axis-settlement/internal/model"
)

func TestPayoutMint(t *testing.T) {
	got, err := Payout(model.DirectionMint, 10, 2.0)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if got != 5.0 {
		t.Fatalf("expected 5.0, got %v", got)
	}
}

func TestPayoutBurn(t *testing.T) {
	got, err := Payout(model.DirectionBurn, 5, 2.0)
	if err != nil {
		t.Fatalf("payout: %v", err)
	}
	if got != 10.0 {
		t.Fatalf("expected 10.0, got %v", got)
	}
}

func TestPayoutRejectsBadIndexValue(t *testing.T) {
	for _, index := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Payout(model.DirectionMint, 10, index); !errors.Is(err, ErrInvalidIndexValue) {
			t.Fatalf("index %v: expected ErrInvalidIndexValue, got %v", index, err)
		}
	}
}

func TestPayoutRejectsBadAmount(t *testing.T) {
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(-1)} {
		if _, err := Payout(model.DirectionBurn, amount, 2.0); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %v: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
}

func TestPayoutRejectsUnknownDirection(t *testing.T) {
	if _, err := Payout(model.Direction("swap"), 1, 1); !errors.Is(err, ErrUnknownDirection) {
		t.Fatalf("expected ErrUnknownDirection, got %v", err)
	}
}

func TestToBaseUnitsTruncatesTowardZero(t *testing.T) {
	cases := []struct {
		amount   float64
		decimals uint8
		want     uint64
	}{
		{25.0, 6, 25000000},
		{1.9999999, 6, 1999999},
		{0.0000001, 6, 0},
		{0.5, 0, 0},
		{-3, 6, 0},
	}
	for _, c := range cases {
		if got := ToBaseUnits(c.amount, c.decimals); got != c.want {
			t.Fatalf("ToBaseUnits(%v, %d) = %d, want %d", c.amount, c.decimals, got, c.want)
		}
	}
}
