package extractor

import (
	"testing"

	"github.com/muse0509/axis-settlement/internal/model"
)

const (
	usdcMint      = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	indexMint     = "AXSmint1111111111111111111111111111111111111"
	treasuryOwner = "Treasury11111111111111111111111111111111111"
	treasuryUsdc  = "TreasuryUsdcAcc11111111111111111111111111111"
	treasuryIndex = "TreasuryIndexAcc1111111111111111111111111111"
	depositor     = "Depositor1111111111111111111111111111111111"
)

func newTestExtractor() *Extractor {
	return New(Params{
		UsdcMint:             usdcMint,
		IndexMint:            indexMint,
		TreasuryOwner:        treasuryOwner,
		TreasuryUsdcAccount:  treasuryUsdc,
		TreasuryIndexAccount: treasuryIndex,
	})
}

func TestExtractFromTransferList(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-1",
		TokenTransfers: []TokenTransfer{
			{FromUserAccount: depositor, ToUserAccount: treasuryOwner, Mint: usdcMint, TokenAmount: 100},
		},
	})
	if dep == nil {
		t.Fatal("expected deposit event")
	}
	if dep.Direction != model.DirectionMint {
		t.Fatalf("expected mint direction, got %s", dep.Direction)
	}
	if dep.Depositor != depositor || dep.Amount != 100 {
		t.Fatalf("unexpected deposit: %+v", dep)
	}
	if dep.Shape != model.ShapeTransferList {
		t.Fatalf("expected transfer_list shape, got %s", dep.Shape)
	}
}

func TestExtractBurnDirection(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-2",
		TokenTransfers: []TokenTransfer{
			{FromUserAccount: depositor, ToUserAccount: treasuryOwner, Mint: indexMint, TokenAmount: 5},
		},
	})
	if dep == nil {
		t.Fatal("expected deposit event")
	}
	if dep.Direction != model.DirectionBurn {
		t.Fatalf("expected burn direction, got %s", dep.Direction)
	}
}

func TestExtractFromBalanceChangeFallback(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-3",
		AccountData: []AccountData{
			{
				Account: treasuryUsdc,
				TokenBalanceChanges: []TokenBalanceChange{
					{
						Mint:           usdcMint,
						TokenAccount:   treasuryUsdc,
						UserAccount:    treasuryOwner,
						RawTokenAmount: RawTokenAmount{TokenAmount: "100000000", Decimals: 6},
					},
				},
			},
			{
				Account: "depositor-usdc-account",
				TokenBalanceChanges: []TokenBalanceChange{
					{
						Mint:           usdcMint,
						TokenAccount:   "depositor-usdc-account",
						UserAccount:    depositor,
						RawTokenAmount: RawTokenAmount{TokenAmount: "-100000000", Decimals: 6},
					},
				},
			},
		},
	})
	if dep == nil {
		t.Fatal("expected deposit event")
	}
	if dep.Shape != model.ShapeBalanceChange {
		t.Fatalf("expected balance_change shape, got %s", dep.Shape)
	}
	if dep.Amount != 100 {
		t.Fatalf("expected amount 100, got %v", dep.Amount)
	}
	if dep.Depositor != depositor {
		t.Fatalf("expected depositor %s, got %s", depositor, dep.Depositor)
	}
}

func TestTransferListWinsOverBalanceChange(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-4",
		TokenTransfers: []TokenTransfer{
			{FromUserAccount: depositor, ToUserAccount: treasuryOwner, Mint: usdcMint, TokenAmount: 100},
		},
		AccountData: []AccountData{
			{
				Account: treasuryUsdc,
				TokenBalanceChanges: []TokenBalanceChange{
					{
						Mint:           usdcMint,
						TokenAccount:   treasuryUsdc,
						RawTokenAmount: RawTokenAmount{TokenAmount: "99000000", Decimals: 6},
					},
				},
			},
		},
	})
	if dep == nil {
		t.Fatal("expected deposit event")
	}
	// 两种形态都命中时转账列表优先，只产生一个事件
	if dep.Shape != model.ShapeTransferList {
		t.Fatalf("expected transfer_list to win, got %s", dep.Shape)
	}
	if dep.Amount != 100 {
		t.Fatalf("expected transfer-list amount 100, got %v", dep.Amount)
	}
}

func TestExtractNoMatchIsNil(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-5",
		TokenTransfers: []TokenTransfer{
			{FromUserAccount: depositor, ToUserAccount: "someone-else", Mint: usdcMint, TokenAmount: 100},
			{FromUserAccount: depositor, ToUserAccount: treasuryOwner, Mint: "OtherMint", TokenAmount: 100},
		},
	})
	if dep != nil {
		t.Fatalf("expected nil, got %+v", dep)
	}
}

func TestExtractEmptyDepositorIsNil(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-6",
		TokenTransfers: []TokenTransfer{
			{FromUserAccount: "", ToUserAccount: treasuryOwner, Mint: usdcMint, TokenAmount: 100},
		},
	})
	if dep != nil {
		t.Fatalf("expected nil for empty depositor, got %+v", dep)
	}
}

func TestBalanceChangeFallsBackToFeePayer(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-7",
		FeePayer:  depositor,
		AccountData: []AccountData{
			{
				Account: treasuryIndex,
				TokenBalanceChanges: []TokenBalanceChange{
					{
						Mint:           indexMint,
						TokenAccount:   treasuryIndex,
						RawTokenAmount: RawTokenAmount{TokenAmount: "5000000", Decimals: 6},
					},
				},
			},
		},
	})
	if dep == nil {
		t.Fatal("expected deposit event")
	}
	if dep.Depositor != depositor {
		t.Fatalf("expected feePayer fallback, got %s", dep.Depositor)
	}
	if dep.Direction != model.DirectionBurn || dep.Amount != 5 {
		t.Fatalf("unexpected deposit: %+v", dep)
	}
}

func TestNegativeBalanceChangeIgnored(t *testing.T) {
	e := newTestExtractor()
	dep := e.Extract(RawEvent{
		Signature: "sig-8",
		AccountData: []AccountData{
			{
				Account: treasuryUsdc,
				TokenBalanceChanges: []TokenBalanceChange{
					{
						Mint:           usdcMint,
						TokenAccount:   treasuryUsdc,
						RawTokenAmount: RawTokenAmount{TokenAmount: "-100000000", Decimals: 6},
					},
				},
			},
		},
	})
	if dep != nil {
		t.Fatalf("outflow from treasury is not a deposit, got %+v", dep)
	}
}
