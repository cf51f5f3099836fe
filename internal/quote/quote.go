// Package quote computes realized and projected profit for swap runs
// using external reference prices.
package quote

import (
	"math"

	"xrpl-amm-history/internal/domain"
)

// FeeConfig names one of the fixed trading-fee haircuts. The three
// rates are historical behavior of the three computation paths; callers
// pick by name rather than a unifying rule.
type FeeConfig struct {
	Name string
	Rate float64
}

// The three fee configurations.
var (
	FeeSingleSwap  = FeeConfig{Name: "single-swap", Rate: 0.01}
	FeePositionRun = FeeConfig{Name: "position-run", Rate: 0.023}
	FeeLatestSwap  = FeeConfig{Name: "latest-swap", Rate: 0.03}
)

// PriceTable maps "{currency}-{issuer}" to an external reference price.
// The native asset is keyed "XRP-".
type PriceTable map[string]float64

// Lookup returns a usable price for an asset. Missing, non-positive and
// non-finite prices are all unusable.
func (t PriceTable) Lookup(a domain.Asset) (float64, bool) {
	v, ok := t[a.PriceKey()]
	if !ok || v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ReverseQuote converts a swap's received leg to the reference unit,
// applies the fee haircut, converts back to the sent asset, and reports
// profit/loss against the original amount sent. Returns nil — distinct
// from a zero-profit quote — when any required reference price is
// unusable or the swap amounts are not positive.
func ReverseQuote(swap domain.SwapRecord, prices PriceTable, fee FeeConfig) *domain.QuoteRecord {
	if swap.Value1 <= 0 || swap.Value2 <= 0 {
		return nil
	}

	sentPrice, ok := prices.Lookup(swap.Sent())
	if !ok {
		return nil
	}
	receivedPrice, ok := prices.Lookup(swap.Received())
	if !ok {
		return nil
	}

	referenceValue := swap.Value2 * receivedPrice
	afterFee := referenceValue * (1 - fee.Rate)
	reverseAmount := afterFee / sentPrice

	profitLoss := reverseAmount - swap.Value1
	profitPercent := profitLoss / swap.Value1 * 100
	if math.IsNaN(reverseAmount) || math.IsInf(reverseAmount, 0) ||
		math.IsNaN(profitPercent) || math.IsInf(profitPercent, 0) {
		return nil
	}

	return &domain.QuoteRecord{
		ReverseAmount: reverseAmount,
		ProfitLoss:    profitLoss,
		ProfitPercent: profitPercent,
		IsProfit:      profitLoss > 0,
		FeeRate:       fee.Rate,
	}
}
