package quote

import "xrpl-amm-history/internal/domain"

// OpenPosition walks a chronological run of swaps from the most recent
// backwards, accumulating amounts while the direction (which asset was
// sent) stays the same as the latest swap's, and stops at the first
// direction change. The result is the current open position: how much
// was sent and received since the trader last turned around. The second
// return is false when there are no swaps.
func OpenPosition(swaps []domain.SwapRecord) (domain.SwapRecord, bool) {
	if len(swaps) == 0 {
		return domain.SwapRecord{}, false
	}

	latest := swaps[len(swaps)-1]
	position := domain.SwapRecord{
		Currency1: latest.Currency1,
		Issuer1:   latest.Issuer1,
		Currency2: latest.Currency2,
		Issuer2:   latest.Issuer2,
		Date:      latest.Date,
	}

	for i := len(swaps) - 1; i >= 0; i-- {
		s := swaps[i]
		if !sameDirection(s, latest) {
			break
		}
		position.Value1 += s.Value1
		position.Value2 += s.Value2
	}

	return position, true
}

// PositionQuote computes the reverse-conversion quote for the current
// open position, with the position-run fee.
func PositionQuote(swaps []domain.SwapRecord, prices PriceTable) *domain.QuoteRecord {
	position, ok := OpenPosition(swaps)
	if !ok {
		return nil
	}
	return ReverseQuote(position, prices, FeePositionRun)
}

// LatestSwapQuote quotes only the most recent swap, with the
// latest-swap fee.
func LatestSwapQuote(swaps []domain.SwapRecord, prices PriceTable) *domain.QuoteRecord {
	if len(swaps) == 0 {
		return nil
	}
	return ReverseQuote(swaps[len(swaps)-1], prices, FeeLatestSwap)
}

func sameDirection(a, b domain.SwapRecord) bool {
	return a.Sent() == b.Sent() && a.Received() == b.Received()
}
