package domain

// SwapRecord is one historical conversion between two assets in the
// caller's own transaction history: Value1 of asset (Currency1, Issuer1)
// sent, Value2 of asset (Currency2, Issuer2) received. Date is epoch ms.
type SwapRecord struct {
	ID        int64
	Currency1 string
	Issuer1   string
	Value1    float64
	Currency2 string
	Issuer2   string
	Value2    float64
	Date      int64
}

// Sent returns the asset on the input side of the swap.
func (s SwapRecord) Sent() Asset {
	return Asset{Currency: s.Currency1, Issuer: s.Issuer1}
}

// Received returns the asset on the output side of the swap.
func (s SwapRecord) Received() Asset {
	return Asset{Currency: s.Currency2, Issuer: s.Issuer2}
}

// QuoteRecord is the result of a reverse-conversion quote. Ephemeral,
// recomputed per request, never cached.
type QuoteRecord struct {
	ReverseAmount float64 // amount of the sent asset recovered by converting back
	ProfitLoss    float64 // ReverseAmount - original sent amount
	ProfitPercent float64
	IsProfit      bool
	FeeRate       float64 // the haircut that was applied
}
