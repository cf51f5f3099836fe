// Package normalization converts raw ledger transactions into canonical
// price observations. It is the only consumer of the untyped transaction
// boundary: anything that does not match the expected payment shape is
// rejected record by record, never aborting a batch.
package normalization

import (
	"encoding/json"
	"math"
	"strings"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/xrpl"
)

// rippleEpochOffset is the number of seconds between the Unix epoch and
// the ledger's reference epoch (2000-01-01T00:00:00Z).
const rippleEpochOffset = 946684800

// PairContext supplies the pair identity and the externally decided
// orientation for one normalization run.
type PairContext struct {
	Pair domain.Pair
	// BaseIsFirst marks which leg of the pair is currently base.
	BaseIsFirst bool
}

// Normalize converts one raw transaction into an observation. The
// second return is false for rejects: non-payment shapes, one-sided
// amounts, legs not matching the pair, and non-positive or non-finite
// values.
func Normalize(tx xrpl.RawTransaction, pc PairContext) (domain.Observation, bool) {
	var zero domain.Observation

	if tx.Tx == nil || tx.Tx.TransactionType != "Payment" {
		return zero, false
	}
	if len(tx.Tx.SendMax) == 0 {
		// Single-currency payment, not a swap.
		return zero, false
	}

	meta, ok := tx.MetaObject()
	if !ok || len(meta.DeliveredAmount) == 0 {
		return zero, false
	}
	if meta.TransactionResult != "" && meta.TransactionResult != "tesSUCCESS" {
		return zero, false
	}

	sent, ok := decodeAmount(tx.Tx.SendMax)
	if !ok {
		return zero, false
	}
	delivered, ok := decodeAmount(meta.DeliveredAmount)
	if !ok {
		return zero, false
	}

	// Both legs must map onto the pair, one each way.
	var sentIsFirst bool
	switch {
	case matchesAsset(sent, pc.Pair.First) && matchesAsset(delivered, pc.Pair.Second):
		sentIsFirst = true
	case matchesAsset(sent, pc.Pair.Second) && matchesAsset(delivered, pc.Pair.First):
		sentIsFirst = false
	default:
		return zero, false
	}

	sentValue, ok := positiveValue(sent)
	if !ok {
		return zero, false
	}
	deliveredValue, ok := positiveValue(delivered)
	if !ok {
		return zero, false
	}

	sentIsBase := sentIsFirst == pc.BaseIsFirst
	baseValue, quoteValue := sentValue, deliveredValue
	if !sentIsBase {
		baseValue, quoteValue = deliveredValue, sentValue
	}

	ratio := quoteValue / baseValue
	if !isFinite(ratio) || ratio <= 0 {
		return zero, false
	}
	// Price reads as the larger-denomination quote.
	if ratio < 1 {
		ratio = 1 / ratio
	}

	return domain.Observation{
		Time:       (tx.Tx.Date + rippleEpochOffset) * 1000,
		Price:      ratio,
		Volume:     baseValue,
		BuyingBase: !sentIsBase,
	}, true
}

// NormalizeBatch runs Normalize over a page of raw transactions,
// dropping rejects.
func NormalizeBatch(txs []xrpl.RawTransaction, pc PairContext) []domain.Observation {
	out := make([]domain.Observation, 0, len(txs))
	for _, tx := range txs {
		if obs, ok := Normalize(tx, pc); ok {
			out = append(out, obs)
		}
	}
	return out
}

func decodeAmount(raw json.RawMessage) (xrpl.Amount, bool) {
	var a xrpl.Amount
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, false
	}
	return a, true
}

func positiveValue(a xrpl.Amount) (float64, bool) {
	v, err := a.Float()
	if err != nil || !isFinite(v) || v <= 0 {
		return 0, false
	}
	return v, true
}

// matchesAsset compares a wire amount against a pair leg. Currencies
// compare in encoded form because raw transactions carry long codes as
// 20-byte hex.
func matchesAsset(a xrpl.Amount, asset domain.Asset) bool {
	if asset.IsNative() {
		return a.Currency == domain.NativeCurrency && a.Issuer == ""
	}
	return strings.EqualFold(xrpl.EncodeCurrency(a.Currency), xrpl.EncodeCurrency(asset.Currency)) &&
		a.Issuer == asset.Issuer
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
