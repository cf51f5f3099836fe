package domain

import (
	"fmt"
	"sort"
	"strings"
)

// NativeCurrency is the ledger's native asset code. It has no issuer.
const NativeCurrency = "XRP"

// Asset identifies one leg of a trading pair: a currency code plus the
// issuing account. The native asset carries an empty issuer.
type Asset struct {
	Currency string
	Issuer   string
}

// IsNative reports whether the asset is the ledger's native currency.
func (a Asset) IsNative() bool {
	return a.Currency == NativeCurrency && a.Issuer == ""
}

// PriceKey is the lookup key used by external reference-price tables.
// Format: "{currency}-{issuer}".
func (a Asset) PriceKey() string {
	return fmt.Sprintf("%s-%s", a.Currency, a.Issuer)
}

func (a Asset) String() string {
	if a.IsNative() {
		return NativeCurrency
	}
	return fmt.Sprintf("%s.%s", a.Currency, a.Issuer)
}

// Pair is a two-asset trading pair. First/Second preserve the order the
// caller supplied them in; Key does not depend on that order.
type Pair struct {
	First  Asset
	Second Asset
}

// Key returns the normalized pair key used for cache and discovery
// lookups. Key(A,B) == Key(B,A) for all pairs.
func (p Pair) Key() string {
	legs := []string{p.First.String(), p.Second.String()}
	sort.Strings(legs)
	return strings.Join(legs, "_")
}

// Base returns the asset currently considered base. Which one that is
// comes from the caller (the display layer decides orientation).
func (p Pair) Base(baseIsFirst bool) Asset {
	if baseIsFirst {
		return p.First
	}
	return p.Second
}

// Quote returns the non-base asset.
func (p Pair) Quote(baseIsFirst bool) Asset {
	if baseIsFirst {
		return p.Second
	}
	return p.First
}
