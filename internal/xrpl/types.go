package xrpl

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Command names used against ledger nodes.
const (
	CommandAMMInfo   = "amm_info"
	CommandAccountTx = "account_tx"
)

const dropsPerXRP = 1_000_000

// Amount is a currency amount on the wire. The native asset arrives as a
// bare string of drops, issued assets as a {currency, issuer, value}
// object. UnmarshalJSON folds both shapes into one struct.
type Amount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		n, err := strconv.ParseInt(drops, 10, 64)
		if err != nil {
			return fmt.Errorf("parse drops %q: %w", drops, err)
		}
		a.Currency = "XRP"
		a.Issuer = ""
		a.Value = strconv.FormatFloat(float64(n)/dropsPerXRP, 'f', -1, 64)
		return nil
	}

	type wireAmount Amount
	var w wireAmount
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*a = Amount(w)
	return nil
}

// Float parses the amount value. Returns an error for empty or
// non-numeric values; callers must additionally check sign and finiteness.
func (a Amount) Float() (float64, error) {
	return strconv.ParseFloat(a.Value, 64)
}

// TxPayload is the transaction body inside an account_tx entry. Only the
// fields the normalizer inspects are decoded; everything else stays in
// the raw page.
type TxPayload struct {
	TransactionType string          `json:"TransactionType"`
	Account         string          `json:"Account"`
	Hash            string          `json:"hash"`
	LedgerIndex     int64           `json:"ledger_index"`
	Date            int64           `json:"date"` // seconds since the ripple epoch
	Amount          json.RawMessage `json:"Amount,omitempty"`
	SendMax         json.RawMessage `json:"SendMax,omitempty"`
}

// TxMeta is the decoded transaction metadata.
type TxMeta struct {
	TransactionResult string          `json:"TransactionResult"`
	DeliveredAmount   json.RawMessage `json:"delivered_amount,omitempty"`
}

// RawTransaction is one entry of an account_tx page. Meta stays raw
// because binary-encoded responses deliver it as a hex string; the
// normalizer is the only consumer of that untyped boundary.
type RawTransaction struct {
	Tx        *TxPayload      `json:"tx"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Validated bool            `json:"validated"`
}

// MetaObject decodes Meta when it is a JSON object. The second return is
// false for absent, string-encoded, or malformed metadata.
func (r RawTransaction) MetaObject() (*TxMeta, bool) {
	if len(r.Meta) == 0 || r.Meta[0] != '{' {
		return nil, false
	}
	var m TxMeta
	if err := json.Unmarshal(r.Meta, &m); err != nil {
		return nil, false
	}
	return &m, true
}

// HashKey returns the transaction hash, or "" when the body is missing.
func (r RawTransaction) HashKey() string {
	if r.Tx == nil {
		return ""
	}
	return r.Tx.Hash
}

// AccountTxResult is the result payload of an account_tx call.
type AccountTxResult struct {
	Account        string           `json:"account"`
	LedgerIndexMin int64            `json:"ledger_index_min"`
	LedgerIndexMax int64            `json:"ledger_index_max"`
	Transactions   []RawTransaction `json:"transactions"`
	Marker         json.RawMessage  `json:"marker,omitempty"`
}

// AssetDescriptor is the asset form amm_info expects.
type AssetDescriptor struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// AMMInfoResult is the result payload of an amm_info call.
type AMMInfoResult struct {
	AMM struct {
		Account    string          `json:"account"`
		Amount     json.RawMessage `json:"amount"`
		Amount2    json.RawMessage `json:"amount2"`
		TradingFee int             `json:"trading_fee"`
	} `json:"amm"`
}
