package xrpl

import (
	"encoding/json"
	"testing"
)

func TestAmount_UnmarshalDrops(t *testing.T) {
	var a Amount
	if err := json.Unmarshal([]byte(`"2500000"`), &a); err != nil {
		t.Fatalf("unmarshal drops: %v", err)
	}
	if a.Currency != "XRP" || a.Issuer != "" {
		t.Errorf("drops amount decoded as %+v", a)
	}
	v, err := a.Float()
	if err != nil {
		t.Fatalf("float: %v", err)
	}
	if v != 2.5 {
		t.Errorf("value = %v, want 2.5", v)
	}
}

func TestAmount_UnmarshalIssued(t *testing.T) {
	var a Amount
	raw := `{"currency":"USD","issuer":"rIssuer","value":"14.75"}`
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		t.Fatalf("unmarshal issued: %v", err)
	}
	if a.Currency != "USD" || a.Issuer != "rIssuer" || a.Value != "14.75" {
		t.Errorf("issued amount decoded as %+v", a)
	}
}

func TestRawTransaction_MetaObject(t *testing.T) {
	var tx RawTransaction
	raw := `{"tx":{"TransactionType":"Payment","hash":"ABC"},"meta":{"TransactionResult":"tesSUCCESS","delivered_amount":"1000000"},"validated":true}`
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m, ok := tx.MetaObject()
	if !ok {
		t.Fatal("meta object not decoded")
	}
	if m.TransactionResult != "tesSUCCESS" {
		t.Errorf("result = %q", m.TransactionResult)
	}

	// Binary responses carry meta as a hex string; that is not an error,
	// just absent metadata.
	var binTx RawTransaction
	if err := json.Unmarshal([]byte(`{"tx":{"hash":"X"},"meta":"1200002200"}`), &binTx); err != nil {
		t.Fatalf("unmarshal binary meta: %v", err)
	}
	if _, ok := binTx.MetaObject(); ok {
		t.Error("string meta should not decode to an object")
	}
}
