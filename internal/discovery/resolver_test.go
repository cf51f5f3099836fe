package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"xrpl-amm-history/internal/domain"
	"xrpl-amm-history/internal/xrpl"
	"xrpl-amm-history/internal/xrpl/stub"
)

type jsonRaw = json.RawMessage

const poolAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

var quietLogger = log.New(io.Discard, "", 0)

func marshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func poolFor(t *testing.T, sessions map[string]*stub.Session) *xrpl.Pool {
	t.Helper()
	return xrpl.NewPool(xrpl.PoolOptions{
		Limit:      3,
		GrantDelay: time.Millisecond,
		Dial: func(ctx context.Context, endpoint string) (xrpl.Session, error) {
			s, ok := sessions[endpoint]
			if !ok {
				return nil, errors.New("unknown endpoint")
			}
			return s, nil
		},
	})
}

func ammResult(account string) map[string]any {
	return map[string]any{
		"amm": map[string]any{
			"account":     account,
			"trading_fee": 500,
		},
	}
}

func TestResolve_FirstEndpointWins(t *testing.T) {
	primary := stub.NewSession()
	primary.Respond(xrpl.CommandAMMInfo, ammResult(poolAccount))

	r := New(Options{
		Endpoints: []string{"wss://primary", "wss://backup"},
		Pool:      poolFor(t, map[string]*stub.Session{"wss://primary": primary}),
		Logger:    quietLogger,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: "USD", Issuer: "rIssuer"},
		Second: domain.Asset{Currency: "XRP"},
	}
	info, err := r.Resolve(context.Background(), pair)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if info.Address != poolAccount || info.Reversed {
		t.Errorf("got %+v", info)
	}
	if info.AssetOrder() != "normal" {
		t.Errorf("asset order = %q", info.AssetOrder())
	}
}

func TestResolve_ReversedOrderingForIssuedPair(t *testing.T) {
	sess := stub.NewSession()
	calls := 0
	sess.Handle(xrpl.CommandAMMInfo, func(params map[string]any) (jsonRaw, error) {
		calls++
		if calls == 1 {
			return nil, &xrpl.APIError{Code: "ammNotFound"}
		}
		return marshal(t, ammResult(poolAccount)), nil
	})

	r := New(Options{
		Endpoints: []string{"wss://node"},
		Pool:      poolFor(t, map[string]*stub.Session{"wss://node": sess}),
		Logger:    quietLogger,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: "USD", Issuer: "rIssuerA"},
		Second: domain.Asset{Currency: "EUR", Issuer: "rIssuerB"},
	}
	info, err := r.Resolve(context.Background(), pair)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !info.Reversed {
		t.Error("expected reversed ordering hit")
	}
	if calls != 2 {
		t.Errorf("probe count = %d, want 2", calls)
	}
}

func TestResolve_NativePairSkipsReversedOrdering(t *testing.T) {
	sess := stub.NewSession()
	sess.Fail(xrpl.CommandAMMInfo, "ammNotFound")

	r := New(Options{
		Endpoints: []string{"wss://node"},
		Pool:      poolFor(t, map[string]*stub.Session{"wss://node": sess}),
		Logger:    quietLogger,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: "USD", Issuer: "rIssuer"},
		Second: domain.Asset{Currency: "XRP"},
	}
	if _, err := r.Resolve(context.Background(), pair); !errors.Is(err, ErrNoPool) {
		t.Fatalf("expected ErrNoPool, got %v", err)
	}
	if n := len(sess.Calls()); n != 1 {
		t.Errorf("probe count = %d, want 1 (no reversed ordering with a native leg)", n)
	}
}

func TestResolve_AllEndpointsTimeOut_ReturnsNoPool(t *testing.T) {
	slow1 := stub.NewSession()
	slow1.Hang = true
	slow2 := stub.NewSession()
	slow2.Hang = true

	r := New(Options{
		Endpoints: []string{"wss://one", "wss://two"},
		Pool:      poolFor(t, map[string]*stub.Session{"wss://one": slow1, "wss://two": slow2}),
		Timeout:   20 * time.Millisecond,
		Logger:    quietLogger,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: "USD", Issuer: "rIssuer"},
		Second: domain.Asset{Currency: "XRP"},
	}
	_, err := r.Resolve(context.Background(), pair)
	if !errors.Is(err, ErrNoPool) {
		t.Fatalf("timeouts must surface as no-pool, got %v", err)
	}
}

func TestResolve_EncodesLongCurrencyCodes(t *testing.T) {
	sess := stub.NewSession()
	var seen map[string]any
	sess.Handle(xrpl.CommandAMMInfo, func(params map[string]any) (jsonRaw, error) {
		seen = params
		return marshal(t, ammResult(poolAccount)), nil
	})

	r := New(Options{
		Endpoints: []string{"wss://node"},
		Pool:      poolFor(t, map[string]*stub.Session{"wss://node": sess}),
		Logger:    quietLogger,
	})

	pair := domain.Pair{
		First:  domain.Asset{Currency: "SOLO", Issuer: "rIssuer"},
		Second: domain.Asset{Currency: "XRP"},
	}
	if _, err := r.Resolve(context.Background(), pair); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	asset, ok := seen["asset"].(xrpl.AssetDescriptor)
	if !ok {
		t.Fatalf("asset param has type %T", seen["asset"])
	}
	if asset.Currency != "534F4C4F00000000000000000000000000000000" {
		t.Errorf("long code not hex encoded: %q", asset.Currency)
	}
}
