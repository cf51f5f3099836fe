package xrpl

import "testing"

func TestEncodeCurrency(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"standard code passes through", "USD", "USD"},
		{"native passes through", "XRP", "XRP"},
		{"long code hex encoded to 20 bytes", "SOLO", "534F4C4F00000000000000000000000000000000"},
		{"already hex passes through", "534F4C4F00000000000000000000000000000000", "534F4C4F00000000000000000000000000000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EncodeCurrency(tc.in); got != tc.want {
				t.Errorf("EncodeCurrency(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestEncodeCurrency_FixedWidth(t *testing.T) {
	got := EncodeCurrency("LongTokenName")
	if len(got) != 40 {
		t.Fatalf("encoded length = %d, want 40 hex chars", len(got))
	}
}

func TestValidAddress(t *testing.T) {
	// Genesis account, structurally valid.
	if !ValidAddress("rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh") {
		t.Error("genesis address rejected")
	}
	for _, addr := range []string{"", "xHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh", "rNotBase58_0OIl", "r"} {
		if ValidAddress(addr) {
			t.Errorf("ValidAddress(%q) = true, want false", addr)
		}
	}
}
