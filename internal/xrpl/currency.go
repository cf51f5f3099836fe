package xrpl

import (
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"
)

// rippleAlphabet is the base58 dictionary XRPL addresses use.
const rippleAlphabet = "rpshnaf39wBUDNEGHJKLM4PQRST7VWXYZ2bcdeCg65jkm8oFqi1tuvAxyz"

const currencyCodeBytes = 20

// EncodeCurrency converts a currency code to its wire representation.
// Standard 3-character codes and 40-character hex codes pass through
// unchanged; longer codes are hex encoded and right-padded to 20 bytes.
func EncodeCurrency(code string) string {
	if len(code) <= 3 {
		return code
	}
	if isHexCurrency(code) {
		return code
	}

	buf := make([]byte, currencyCodeBytes)
	copy(buf, code)
	return strings.ToUpper(hex.EncodeToString(buf))
}

func isHexCurrency(code string) bool {
	if len(code) != 2*currencyCodeBytes {
		return false
	}
	_, err := hex.DecodeString(code)
	return err == nil
}

// ValidAddress checks the structural shape of a classic ledger address:
// ripple-alphabet base58, 25 payload bytes, account type prefix. It does
// not verify the checksum against any key material.
func ValidAddress(addr string) bool {
	if len(addr) == 0 || addr[0] != 'r' {
		return false
	}
	raw, err := base58.DecodeAlphabet(addr, base58.NewAlphabet(rippleAlphabet))
	if err != nil {
		return false
	}
	// 1 type byte + 20 account bytes + 4 checksum bytes
	return len(raw) == 25 && raw[0] == 0x00
}
