package prover

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAddress = errors.New("invalid prover address")

// Address is a prover (or requester) address as raw bytes.
type Address []byte

// ParseAddress decodes a hex address with an optional 0x prefix.
func ParseAddress(raw string) (Address, error) {
	a := strings.TrimSpace(raw)
	if strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X") {
		a = a[2:]
	}
	if a == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	b, err := hex.DecodeString(a)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidAddress, raw, err)
	}
	return Address(b), nil
}

// Hex returns the lowercase hex form with a 0x prefix.
func (a Address) Hex() string {
	return "0x" + hex.EncodeToString(a)
}
