package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"payway/crypto"
)

func decodeParams(req *RPCRequest, want int, targets ...interface{}) error {
	if len(req.Params) != want {
		return fmt.Errorf("expected %d parameter(s), got %d", want, len(req.Params))
	}
	for i, target := range targets {
		if err := json.Unmarshal(req.Params[i], target); err != nil {
			return fmt.Errorf("invalid parameter %d: %w", i+1, err)
		}
	}
	return nil
}

func parseBech32Address(value, field string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return [20]byte{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr.Raw(), nil
}

func parsePositiveBigInt(value, field string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s", field)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%s must be positive", field)
	}
	return amount, nil
}

func formatAddress(raw [20]byte) string {
	return crypto.MustNewAddress(raw[:]).String()
}

func formatBigInt(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return value.String()
}
