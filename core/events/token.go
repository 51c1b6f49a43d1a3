package events

import (
	"math/big"

	"payway/core/types"
)

const (
	// TypeTokenTransfer is emitted for every successful token movement,
	// including transfer-from pulls and mints (zero source address).
	TypeTokenTransfer = "token.transfer"
	// TypeTokenApproval is emitted when an owner sets a spender allowance.
	TypeTokenApproval = "token.approval"
)

// TokenTransfer announces a token balance movement.
type TokenTransfer struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

// EventType satisfies the events.Event interface.
func (TokenTransfer) EventType() string { return TypeTokenTransfer }

// Event converts the payload into its wire representation.
func (e TokenTransfer) Event() *types.Event {
	return &types.Event{Type: TypeTokenTransfer, Attributes: map[string]string{
		"from":   withHexPrefix(e.From[:]),
		"to":     withHexPrefix(e.To[:]),
		"amount": formatAmount(e.Amount),
	}}
}

// TokenApproval announces an allowance update.
type TokenApproval struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

// EventType satisfies the events.Event interface.
func (TokenApproval) EventType() string { return TypeTokenApproval }

// Event converts the payload into its wire representation.
func (e TokenApproval) Event() *types.Event {
	return &types.Event{Type: TypeTokenApproval, Attributes: map[string]string{
		"owner":   withHexPrefix(e.Owner[:]),
		"spender": withHexPrefix(e.Spender[:]),
		"amount":  formatAmount(e.Amount),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
