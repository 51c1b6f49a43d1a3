package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"payway/core/types"
)

const (
	// TypeItemAdded is emitted when the catalog owner registers a new item.
	TypeItemAdded = "storefront.item.added"
	// TypeCustomerRegistered is emitted when an address stores or refreshes
	// its external handle.
	TypeCustomerRegistered = "storefront.customer.registered"
	// TypePaymentRecorded is emitted once a payment has settled and been
	// appended to the log.
	TypePaymentRecorded = "storefront.payment.recorded"
)

// ItemAdded announces a new catalog entry.
type ItemAdded struct {
	ID       uint64
	Name     string
	Category uint8
	Stars    uint8
	Grade    uint8
}

// EventType satisfies the events.Event interface.
func (ItemAdded) EventType() string { return TypeItemAdded }

// Event converts the payload into its wire representation.
func (e ItemAdded) Event() *types.Event {
	attrs := map[string]string{
		"id":       strconv.FormatUint(e.ID, 10),
		"category": strconv.FormatUint(uint64(e.Category), 10),
		"stars":    strconv.FormatUint(uint64(e.Stars), 10),
		"grade":    strconv.FormatUint(uint64(e.Grade), 10),
	}
	if name := strings.TrimSpace(e.Name); name != "" {
		attrs["name"] = name
	}
	return &types.Event{Type: TypeItemAdded, Attributes: attrs}
}

// CustomerRegistered announces a handle registration.
type CustomerRegistered struct {
	Address [20]byte
	Handle  uint64
	First   bool
}

// EventType satisfies the events.Event interface.
func (CustomerRegistered) EventType() string { return TypeCustomerRegistered }

// Event converts the payload into its wire representation.
func (e CustomerRegistered) Event() *types.Event {
	return &types.Event{Type: TypeCustomerRegistered, Attributes: map[string]string{
		"address": withHexPrefix(e.Address[:]),
		"handle":  strconv.FormatUint(e.Handle, 10),
		"first":   strconv.FormatBool(e.First),
	}}
}

// PaymentRecorded announces a settled payment.
type PaymentRecorded struct {
	Sequence uint64
	Payer    [20]byte
	ItemID   uint64
	Currency string
	Amount   *big.Int
	Quantity uint64
}

// EventType satisfies the events.Event interface.
func (PaymentRecorded) EventType() string { return TypePaymentRecorded }

// Event converts the payload into its wire representation.
func (e PaymentRecorded) Event() *types.Event {
	amount := "0"
	if e.Amount != nil {
		amount = e.Amount.String()
	}
	return &types.Event{Type: TypePaymentRecorded, Attributes: map[string]string{
		"sequence": strconv.FormatUint(e.Sequence, 10),
		"payer":    withHexPrefix(e.Payer[:]),
		"itemId":   strconv.FormatUint(e.ItemID, 10),
		"currency": e.Currency,
		"amount":   amount,
		"quantity": strconv.FormatUint(e.Quantity, 10),
	}}
}

func withHexPrefix(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(raw)
}
