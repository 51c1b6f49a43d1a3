package storefront

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"payway/core/events"
	"payway/core/types"
)

// engineState is the subset of state manager functionality the engine needs.
type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
	GetAccount(addr [20]byte) (*types.Account, error)
	Transfer(from, to [20]byte, amount *big.Int) error
}

// TokenLedger is the slice of the fungible-token contract surface the engine
// settles against: the allowance-checked pull and the vault balance read.
type TokenLedger interface {
	TransferFrom(spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(addr [20]byte) (*big.Int, error)
}

// VaultAddress derives the module account that accumulates settled funds. It
// is a fixed, keyless address: funds only leave it through operator tooling
// outside this ledger's scope.
func VaultAddress() [20]byte {
	var out [20]byte
	copy(out[:], ethcrypto.Keccak256([]byte("payway/storefront/vault/v1"))[12:])
	return out
}

// Engine owns the three storefront tables (items, customers, payments) and
// the vault balances, and exposes the mutation and query operations over
// them. Mutations are expected to be serialized by the caller; the engine
// performs no locking of its own.
type Engine struct {
	st      engineState
	token   TokenLedger
	emitter events.Emitter
	owner   [20]byte
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates a storefront engine. The owner is the sole identity
// allowed to extend the catalog; the vault accumulates settled funds.
func NewEngine(st engineState, token TokenLedger, owner [20]byte) *Engine {
	return &Engine{
		st:      st,
		token:   token,
		emitter: events.NoopEmitter{},
		owner:   owner,
		vault:   VaultAddress(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Owner returns the catalog owner identity.
func (e *Engine) Owner() [20]byte { return e.owner }

// Vault returns the module account holding settled funds.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) loadCount(key []byte) (uint64, error) {
	if e == nil || e.st == nil {
		return 0, ErrNilState
	}
	var count uint64
	if _, err := e.st.KVGet(key, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- Item catalog ---

// AddItem registers a new catalog entry and returns its identifier. Only the
// owner may call it; identifiers are dense and increase by exactly one per
// successful add.
func (e *Engine) AddItem(caller [20]byte, spec ItemSpec) (uint64, error) {
	if e == nil || e.st == nil {
		return 0, ErrNilState
	}
	if caller != e.owner {
		return 0, ErrUnauthorized
	}
	sanitized, err := SanitizeItemSpec(spec)
	if err != nil {
		return 0, err
	}
	count, err := e.loadCount(itemCountKey)
	if err != nil {
		return 0, err
	}
	id := count + 1
	item := &Item{
		ID:          id,
		Name:        sanitized.Name,
		Category:    sanitized.Category,
		TokenPrice:  sanitized.TokenPrice,
		NativePrice: sanitized.NativePrice,
		Stars:       sanitized.Stars,
		Grade:       sanitized.Grade,
		Description: sanitized.Description,
		ImageURL:    sanitized.ImageURL,
		Available:   sanitized.Available,
	}
	if err := e.st.KVPut(itemKey(id), item); err != nil {
		return 0, err
	}
	if err := e.st.KVPut(itemCountKey, id); err != nil {
		return 0, err
	}
	e.emit(events.ItemAdded{ID: id, Name: item.Name, Category: uint8(item.Category), Stars: item.Stars, Grade: uint8(item.Grade)})
	return id, nil
}

// Item returns the catalog entry with the given identifier.
func (e *Engine) Item(id uint64) (*Item, error) {
	count, err := e.loadCount(itemCountKey)
	if err != nil {
		return nil, err
	}
	if id == 0 || id > count {
		return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	item := new(Item)
	ok, err := e.st.KVGet(itemKey(id), item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
	}
	return item.Clone(), nil
}

// Items returns the full catalog in ascending identifier order.
func (e *Engine) Items() ([]*Item, error) {
	count, err := e.loadCount(itemCountKey)
	if err != nil {
		return nil, err
	}
	items := make([]*Item, 0, count)
	for id := uint64(1); id <= count; id++ {
		item, err := e.Item(id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CurrentItemID returns the number of items created so far, i.e. the highest
// assigned identifier.
func (e *Engine) CurrentItemID() (uint64, error) {
	return e.loadCount(itemCountKey)
}

// --- Customer registration ---

// Register stores or overwrites the external handle for the caller. The
// roster of registered addresses never grows a duplicate entry, however often
// an address re-registers.
func (e *Engine) Register(caller [20]byte, handle uint64) error {
	if e == nil || e.st == nil {
		return ErrNilState
	}
	existing := new(Customer)
	found, err := e.st.KVGet(customerKey(caller), existing)
	if err != nil {
		return err
	}
	customer := &Customer{Address: caller, Handle: handle, RegisteredAt: uint64(e.now())}
	if found {
		customer.RegisteredAt = existing.RegisteredAt
	}
	if err := e.st.KVPut(customerKey(caller), customer); err != nil {
		return err
	}
	if err := e.st.KVAppend(customerIndexKey, caller[:]); err != nil {
		return err
	}
	e.emit(events.CustomerRegistered{Address: caller, Handle: handle, First: !found})
	return nil
}

// Customers returns every address that has ever registered, in insertion
// order and without duplicates.
func (e *Engine) Customers() ([]*Customer, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	var raw [][]byte
	if err := e.st.KVGetList(customerIndexKey, &raw); err != nil {
		return nil, err
	}
	customers := make([]*Customer, 0, len(raw))
	for _, b := range raw {
		var addr [20]byte
		copy(addr[:], b)
		customer := new(Customer)
		ok, err := e.st.KVGet(customerKey(addr), customer)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		customers = append(customers, customer)
	}
	return customers, nil
}

// --- Payment recording ---

// PayNative settles a purchase in the native unit. The attached value moves
// from the caller's account into the vault and is recorded as-is; the listed
// price is informational and not cross-checked.
func (e *Engine) PayNative(caller [20]byte, itemID, handle, quantity uint64, note string, value *big.Int) (*Payment, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	if err := e.validatePayment(itemID, quantity); err != nil {
		return nil, err
	}
	if value == nil || value.Sign() <= 0 {
		return nil, fmt.Errorf("%w: attached value must be positive", ErrInvalidPayment)
	}
	amount := new(big.Int).Set(value)
	if err := e.st.Transfer(caller, e.vault, amount); err != nil {
		return nil, err
	}
	return e.appendPayment(caller, itemID, handle, quantity, note, CurrencyNative, amount)
}

// PayToken settles a purchase in the fungible token by pulling the approved
// amount from the caller into the vault. A failed pull (insufficient balance
// or allowance) aborts before anything is appended.
func (e *Engine) PayToken(caller [20]byte, itemID, handle uint64, amount *big.Int, quantity uint64, note string) (*Payment, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	if e.token == nil {
		return nil, ErrNilTokenLedger
	}
	if err := e.validatePayment(itemID, quantity); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: token amount must be positive", ErrInvalidPayment)
	}
	pulled := new(big.Int).Set(amount)
	if err := e.token.TransferFrom(e.vault, caller, e.vault, pulled); err != nil {
		return nil, err
	}
	return e.appendPayment(caller, itemID, handle, quantity, note, CurrencyToken, pulled)
}

func (e *Engine) validatePayment(itemID, quantity uint64) error {
	if _, err := e.Item(itemID); err != nil {
		return err
	}
	if quantity == 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidPayment)
	}
	return nil
}

func (e *Engine) appendPayment(payer [20]byte, itemID, handle, quantity uint64, note string, currency Currency, amount *big.Int) (*Payment, error) {
	count, err := e.loadCount(paymentCountKey)
	if err != nil {
		return nil, err
	}
	seq := count + 1
	payment := &Payment{
		Sequence: seq,
		Payer:    payer,
		ItemID:   itemID,
		Handle:   handle,
		Quantity: quantity,
		Note:     note,
		Currency: currency,
		Amount:   amount,
		PaidAt:   e.now(),
	}
	if err := e.st.KVPut(paymentKey(seq), toStoredPayment(payment)); err != nil {
		return nil, err
	}
	if err := e.st.KVPut(paymentCountKey, seq); err != nil {
		return nil, err
	}
	if err := e.st.KVAppend(payerIndexKey(payer), seqBytes(seq)); err != nil {
		return nil, err
	}
	e.emit(events.PaymentRecorded{
		Sequence: seq,
		Payer:    payer,
		ItemID:   itemID,
		Currency: currency.String(),
		Amount:   new(big.Int).Set(amount),
		Quantity: quantity,
	})
	return payment.Clone(), nil
}

// NativeBalance returns the native units accumulated in the vault.
func (e *Engine) NativeBalance() (*big.Int, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	account, err := e.st.GetAccount(e.vault)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// TokenBalance returns the token amount accumulated in the vault.
func (e *Engine) TokenBalance() (*big.Int, error) {
	if e == nil {
		return nil, ErrNilState
	}
	if e.token == nil {
		return nil, ErrNilTokenLedger
	}
	return e.token.BalanceOf(e.vault)
}

func (e *Engine) loadPayment(seq uint64) (*Payment, error) {
	stored := new(storedPayment)
	ok, err := e.st.KVGet(paymentKey(seq), stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("storefront: payment %d missing from log", seq)
	}
	return stored.toPayment(), nil
}

// Payments returns the full payment log in append order.
func (e *Engine) Payments() ([]*Payment, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	count, err := e.loadCount(paymentCountKey)
	if err != nil {
		return nil, err
	}
	payments := make([]*Payment, 0, count)
	for seq := uint64(1); seq <= count; seq++ {
		payment, err := e.loadPayment(seq)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}

// PaymentsOf returns the log entries whose payer matches the given address,
// preserving append order.
func (e *Engine) PaymentsOf(payer [20]byte) ([]*Payment, error) {
	if e == nil || e.st == nil {
		return nil, ErrNilState
	}
	var raw [][]byte
	if err := e.st.KVGetList(payerIndexKey(payer), &raw); err != nil {
		return nil, err
	}
	payments := make([]*Payment, 0, len(raw))
	for _, b := range raw {
		if len(b) != 8 {
			continue
		}
		payment, err := e.loadPayment(binary.BigEndian.Uint64(b))
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, nil
}
