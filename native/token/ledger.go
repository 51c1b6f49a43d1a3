package token

import (
	"math/big"

	"payway/core/events"
)

// Storage abstracts the subset of state manager functionality required by the
// token ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Ledger is a standard fungible-token balance ledger with the allowance and
// transfer-from capability the storefront engine settles against. Minting is
// restricted to the authority fixed at construction.
type Ledger struct {
	st        Storage
	emitter   events.Emitter
	authority [20]byte
}

// NewLedger creates a token ledger backed by the provided storage. The
// authority is the sole identity allowed to mint.
func NewLedger(st Storage, authority [20]byte) *Ledger {
	return &Ledger{st: st, emitter: events.NoopEmitter{}, authority: authority}
}

// SetEmitter configures the event emitter used by the ledger. Passing nil
// resets the emitter to a no-op implementation.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(event events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(event)
}

func (l *Ledger) loadAmount(key []byte) (*big.Int, error) {
	if l == nil || l.st == nil {
		return nil, ErrNilState
	}
	amount := new(big.Int)
	ok, err := l.st.KVGet(key, amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return amount, nil
}

func (l *Ledger) storeAmount(key []byte, amount *big.Int) error {
	if l == nil || l.st == nil {
		return ErrNilState
	}
	return l.st.KVPut(key, amount)
}

// BalanceOf returns the token balance held by the given address.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	return l.loadAmount(balanceKey(addr))
}

// TotalSupply returns the total amount of tokens minted so far.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	return l.loadAmount(supplyKey)
}

// Mint credits freshly created tokens to the recipient. Only the mint
// authority may call it.
func (l *Ledger) Mint(caller, to [20]byte, amount *big.Int) error {
	if caller != l.authority {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.storeAmount(balanceKey(to), new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := l.storeAmount(supplyKey, new(big.Int).Add(supply, amount)); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves tokens directly from one holder to another.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the allowance a spender may pull from the owner's balance.
// Approving zero clears a previous allowance.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if err := l.storeAmount(allowanceKey(owner, spender), amount); err != nil {
		return err
	}
	l.emit(events.TokenApproval{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

// Allowance returns the remaining amount the spender may pull from the owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	return l.loadAmount(allowanceKey(owner, spender))
}

// TransferFrom pulls tokens from the owner to the recipient on behalf of the
// spender, consuming allowance. The allowance check runs before any balance
// movement so a failed pull leaves both parties untouched.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	allowance, err := l.Allowance(from, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(from, to, amount); err != nil {
		return err
	}
	if err := l.storeAmount(allowanceKey(from, spender), new(big.Int).Sub(allowance, amount)); err != nil {
		return err
	}
	l.emit(events.TokenTransfer{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// move debits from and credits to. A self-move is rejected: the debit and
// credit would target the same stored balance and the second write would
// undo the first.
func (l *Ledger) move(from, to [20]byte, amount *big.Int) error {
	fromBalance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if from == to {
		return ErrSelfTransfer
	}
	toBalance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.storeAmount(balanceKey(from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.storeAmount(balanceKey(to), new(big.Int).Add(toBalance, amount))
}
