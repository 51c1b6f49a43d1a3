package storefront_test

import (
	"errors"
	"math/big"
	"testing"

	"payway/core/events"
	"payway/core/state"
	"payway/native/storefront"
	"payway/native/token"
	"payway/storage"
)

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(e events.Event) {
	c.events = append(c.events, e)
}

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

type harness struct {
	engine  *storefront.Engine
	manager *state.Manager
	token   *token.Ledger
	owner   [20]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	manager := state.NewManager(db)
	owner := addr(0xAA)
	ledger := token.NewLedger(manager, owner)
	engine := storefront.NewEngine(manager, ledger, owner)
	engine.SetNowFunc(func() int64 { return 1700000000 })
	return &harness{engine: engine, manager: manager, token: ledger, owner: owner}
}

func itemSpec(name string) storefront.ItemSpec {
	return storefront.ItemSpec{
		Name:        name,
		Category:    storefront.CategoryGeneral,
		TokenPrice:  big.NewInt(10000),
		NativePrice: big.NewInt(3_000_000_000_000_000_000),
		Stars:       1,
		Grade:       storefront.GradeSelect,
		Description: "Level 1",
		Available:   true,
	}
}

func TestAddItemAssignsDenseIDs(t *testing.T) {
	h := newHarness(t)

	for want := uint64(1); want <= 3; want++ {
		id, err := h.engine.AddItem(h.owner, itemSpec("item"))
		if err != nil {
			t.Fatalf("add item %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("id = %d, want %d", id, want)
		}
	}
	current, err := h.engine.CurrentItemID()
	if err != nil {
		t.Fatalf("current id: %v", err)
	}
	if current != 3 {
		t.Fatalf("current id = %d, want 3", current)
	}

	items, err := h.engine.Items()
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if uint64(len(items)) != current {
		t.Fatalf("len(items) = %d, current = %d", len(items), current)
	}
	for i, item := range items {
		if item.ID != uint64(i)+1 {
			t.Fatalf("items[%d].ID = %d", i, item.ID)
		}
	}
}

func TestAddItemRejectsNonOwner(t *testing.T) {
	h := newHarness(t)

	if _, err := h.engine.AddItem(addr(0x01), itemSpec("widget")); !errors.Is(err, storefront.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	current, err := h.engine.CurrentItemID()
	if err != nil {
		t.Fatalf("current id: %v", err)
	}
	if current != 0 {
		t.Fatalf("rejected add changed counter to %d", current)
	}
}

func TestAddItemValidatesSpec(t *testing.T) {
	h := newHarness(t)

	cases := map[string]storefront.ItemSpec{
		"empty name":   {Category: storefront.CategoryGeneral},
		"bad category": {Name: "x", Category: storefront.Category(200)},
		"bad grade":    {Name: "x", Grade: storefront.Grade(9)},
		"stars cap":    {Name: "x", Stars: storefront.MaxStars + 1},
		"neg price":    {Name: "x", NativePrice: big.NewInt(-1)},
	}
	for name, spec := range cases {
		if _, err := h.engine.AddItem(h.owner, spec); !errors.Is(err, storefront.ErrInvalidItem) {
			t.Fatalf("%s: expected ErrInvalidItem, got %v", name, err)
		}
	}
}

func TestItemNotFound(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddItem(h.owner, itemSpec("only")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := h.engine.Item(0); !errors.Is(err, storefront.ErrItemNotFound) {
		t.Fatalf("id 0: %v", err)
	}
	if _, err := h.engine.Item(2); !errors.Is(err, storefront.ErrItemNotFound) {
		t.Fatalf("id 2: %v", err)
	}
	item, err := h.engine.Item(1)
	if err != nil {
		t.Fatalf("id 1: %v", err)
	}
	if item.Name != "only" {
		t.Fatalf("name = %q", item.Name)
	}
}

func TestRegisterOverwritesWithoutRosterDuplicates(t *testing.T) {
	h := newHarness(t)
	caller := addr(0x01)

	if err := h.engine.Register(caller, 1111); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.engine.Register(caller, 9999); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	customers, err := h.engine.Customers()
	if err != nil {
		t.Fatalf("customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("roster length = %d, want 1", len(customers))
	}
	if customers[0].Handle != 9999 {
		t.Fatalf("handle = %d, want latest registration", customers[0].Handle)
	}
	if customers[0].Address != caller {
		t.Fatalf("address mismatch")
	}
}

func TestCustomersInsertionOrder(t *testing.T) {
	h := newHarness(t)
	for i, handle := range []uint64{1111, 2222, 3333} {
		if err := h.engine.Register(addr(byte(i+1)), handle); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	customers, err := h.engine.Customers()
	if err != nil {
		t.Fatalf("customers: %v", err)
	}
	if len(customers) != 3 {
		t.Fatalf("roster length = %d", len(customers))
	}
	for i, want := range []uint64{1111, 2222, 3333} {
		if customers[i].Handle != want {
			t.Fatalf("customers[%d].Handle = %d, want %d", i, customers[i].Handle, want)
		}
	}
}

func TestPayNativeMovesValueIntoVault(t *testing.T) {
	h := newHarness(t)
	payer := addr(0x01)
	price := big.NewInt(3_000_000_000_000_000_000)

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.manager.Credit(payer, new(big.Int).Mul(price, big.NewInt(2))); err != nil {
		t.Fatalf("credit: %v", err)
	}

	payment, err := h.engine.PayNative(payer, 1, 1111, 1, "need packing", price)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if payment.Currency != storefront.CurrencyNative {
		t.Fatalf("currency = %v", payment.Currency)
	}
	if payment.Amount.Cmp(price) != 0 {
		t.Fatalf("amount = %s", payment.Amount)
	}

	balance, err := h.engine.NativeBalance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(price) != 0 {
		t.Fatalf("vault balance = %s, want %s", balance, price)
	}

	payerAcc, err := h.manager.GetAccount(payer)
	if err != nil {
		t.Fatalf("payer account: %v", err)
	}
	if payerAcc.Balance.Cmp(price) != 0 {
		t.Fatalf("payer balance = %s", payerAcc.Balance)
	}
}

func TestPayNativeInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	payer := addr(0x01)
	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err := h.engine.PayNative(payer, 1, 1111, 1, "", big.NewInt(100))
	if !errors.Is(err, state.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	payments, err := h.engine.Payments()
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("failed payment appended to log")
	}
}

func TestPayTokenPullsApprovedAmount(t *testing.T) {
	h := newHarness(t)
	payer := addr(0x01)
	amount := big.NewInt(10000)

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.token.Mint(h.owner, payer, big.NewInt(50000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.token.Approve(payer, h.engine.Vault(), amount); err != nil {
		t.Fatalf("approve: %v", err)
	}

	payment, err := h.engine.PayToken(payer, 1, 1111, amount, 1, "need packing")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if payment.Currency != storefront.CurrencyToken {
		t.Fatalf("currency = %v", payment.Currency)
	}

	balance, err := h.engine.TokenBalance()
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Cmp(amount) != 0 {
		t.Fatalf("vault token balance = %s, want %s", balance, amount)
	}
}

func TestPayTokenWithoutAllowanceAppendsNothing(t *testing.T) {
	h := newHarness(t)
	payer := addr(0x01)

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.token.Mint(h.owner, payer, big.NewInt(50000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err := h.engine.PayToken(payer, 1, 1111, big.NewInt(10000), 1, "")
	if !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	payments, err := h.engine.Payments()
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("failed pull appended to log")
	}
	balance, err := h.engine.TokenBalance()
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("vault token balance = %s, want 0", balance)
	}
}

func TestPaymentValidation(t *testing.T) {
	h := newHarness(t)
	payer := addr(0x01)
	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := h.engine.PayNative(payer, 5, 1111, 1, "", big.NewInt(1)); !errors.Is(err, storefront.ErrItemNotFound) {
		t.Fatalf("unknown item: %v", err)
	}
	if _, err := h.engine.PayNative(payer, 1, 1111, 0, "", big.NewInt(1)); !errors.Is(err, storefront.ErrInvalidPayment) {
		t.Fatalf("zero quantity: %v", err)
	}
	if _, err := h.engine.PayNative(payer, 1, 1111, 1, "", nil); !errors.Is(err, storefront.ErrInvalidPayment) {
		t.Fatalf("nil value: %v", err)
	}
	if _, err := h.engine.PayToken(payer, 1, 1111, big.NewInt(0), 1, ""); !errors.Is(err, storefront.ErrInvalidPayment) {
		t.Fatalf("zero token amount: %v", err)
	}
}

func TestPaymentsOfIsSubsequence(t *testing.T) {
	h := newHarness(t)
	w1, w2 := addr(0x01), addr(0x02)
	amount := big.NewInt(10000)

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, payer := range [][20]byte{w1, w2} {
		if err := h.token.Mint(h.owner, payer, big.NewInt(100000)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	order := []struct {
		payer  [20]byte
		handle uint64
	}{
		{w1, 1111}, {w2, 2222}, {w1, 1111},
	}
	for i, step := range order {
		if err := h.token.Approve(step.payer, h.engine.Vault(), amount); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
		if _, err := h.engine.PayToken(step.payer, 1, step.handle, amount, 1, "need packing"); err != nil {
			t.Fatalf("pay %d: %v", i, err)
		}
	}

	all, err := h.engine.Payments()
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("log length = %d", len(all))
	}

	ofW1, err := h.engine.PaymentsOf(w1)
	if err != nil {
		t.Fatalf("payments of: %v", err)
	}
	if len(ofW1) != 2 {
		t.Fatalf("w1 payments = %d, want 2", len(ofW1))
	}
	filtered := make([]*storefront.Payment, 0, 2)
	for _, p := range all {
		if p.Payer == w1 {
			filtered = append(filtered, p)
		}
	}
	for i := range filtered {
		if filtered[i].Sequence != ofW1[i].Sequence {
			t.Fatalf("subsequence mismatch at %d: %d != %d", i, filtered[i].Sequence, ofW1[i].Sequence)
		}
	}

	none, err := h.engine.PaymentsOf(addr(0x99))
	if err != nil {
		t.Fatalf("payments of stranger: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("stranger payments = %d", len(none))
	}
}

func TestBalancesAccumulateAcrossCurrencies(t *testing.T) {
	h := newHarness(t)
	w1, w2 := addr(0x01), addr(0x02)
	tokenAmount := big.NewInt(10000)
	nativePrice := big.NewInt(3_000_000_000_000_000_000)

	if _, err := h.engine.AddItem(h.owner, itemSpec("Gorllia")); err != nil {
		t.Fatalf("add item 1: %v", err)
	}
	if _, err := h.engine.AddItem(h.owner, itemSpec("Blue Dream")); err != nil {
		t.Fatalf("add item 2: %v", err)
	}
	for i, reg := range []struct {
		caller [20]byte
		handle uint64
	}{{w1, 1111}, {w2, 2222}, {addr(0x03), 3333}} {
		if err := h.engine.Register(reg.caller, reg.handle); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}

	if err := h.token.Mint(h.owner, w1, big.NewInt(50000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.token.Approve(w1, h.engine.Vault(), tokenAmount); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := h.engine.PayToken(w1, 1, 1111, tokenAmount, 1, "need packing"); err != nil {
		t.Fatalf("token pay: %v", err)
	}

	tokenBalance, err := h.engine.TokenBalance()
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if tokenBalance.Cmp(tokenAmount) != 0 {
		t.Fatalf("token balance = %s, want %s", tokenBalance, tokenAmount)
	}
	payments, _ := h.engine.Payments()
	if len(payments) != 1 {
		t.Fatalf("log length = %d, want 1", len(payments))
	}

	if err := h.manager.Credit(w2, nativePrice); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := h.engine.PayNative(w2, 1, 2222, 1, "", nativePrice); err != nil {
		t.Fatalf("native pay: %v", err)
	}
	nativeBalance, err := h.engine.NativeBalance()
	if err != nil {
		t.Fatalf("native balance: %v", err)
	}
	if nativeBalance.Cmp(nativePrice) != 0 {
		t.Fatalf("native balance = %s, want %s", nativeBalance, nativePrice)
	}
	payments, _ = h.engine.Payments()
	if len(payments) != 2 {
		t.Fatalf("log length = %d, want 2", len(payments))
	}

	item, err := h.engine.Item(1)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.Name != "Gorllia" {
		t.Fatalf("item name = %q", item.Name)
	}
}

func TestEngineEmitsEvents(t *testing.T) {
	h := newHarness(t)
	emitter := &capturingEmitter{}
	h.engine.SetEmitter(emitter)
	payer := addr(0x01)

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.engine.Register(payer, 1111); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := h.manager.Credit(payer, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := h.engine.PayNative(payer, 1, 1111, 1, "", big.NewInt(100)); err != nil {
		t.Fatalf("pay: %v", err)
	}

	if len(emitter.events) != 3 {
		t.Fatalf("event count = %d, want 3", len(emitter.events))
	}
	wantTypes := []string{events.TypeItemAdded, events.TypeCustomerRegistered, events.TypePaymentRecorded}
	for i, want := range wantTypes {
		if emitter.events[i].EventType() != want {
			t.Fatalf("event[%d] = %s, want %s", i, emitter.events[i].EventType(), want)
		}
	}
}

func TestVaultCannotPayItself(t *testing.T) {
	h := newHarness(t)
	vault := h.engine.Vault()

	if _, err := h.engine.AddItem(h.owner, itemSpec("flower")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.manager.Credit(vault, big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := h.engine.PayNative(vault, 1, 1111, 1, "", big.NewInt(100))
	if !errors.Is(err, state.ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	balance, err := h.engine.NativeBalance()
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("vault balance inflated to %s", balance)
	}

	if err := h.token.Mint(h.owner, vault, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := h.token.Approve(vault, vault, big.NewInt(100)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	_, err = h.engine.PayToken(vault, 1, 1111, big.NewInt(100), 1, "")
	if !errors.Is(err, token.ErrSelfTransfer) {
		t.Fatalf("expected token ErrSelfTransfer, got %v", err)
	}

	payments, err := h.engine.Payments()
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	if len(payments) != 0 {
		t.Fatalf("self payment appended to log")
	}
}
