package storefront

import (
	"fmt"
	"math/big"
	"strings"
)

// Category classifies a catalog item into one of the fixed product lines.
type Category uint8

const (
	CategoryGeneral Category = iota
	CategoryPremium
	CategoryLimited
	CategoryBundle
)

// Valid reports whether the category value is within the supported range.
func (c Category) Valid() bool {
	return c <= CategoryBundle
}

// Grade is the quality tier assigned by the catalog owner.
type Grade uint8

const (
	GradeStandard Grade = iota
	GradeSelect
	GradeReserve
)

// Valid reports whether the grade value is within the supported range.
func (g Grade) Valid() bool {
	return g <= GradeReserve
}

// MaxStars caps the star rating an item can carry.
const MaxStars = 5

// Currency identifies the settlement rail a payment used.
type Currency uint8

const (
	CurrencyNative Currency = iota
	CurrencyToken
)

func (c Currency) String() string {
	switch c {
	case CurrencyNative:
		return "native"
	case CurrencyToken:
		return "token"
	default:
		return fmt.Sprintf("currency(%d)", uint8(c))
	}
}

// Item is a catalog entry. The identifier is assigned by the engine, dense
// from 1, and never reused; records are immutable once created.
type Item struct {
	ID          uint64
	Name        string
	Category    Category
	TokenPrice  *big.Int
	NativePrice *big.Int
	Stars       uint8
	Grade       Grade
	Description string
	ImageURL    string
	Available   bool
}

// Clone returns a deep copy so callers can safely mutate the result without
// affecting the stored instance.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	clone.TokenPrice = cloneBigInt(i.TokenPrice)
	clone.NativePrice = cloneBigInt(i.NativePrice)
	return &clone
}

// ItemSpec carries the caller-supplied fields of an item; the engine assigns
// the identifier.
type ItemSpec struct {
	Name        string
	Category    Category
	TokenPrice  *big.Int
	NativePrice *big.Int
	Stars       uint8
	Grade       Grade
	Description string
	ImageURL    string
	Available   bool
}

// SanitizeItemSpec validates and normalises an item spec, returning a copy
// with trimmed text and non-nil price fields. The original value is not
// mutated.
func SanitizeItemSpec(spec ItemSpec) (ItemSpec, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.Name == "" {
		return ItemSpec{}, fmt.Errorf("%w: name required", ErrInvalidItem)
	}
	if !spec.Category.Valid() {
		return ItemSpec{}, fmt.Errorf("%w: unknown category %d", ErrInvalidItem, spec.Category)
	}
	if !spec.Grade.Valid() {
		return ItemSpec{}, fmt.Errorf("%w: unknown grade %d", ErrInvalidItem, spec.Grade)
	}
	if spec.Stars > MaxStars {
		return ItemSpec{}, fmt.Errorf("%w: stars must be <= %d", ErrInvalidItem, MaxStars)
	}
	if spec.TokenPrice != nil && spec.TokenPrice.Sign() < 0 {
		return ItemSpec{}, fmt.Errorf("%w: token price must be non-negative", ErrInvalidItem)
	}
	if spec.NativePrice != nil && spec.NativePrice.Sign() < 0 {
		return ItemSpec{}, fmt.Errorf("%w: native price must be non-negative", ErrInvalidItem)
	}
	spec.TokenPrice = cloneBigInt(spec.TokenPrice)
	spec.NativePrice = cloneBigInt(spec.NativePrice)
	spec.Description = strings.TrimSpace(spec.Description)
	spec.ImageURL = strings.TrimSpace(spec.ImageURL)
	return spec, nil
}

// Customer records the external handle an address registered with. A repeat
// registration overwrites the handle; the first registration timestamp is
// retained.
type Customer struct {
	Address      [20]byte
	Handle       uint64
	RegisteredAt uint64
}

// Payment is one entry of the append-only payment log. Sequence is the
// 1-based position in the log.
type Payment struct {
	Sequence uint64
	Payer    [20]byte
	ItemID   uint64
	Handle   uint64
	Quantity uint64
	Note     string
	Currency Currency
	Amount   *big.Int
	PaidAt   int64
}

// Clone returns a deep copy to avoid callers mutating shared pointers.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Amount = cloneBigInt(p.Amount)
	return &clone
}

// storedPayment mirrors Payment with RLP-friendly field types.
type storedPayment struct {
	Sequence uint64
	Payer    [20]byte
	ItemID   uint64
	Handle   uint64
	Quantity uint64
	Note     string
	Currency uint8
	Amount   *big.Int
	PaidAt   uint64
}

func toStoredPayment(p *Payment) *storedPayment {
	return &storedPayment{
		Sequence: p.Sequence,
		Payer:    p.Payer,
		ItemID:   p.ItemID,
		Handle:   p.Handle,
		Quantity: p.Quantity,
		Note:     p.Note,
		Currency: uint8(p.Currency),
		Amount:   cloneBigInt(p.Amount),
		PaidAt:   uint64(p.PaidAt),
	}
}

func (s *storedPayment) toPayment() *Payment {
	return &Payment{
		Sequence: s.Sequence,
		Payer:    s.Payer,
		ItemID:   s.ItemID,
		Handle:   s.Handle,
		Quantity: s.Quantity,
		Note:     s.Note,
		Currency: Currency(s.Currency),
		Amount:   cloneBigInt(s.Amount),
		PaidAt:   int64(s.PaidAt),
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
