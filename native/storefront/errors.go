package storefront

import "errors"

var (
	ErrNilState       = errors.New("storefront: state not configured")
	ErrNilTokenLedger = errors.New("storefront: token ledger not configured")
	ErrUnauthorized   = errors.New("storefront: unauthorized")
	ErrItemNotFound   = errors.New("storefront: item not found")
	ErrInvalidItem    = errors.New("storefront: invalid item")
	ErrInvalidPayment = errors.New("storefront: invalid payment")
)
