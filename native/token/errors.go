package token

import "errors"

var (
	ErrNilState              = errors.New("token: state not configured")
	ErrUnauthorized          = errors.New("token: unauthorized")
	ErrInvalidAmount         = errors.New("token: invalid amount")
	ErrSelfTransfer          = errors.New("token: transfer to self")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)
