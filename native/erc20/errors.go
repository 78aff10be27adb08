package erc20

import "errors"

var errNilState = errors.New("erc20 engine: state not configured")

var (
	ErrUnknownToken          = errors.New("erc20: unknown token")
	ErrTokenExists           = errors.New("erc20: token already registered")
	ErrUnauthorizedMinter    = errors.New("erc20: caller is not the minter")
	ErrInsufficientBalance   = errors.New("erc20: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("erc20: insufficient allowance")
	ErrInvalidAmount         = errors.New("erc20: invalid amount")
	ErrZeroAddress           = errors.New("erc20: zero address")
	ErrInvalidSymbol         = errors.New("erc20: symbol must not be empty")
)
