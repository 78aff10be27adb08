package server

import (
	"errors"
	"net/http"

	"github.com/elysia-dev/elysia-korea-pf/native/bond"
	nativecommon "github.com/elysia-dev/elysia-korea-pf/native/common"
	"github.com/elysia-dev/elysia-korea-pf/native/erc20"
)

// statusFor maps engine errors to HTTP statuses. Transfer failures are checked
// first since they wrap the token engine's own validation errors.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, bond.ErrTransferRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, bond.ErrUnauthorized),
		errors.Is(err, bond.ErrNotApproved),
		errors.Is(err, erc20.ErrUnauthorizedMinter):
		return http.StatusForbidden
	case errors.Is(err, bond.ErrUnknownProduct),
		errors.Is(err, erc20.ErrUnknownToken):
		return http.StatusNotFound
	case errors.Is(err, bond.ErrAlreadyRepaid),
		errors.Is(err, bond.ErrNotRepaid),
		errors.Is(err, bond.ErrZeroBalanceClaim),
		errors.Is(err, erc20.ErrTokenExists):
		return http.StatusConflict
	case errors.Is(err, bond.ErrInsufficientBalance),
		errors.Is(err, bond.ErrLengthMismatch),
		errors.Is(err, bond.ErrInvalidAmount),
		errors.Is(err, bond.ErrInvalidWindow),
		errors.Is(err, bond.ErrZeroAddress),
		errors.Is(err, bond.ErrKindMismatch),
		errors.Is(err, bond.ErrOverflow),
		errors.Is(err, bond.ErrSelfApproval),
		errors.Is(err, erc20.ErrInsufficientBalance),
		errors.Is(err, erc20.ErrInsufficientAllowance),
		errors.Is(err, erc20.ErrInvalidAmount),
		errors.Is(err, erc20.ErrZeroAddress),
		errors.Is(err, erc20.ErrInvalidSymbol):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
