package bond

import "errors"

var (
	errNilState   = errors.New("bond engine: state not configured")
	errNilGateway = errors.New("bond engine: settlement gateway not configured")
)

var (
	// ErrUnauthorized is returned when an administrator-only operation is
	// invoked by any other account.
	ErrUnauthorized = errors.New("bond: caller is not the administrator")
	// ErrUnknownProduct is returned for product identifiers that were never
	// allocated.
	ErrUnknownProduct = errors.New("bond: unknown product")
	// ErrAlreadyRepaid is returned when a product's final value has already
	// been set.
	ErrAlreadyRepaid = errors.New("bond: product already repaid")
	// ErrNotRepaid is returned when a bullet claim or residue withdrawal is
	// attempted before funding.
	ErrNotRepaid = errors.New("bond: product not repaid")
	// ErrZeroBalanceClaim is returned when the holder has nothing to redeem.
	ErrZeroBalanceClaim = errors.New("bond: nothing to claim")
	// ErrInsufficientBalance is returned when a transfer or burn exceeds the
	// holder's share balance.
	ErrInsufficientBalance = errors.New("bond: insufficient share balance")
	// ErrLengthMismatch is returned when batch mint inputs differ in length.
	ErrLengthMismatch = errors.New("bond: holders and amounts length mismatch")
	// ErrTransferRejected wraps any failure reported by the settlement token.
	ErrTransferRejected = errors.New("bond: settlement transfer rejected")

	ErrInvalidAmount = errors.New("bond: invalid amount")
	ErrInvalidWindow = errors.New("bond: end timestamp before start timestamp")
	ErrZeroAddress   = errors.New("bond: zero address")
	ErrNotApproved   = errors.New("bond: caller is neither owner nor approved operator")
	ErrKindMismatch  = errors.New("bond: operation not supported for product kind")
	ErrOverflow      = errors.New("bond: arithmetic overflow")
	ErrSelfApproval  = errors.New("bond: cannot set approval status for self")
)
