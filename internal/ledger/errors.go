package ledger

import "errors"

// Sentinel errors returned by the store, registry and engine. Callers match
// them with errors.Is; the HTTP layer maps them to response codes.
var (
	// ErrNotFound is returned when an account lookup misses.
	ErrNotFound = errors.New("account not found")

	// ErrWriteFailure wraps a storage-layer write rejection.
	ErrWriteFailure = errors.New("ledger write failed")

	// ErrVersionConflict is returned by Put when the record's version no
	// longer matches the stored one (a concurrent writer got there first).
	ErrVersionConflict = errors.New("ledger version conflict")

	// ErrInvalidAmount is returned when an amount is not positive or not
	// representable at the ledger's two-decimal precision.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when a withdrawal or transfer would
	// take the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrSelfTransfer is returned when the transfer target is the sender's
	// own account number.
	ErrSelfTransfer = errors.New("cannot transfer to own account")

	// ErrRecipientNotFound is returned when the transfer target account
	// number does not resolve.
	ErrRecipientNotFound = errors.New("recipient account not found")

	// ErrDuplicateLogin is returned by Create when the login identifier is
	// already bound to another account.
	ErrDuplicateLogin = errors.New("login already registered")

	// ErrPartialTransfer reports a transfer that debited the sender but
	// could neither credit the recipient nor roll the debit back. It is
	// fatal and requires operator reconciliation; it is never returned
	// while the ledger is still consistent.
	ErrPartialTransfer = errors.New("partial transfer: manual reconciliation required")
)
