/*
SPDX-License-Identifier: Apache-2.0
*/

package engine

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors.
type Kind int

const (
	InternalError      Kind = iota // storage or encoding failure
	ValidationError                // bad parameters, rejected before any state change
	StateError                     // wrong lifecycle state
	AuthorizationError             // caller lacks role or ownership
	LedgerError                    // external transfer rejected
	NotFoundError                  // unknown auction or asset
)

func (k Kind) String() string {
	switch k {
	case ValidationError:
		return "ValidationError"
	case StateError:
		return "StateError"
	case AuthorizationError:
		return "AuthorizationError"
	case LedgerError:
		return "LedgerError"
	case NotFoundError:
		return "NotFoundError"
	default:
		return "InternalError"
	}
}

// Error is a classified engine failure. Two errors match under errors.Is
// when their codes are equal, so the sentinels below can be compared
// against wrapped failures.
type Error struct {
	Kind Kind
	Code string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidPricing    = &Error{Kind: ValidationError, Code: "InvalidPricing"}
	ErrInvalidDuration   = &Error{Kind: ValidationError, Code: "InvalidDuration"}
	ErrInvalidCaller     = &Error{Kind: ValidationError, Code: "InvalidCaller"}
	ErrAuctionNotActive  = &Error{Kind: StateError, Code: "AuctionNotActive"}
	ErrDuplicateListing  = &Error{Kind: StateError, Code: "DuplicateListing"}
	ErrNotAssetOwner     = &Error{Kind: AuthorizationError, Code: "NotAssetOwner"}
	ErrNotAuthorized     = &Error{Kind: AuthorizationError, Code: "NotAuthorized"}
	ErrEscrowNotApproved = &Error{Kind: AuthorizationError, Code: "EscrowNotApproved"}

	ErrInsufficientFunds     = &Error{Kind: LedgerError, Code: "InsufficientFunds"}
	ErrInsufficientAllowance = &Error{Kind: LedgerError, Code: "InsufficientAllowance"}
	ErrTransferBlocked       = &Error{Kind: LedgerError, Code: "TransferBlocked"}
	ErrPaymentFailed         = &Error{Kind: LedgerError, Code: "PaymentFailed"}
	ErrAssetTransferFailed   = &Error{Kind: LedgerError, Code: "AssetTransferFailed"}

	ErrAuctionNotFound = &Error{Kind: NotFoundError, Code: "AuctionNotFound"}
	ErrAssetNotFound   = &Error{Kind: NotFoundError, Code: "AssetNotFound"}
	ErrReceiptNotFound = &Error{Kind: NotFoundError, Code: "ReceiptNotFound"}

	ErrStorage = &Error{Kind: InternalError, Code: "Storage"}
)

// wrapError returns a copy of sentinel carrying a formatted cause.
func wrapError(sentinel *Error, format string, args ...interface{}) error {
	return &Error{Kind: sentinel.Kind, Code: sentinel.Code, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of an engine error, InternalError for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// CodeOf returns the code of an engine error, empty for anything else.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
