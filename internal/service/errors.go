package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrOwnListing          = errors.New("cannot buy your own listing")
	ErrListingUnavailable  = errors.New("listing is not available")
	ErrAlreadyDisputed     = errors.New("purchase is already disputed")
	ErrDisputeWindowClosed = errors.New("dispute window has closed; escrow may have already been released")
	ErrInvalidReason       = errors.New("invalid dispute reason")
)

// Rejection is a guard failure with a message fit to show the user. It is
// never retried automatically.
type Rejection struct {
	Code    string
	Message string
}

func (r *Rejection) Error() string {
	return r.Message
}

func rejectf(code, format string, args ...interface{}) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}
