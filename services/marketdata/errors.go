package marketdata

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider call failures.
type ErrorKind int

const (
	ErrKindNetwork     ErrorKind = iota // transport-level failure
	ErrKindBadResponse                  // non-2xx status or malformed payload
	ErrKindCircuitOpen                  // breaker rejected the call without a network attempt
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindNetwork:
		return "network"
	case ErrKindBadResponse:
		return "bad_response"
	case ErrKindCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// MarketError is the error type returned by all Client calls. Callers treat
// every kind as transient: the affected symbol is skipped for the current
// tick and retried on the next one.
type MarketError struct {
	Kind     ErrorKind
	Endpoint string
	Err      error
}

func (e *MarketError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market data %s error (%s): %v", e.Kind, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("market data %s error (%s)", e.Kind, e.Endpoint)
}

func (e *MarketError) Unwrap() error {
	return e.Err
}

func newMarketError(kind ErrorKind, endpoint string, err error) *MarketError {
	return &MarketError{Kind: kind, Endpoint: endpoint, Err: err}
}

// IsCircuitOpen reports whether err is a breaker fast-fail.
func IsCircuitOpen(err error) bool {
	var me *MarketError
	return errors.As(err, &me) && me.Kind == ErrKindCircuitOpen
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var me *MarketError
	return errors.As(err, &me) && me.Kind == ErrKindNetwork
}

// IsBadResponse reports whether err is a provider response failure.
func IsBadResponse(err error) bool {
	var me *MarketError
	return errors.As(err, &me) && me.Kind == ErrKindBadResponse
}
