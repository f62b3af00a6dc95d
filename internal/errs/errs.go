// Package errs provides the domain error taxonomy shared by the registry,
// router and gateways.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions that carry no extra context.
var (
	ErrNotConnected     = errors.New("gateway not connected")
	ErrAlreadyConnected = errors.New("gateway already connected")
	ErrShuttingDown     = errors.New("server shutting down")
)

// RegistryMissError means a canonical symbol has no entry of the requested
// kind in the registry and no broker lookup could resolve one.
type RegistryMissError struct {
	Symbol string
	Broker string
}

func (e *RegistryMissError) Error() string {
	return fmt.Sprintf("registry miss: %s has no %s mapping", e.Symbol, e.Broker)
}

// Code identifies this error kind on the wire.
func (e *RegistryMissError) Code() string { return "registry_miss" }

// NewRegistryMiss builds a RegistryMissError.
func NewRegistryMiss(symbol, broker string) *RegistryMissError {
	return &RegistryMissError{Symbol: symbol, Broker: broker}
}

// RegistryAmbiguousError means a broker-side contract lookup for symbol
// returned more than one candidate and the registry refused to guess.
type RegistryAmbiguousError struct {
	Symbol  string
	Matches int
}

func (e *RegistryAmbiguousError) Error() string {
	return fmt.Sprintf("registry lookup for %s is ambiguous: %d candidates", e.Symbol, e.Matches)
}

// Code identifies this error kind on the wire.
func (e *RegistryAmbiguousError) Code() string { return "registry_ambiguous" }

// NewRegistryAmbiguous builds a RegistryAmbiguousError.
func NewRegistryAmbiguous(symbol string, matches int) *RegistryAmbiguousError {
	return &RegistryAmbiguousError{Symbol: symbol, Matches: matches}
}

// RegistryStoreError wraps a failure from the registry's persistence layer.
type RegistryStoreError struct {
	Op  string
	Err error
}

func (e *RegistryStoreError) Error() string {
	return fmt.Sprintf("registry store error during %s: %v", e.Op, e.Err)
}

func (e *RegistryStoreError) Unwrap() error { return e.Err }

// Code identifies this error kind on the wire.
func (e *RegistryStoreError) Code() string { return "registry_store_error" }

// NewRegistryStoreError builds a RegistryStoreError.
func NewRegistryStoreError(op string, err error) *RegistryStoreError {
	return &RegistryStoreError{Op: op, Err: err}
}

// CapabilityUnsupportedError means the target broker gateway does not
// implement the order type, TIF, or action an intent requires.
type CapabilityUnsupportedError struct {
	Broker     string
	Capability string
}

func (e *CapabilityUnsupportedError) Error() string {
	return fmt.Sprintf("%s does not support %s", e.Broker, e.Capability)
}

// Code identifies this error kind on the wire.
func (e *CapabilityUnsupportedError) Code() string { return "capability_unsupported" }

// NewCapabilityUnsupported builds a CapabilityUnsupportedError.
func NewCapabilityUnsupported(broker, capability string) *CapabilityUnsupportedError {
	return &CapabilityUnsupportedError{Broker: broker, Capability: capability}
}

// InvalidIntentError means an OrderIntent failed structural or policy
// validation before it ever reached a gateway.
type InvalidIntentError struct {
	Reason string
}

func (e *InvalidIntentError) Error() string {
	return fmt.Sprintf("invalid order intent: %s", e.Reason)
}

// Code identifies this error kind on the wire.
func (e *InvalidIntentError) Code() string { return "invalid_intent" }

// NewInvalidIntent builds an InvalidIntentError.
func NewInvalidIntent(reason string) *InvalidIntentError {
	return &InvalidIntentError{Reason: reason}
}

// BrokerTransientError wraps a broker-side failure the caller may usefully
// retry (rate limits, connection drops, timeouts).
type BrokerTransientError struct {
	Broker string
	Err    error
}

func (e *BrokerTransientError) Error() string {
	return fmt.Sprintf("%s transient error: %v", e.Broker, e.Err)
}

func (e *BrokerTransientError) Unwrap() error { return e.Err }

// Code identifies this error kind on the wire.
func (e *BrokerTransientError) Code() string { return "broker_transient" }

// NewBrokerTransient builds a BrokerTransientError.
func NewBrokerTransient(broker string, err error) *BrokerTransientError {
	return &BrokerTransientError{Broker: broker, Err: err}
}

// BrokerPermanentError wraps a broker-side failure that will not succeed on
// retry (rejected order, bad credentials, unknown symbol).
type BrokerPermanentError struct {
	Broker string
	Err    error
}

func (e *BrokerPermanentError) Error() string {
	return fmt.Sprintf("%s permanent error: %v", e.Broker, e.Err)
}

func (e *BrokerPermanentError) Unwrap() error { return e.Err }

// Code identifies this error kind on the wire.
func (e *BrokerPermanentError) Code() string { return "broker_permanent" }

// NewBrokerPermanent builds a BrokerPermanentError.
func NewBrokerPermanent(broker string, err error) *BrokerPermanentError {
	return &BrokerPermanentError{Broker: broker, Err: err}
}

// UnknownAccountError means a request named an account alias the server has
// no gateway configured for.
type UnknownAccountError struct {
	Alias string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("unknown account alias %q", e.Alias)
}

// Code identifies this error kind on the wire.
func (e *UnknownAccountError) Code() string { return "unknown_account" }

// NewUnknownAccount builds an UnknownAccountError.
func NewUnknownAccount(alias string) *UnknownAccountError {
	return &UnknownAccountError{Alias: alias}
}

// Wrap adds context to err, or returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to err, or returns nil if err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain assignable to target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Coder is implemented by every typed error in this package so callers on
// the wire boundary (RPC) can report a stable machine-readable code instead
// of flattening every error to its message string.
type Coder interface {
	Code() string
}

// CodeOf returns the wire code for err: the code of the first Coder in its
// chain, a fixed code for the package's sentinel errors, or "internal" for
// anything else.
func CodeOf(err error) string {
	var coder Coder
	if errors.As(err, &coder) {
		return coder.Code()
	}
	switch {
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrAlreadyConnected):
		return "already_connected"
	case errors.Is(err, ErrShuttingDown):
		return "shutting_down"
	default:
		return "internal"
	}
}
