// Package errs provides the error types shared by the ledger web handlers
// and the mapping from ledger failures to HTTP responses.
package errs

import (
	"errors"
	"net/http"

	"github.com/decent-stuff/decent-cloud-sub003/business/core/ledger"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/contract"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/replica"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/state"
)

// Response is the form used for API responses from failures in the API.
// Kind and Details are set for typed ledger failures.
type Response struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind,omitempty"`
	Details any               `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Trusted is used to pass an error during the request through the
// application with web specific context. Its message is safe to show the
// caller.
type Trusted struct {
	Err    error
	Status int
}

// NewTrusted wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewTrusted(err error, status int) error {
	return &Trusted{err, status}
}

// Error implements the error interface.
func (te *Trusted) Error() string {
	return te.Err.Error()
}

// Unwrap gives errors.As access to the wrapped ledger error.
func (te *Trusted) Unwrap() error {
	return te.Err
}

// IsTrusted checks if an error of type Trusted exists.
func IsTrusted(err error) bool {
	var te *Trusted
	return errors.As(err, &te)
}

// GetTrusted returns a copy of the Trusted pointer.
func GetTrusted(err error) *Trusted {
	var te *Trusted
	if !errors.As(err, &te) {
		return nil
	}
	return te
}

// =============================================================================

// Ledger classifies an error returned by a ledger operation into a trusted
// error with the matching status. Unclassified failures are bad requests.
func Ledger(err error) error {
	if err == nil {
		return nil
	}

	var (
		te *state.TransferError
		ae *state.ApproveError
	)

	switch {
	case errors.As(err, &te), errors.As(err, &ae):
		return NewTrusted(err, http.StatusBadRequest)

	case errors.Is(err, ledger.ErrBadSignature):
		return NewTrusted(err, http.StatusUnauthorized)

	case errors.Is(err, replica.ErrPushUnauthorized):
		return NewTrusted(err, http.StatusForbidden)

	case errors.Is(err, ledger.ErrDuplicate):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, replica.ErrForkDetected),
		errors.Is(err, replica.ErrRemoteBehind),
		errors.Is(err, contract.ErrContractClosed):
		return NewTrusted(err, http.StatusConflict)

	case errors.Is(err, replica.ErrPastEnd),
		errors.Is(err, contract.ErrUnknownContract):
		return NewTrusted(err, http.StatusNotFound)
	}

	return NewTrusted(err, http.StatusBadRequest)
}

// NewResponse renders a trusted error for the caller, including the ICRC
// failure kind and its details when there is one.
func NewResponse(te *Trusted) Response {
	resp := Response{Error: te.Error()}

	var (
		transferErr *state.TransferError
		approveErr  *state.ApproveError
	)

	switch {
	case errors.As(te.Err, &transferErr):
		resp.Kind = transferErr.Kind.String()
		resp.Details = transferErr

	case errors.As(te.Err, &approveErr):
		resp.Kind = approveErr.Kind.String()
		resp.Details = approveErr
	}

	return resp
}
