package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the completion pipeline can surface.
// Handlers map kinds to HTTP statuses; collaborator errors never leak raw.
type ErrorKind string

const (
	ErrInvalidInput        ErrorKind = "invalid_input"
	ErrQuestNotFound       ErrorKind = "quest_not_found"
	ErrInvalidQuestState   ErrorKind = "invalid_quest_state"
	ErrQuestExpired        ErrorKind = "quest_expired"
	ErrParticipantMismatch ErrorKind = "participant_mismatch"
	ErrNotAccepted         ErrorKind = "not_accepted"
	ErrAlreadyCompleted    ErrorKind = "already_completed"
	ErrDuplicateSubmission ErrorKind = "duplicate_submission"
	ErrVerificationFailed  ErrorKind = "verification_failed"
	ErrVerifierUnavailable ErrorKind = "verifier_unavailable"
	ErrWrongOracleIdentity ErrorKind = "wrong_oracle_identity"
	ErrSimulation          ErrorKind = "simulation_error"
	ErrSubmission          ErrorKind = "submission_error"
	ErrReceiptTimeout      ErrorKind = "receipt_timeout"
	ErrInternal            ErrorKind = "internal_error"
)

// ProofError carries a stable kind/message pair so clients can decide between
// retrying (infrastructure kinds) and prompting for new input.
type ProofError struct {
	Kind    ErrorKind
	Message string
	Detail  string // collaborator detail, logged but safe to return
	cause   error
}

func (e *ProofError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProofError) Unwrap() error { return e.cause }

func newProofError(kind ErrorKind, message string) *ProofError {
	return &ProofError{Kind: kind, Message: message}
}

func wrapProofError(kind ErrorKind, message string, cause error) *ProofError {
	return &ProofError{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the error kind, defaulting to ErrInternal for raw errors.
func KindOf(err error) ErrorKind {
	var pe *ProofError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrInternal
}

// AsProofError returns the ProofError in err's chain, or a generic internal
// one so handlers always have a stable shape to render.
func AsProofError(err error) *ProofError {
	var pe *ProofError
	if errors.As(err, &pe) {
		return pe
	}
	return &ProofError{Kind: ErrInternal, Message: "unexpected error", cause: err}
}

// ErrSubmissionNotFound is returned by the submission ledger when no matching
// pending/verified row exists for a completion update.
var ErrSubmissionNotFound = errors.New("submission not found")
