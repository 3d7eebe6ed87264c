package services

import "errors"

// Workflow and ingestion error kinds. Everything here is scoped to one
// item or one response; nothing aborts a batch. Callers branch with
// errors.Is and map to transport codes at the edge.
var (
	// ErrInvalidTransition means a precondition for the requested
	// transition is unmet (QCR action before reviewers finished, reopen
	// of a non-closed item, response against a closed item). The record
	// is left untouched; the caller may retry after state changes.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrUnknownToken means the response credential resolves to no item
	// or assignment. Terminal for the request.
	ErrUnknownToken = errors.New("unknown token")

	// ErrAlreadyResponded is the idempotency hit: the target already has
	// a recorded response. Automated delivery channels treat it as
	// success.
	ErrAlreadyResponded = errors.New("already responded")

	// ErrStaleVersion means the payload was generated against a version
	// counter the store has advanced past (a send-back cycle happened in
	// between). The sender must re-fetch and rebuild the response.
	ErrStaleVersion = errors.New("stale response version")

	// ErrReminderRunBusy means another reminder run holds the named lock.
	ErrReminderRunBusy = errors.New("reminder run already in progress")

	// ErrDuplicateIdentifier means the bucket already tracks an item with
	// that identifier.
	ErrDuplicateIdentifier = errors.New("identifier already exists in bucket")
)
