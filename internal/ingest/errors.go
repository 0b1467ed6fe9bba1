package ingest

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies why a submission was not admitted.
type Kind int

const (
	KindOriginUnknown Kind = iota + 1
	KindOriginNotPrivate
	KindEmptyPayload
	KindMissingIdentifier
	KindMalformedIdentifier
	KindEmptyIdentifier
	KindUnknownSource
	KindSourceDisabled
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindOriginUnknown:
		return "origin_unknown"
	case KindOriginNotPrivate:
		return "origin_not_private"
	case KindEmptyPayload:
		return "empty_payload"
	case KindMissingIdentifier:
		return "missing_identifier"
	case KindMalformedIdentifier:
		return "malformed_identifier"
	case KindEmptyIdentifier:
		return "empty_identifier"
	case KindUnknownSource:
		return "unknown_source"
	case KindSourceDisabled:
		return "source_disabled"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

// Status is the HTTP status a rejection of this kind is reported with.
func (k Kind) Status() int {
	switch k {
	case KindMissingIdentifier, KindMalformedIdentifier, KindEmptyIdentifier:
		return http.StatusBadRequest
	case KindOriginUnknown, KindOriginNotPrivate, KindUnknownSource, KindSourceDisabled:
		return http.StatusForbidden
	default:
		// Empty payloads are reported as 500, as existing data sources expect.
		return http.StatusInternalServerError
	}
}

// AdmissionError is returned for every rejected submission. Error() yields
// the exact text sent back to the data source.
type AdmissionError struct {
	Kind     Kind
	SourceID string
	Err      error
}

func (e *AdmissionError) Error() string {
	switch e.Kind {
	case KindOriginUnknown:
		return "Unable to determine client IP address"
	case KindOriginNotPrivate:
		return "Access is allowed only from private IP addresses"
	case KindEmptyPayload:
		return "Empty data is not allowed."
	case KindMissingIdentifier:
		return "Missing " + SourceIDHeader + " header"
	case KindMalformedIdentifier:
		return "Invalid " + SourceIDHeader + " header value"
	case KindEmptyIdentifier:
		return SourceIDHeader + " header cannot be empty"
	case KindUnknownSource:
		return fmt.Sprintf("Source with ID %s does not registered. Access denied.", e.SourceID)
	case KindSourceDisabled:
		return fmt.Sprintf("Source with ID %s is disabled. Access denied.", e.SourceID)
	case KindStoreFailure:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "store failure"
	default:
		return "admission rejected"
	}
}

func (e *AdmissionError) Unwrap() error {
	return e.Err
}

// Is matches any AdmissionError of the same kind, so callers can use
// errors.Is(err, ingest.ErrSourceDisabled).
func (e *AdmissionError) Is(target error) bool {
	t, ok := target.(*AdmissionError)
	return ok && t.Kind == e.Kind
}

var (
	ErrOriginUnknown       = &AdmissionError{Kind: KindOriginUnknown}
	ErrOriginNotPrivate    = &AdmissionError{Kind: KindOriginNotPrivate}
	ErrEmptyPayload        = &AdmissionError{Kind: KindEmptyPayload}
	ErrMissingIdentifier   = &AdmissionError{Kind: KindMissingIdentifier}
	ErrMalformedIdentifier = &AdmissionError{Kind: KindMalformedIdentifier}
	ErrEmptyIdentifier     = &AdmissionError{Kind: KindEmptyIdentifier}
	ErrUnknownSource       = &AdmissionError{Kind: KindUnknownSource}
	ErrSourceDisabled      = &AdmissionError{Kind: KindSourceDisabled}
	ErrStoreFailure        = &AdmissionError{Kind: KindStoreFailure}
)

// KindOf returns the rejection kind carried by err, or zero when err is not
// an AdmissionError.
func KindOf(err error) Kind {
	var ae *AdmissionError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}
