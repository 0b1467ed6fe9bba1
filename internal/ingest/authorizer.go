package ingest

import (
	"context"
	"net/http"

	"telemetry-broker/internal/model"
)

const SourceIDHeader = "X-Source-Id"

// SourceHeader is the raw X-Source-Id header of a request. Present
// distinguishes a missing header from an empty one.
type SourceHeader struct {
	Value   string
	Present bool
}

// HeaderFrom extracts the source identifier header from h.
func HeaderFrom(h http.Header) SourceHeader {
	values, ok := h[http.CanonicalHeaderKey(SourceIDHeader)]
	if !ok || len(values) == 0 {
		return SourceHeader{}
	}
	return SourceHeader{Value: values[0], Present: true}
}

// SourceLookup finds a registered source. The boolean is false when no
// source matches; err is reserved for infrastructure failures.
type SourceLookup interface {
	GetSource(ctx context.Context, id string) (model.Source, bool, error)
}

// ValidateSource checks the identifier header against the registered
// sources and returns the identifier of an active source. It never writes.
func ValidateSource(ctx context.Context, header SourceHeader, lookup SourceLookup) (string, error) {
	if !header.Present {
		return "", &AdmissionError{Kind: KindMissingIdentifier}
	}
	if !isVisibleASCII(header.Value) {
		return "", &AdmissionError{Kind: KindMalformedIdentifier}
	}
	if header.Value == "" {
		return "", &AdmissionError{Kind: KindEmptyIdentifier}
	}

	id := header.Value
	src, ok, err := lookup.GetSource(ctx, id)
	if err != nil {
		return "", &AdmissionError{Kind: KindStoreFailure, SourceID: id, Err: err}
	}
	if !ok {
		return "", &AdmissionError{Kind: KindUnknownSource, SourceID: id}
	}
	if !src.Active {
		return "", &AdmissionError{Kind: KindSourceDisabled, SourceID: id}
	}
	return id, nil
}

// isVisibleASCII accepts tab and the printable ASCII range only.
func isVisibleASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b != '\t' && (b < 0x20 || b > 0x7e) {
			return false
		}
	}
	return true
}
