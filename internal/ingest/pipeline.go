// Package ingest decides whether a telemetry submission is admitted and
// records admitted payloads exactly once.
package ingest

import (
	"context"

	"go.uber.org/zap"
)

// Store is the persistence the pipeline needs: a source lookup and a single
// committed append.
type Store interface {
	SourceLookup
	AddRecord(ctx context.Context, sourceID string, data []byte) (int64, error)
}

type Pipeline struct {
	store  Store
	logger *zap.Logger
}

func NewPipeline(store Store, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{store: store, logger: logger}
}

// Admit runs the origin gate, the payload check and the source authorizer,
// in that order, and appends the payload as one unsent record. The returned
// id is assigned by the store and only handed out after the commit. Every
// rejection is an *AdmissionError and leaves the store untouched.
func (p *Pipeline) Admit(ctx context.Context, peer string, header SourceHeader, payload []byte) (int64, error) {
	if err := CheckOrigin(peer); err != nil {
		p.logger.Warn("submission rejected by origin gate",
			zap.String("peer", peer),
			zap.Stringer("reason", KindOf(err)),
		)
		return 0, err
	}

	if len(payload) == 0 {
		return 0, &AdmissionError{Kind: KindEmptyPayload}
	}

	sourceID, err := ValidateSource(ctx, header, p.store)
	if err != nil {
		p.logger.Info("submission rejected",
			zap.String("peer", peer),
			zap.String("source_id", header.Value),
			zap.Stringer("reason", KindOf(err)),
			zap.Error(err),
		)
		return 0, err
	}

	id, err := p.store.AddRecord(ctx, sourceID, payload)
	if err != nil {
		p.logger.Error("failed to store record",
			zap.String("source_id", sourceID),
			zap.Int("size", len(payload)),
			zap.Error(err),
		)
		return 0, &AdmissionError{Kind: KindStoreFailure, SourceID: sourceID, Err: err}
	}

	p.logger.Debug("record admitted",
		zap.String("source_id", sourceID),
		zap.Int64("record_id", id),
		zap.Int("size", len(payload)),
	)
	return id, nil
}
