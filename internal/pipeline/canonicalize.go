package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/acquire-cli/internal/agents"
	"github.com/sells-group/acquire-cli/internal/fingerprint"
	"github.com/sells-group/acquire-cli/internal/store"
)

const stageCanonicalize = "canonicalize"

// digestListing is swapped in tests to exercise fingerprint failures.
var digestListing = fingerprint.Digest

// canonicalize fingerprints the latest raw listing, decides whether a new
// canonical version is needed, and if so runs extraction and appends the new
// version. Resubmitting unchanged content is an idempotent no-op that returns
// the existing version with Created=false and never calls the extractor.
func (p *Pipeline) canonicalize(ctx context.Context, runID, businessID string) (*CanonicalizeResult, error) {
	listing, err := p.store.LatestRawListing(ctx, businessID)
	if eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageCanonicalize, KindNoRecord, eris.Errorf("no raw listing for business %s", businessID))
	}
	if err != nil {
		return nil, stageErr(stageCanonicalize, KindPersistenceFailure, err)
	}

	// A fingerprint failure means the listing itself is unusable (its
	// metadata cannot be serialized), not that storage faulted.
	hash, err := digestListing(listing)
	if err != nil {
		return nil, stageErr(stageCanonicalize, KindSchemaValidation, err)
	}

	latestVersion, latestHash, err := p.store.LatestCanonicalMeta(ctx, businessID)
	if err != nil && !eris.Is(err, store.ErrNotFound) {
		return nil, stageErr(stageCanonicalize, KindPersistenceFailure, err)
	}

	if latestVersion > 0 && latestHash == hash {
		zap.L().Info("pipeline: content unchanged, reusing canonical version",
			zap.String("business_id", businessID),
			zap.Int("version", latestVersion),
		)
		existing, getErr := p.store.GetCanonicalRecord(ctx, businessID, latestVersion)
		if getErr != nil {
			return nil, stageErr(stageCanonicalize, KindPersistenceFailure, getErr)
		}
		return &CanonicalizeResult{
			RecordID:    existing.ID,
			BusinessID:  businessID,
			Version:     latestVersion,
			ContentHash: hash,
			Created:     false,
		}, nil
	}

	started := time.Now().UTC()
	rec, usage, err := p.extractor.Extract(ctx, listing)
	p.logExecution(ctx, runID, businessID, stageCanonicalize, outcomeFor(err), usage, started, err)
	if eris.Is(err, agents.ErrInvalidOutput) {
		return nil, stageErr(stageCanonicalize, KindSchemaValidation, err)
	}
	if err != nil {
		return nil, stageErr(stageCanonicalize, KindUpstreamFailure, err)
	}

	rec.BusinessID = businessID
	rec.AgentRunID = runID
	rec.ContentHash = hash
	rec.Version = latestVersion + 1

	if err := p.store.InsertCanonicalRecord(ctx, rec); err != nil {
		if !eris.Is(err, store.ErrVersionConflict) {
			return nil, stageErr(stageCanonicalize, KindPersistenceFailure, err)
		}
		// A concurrent writer took our version. Re-read the latest and retry
		// once; a second conflict is fatal.
		retryVersion, retryHash, metaErr := p.store.LatestCanonicalMeta(ctx, businessID)
		if metaErr != nil && !eris.Is(metaErr, store.ErrNotFound) {
			return nil, stageErr(stageCanonicalize, KindPersistenceFailure, metaErr)
		}
		if retryVersion > 0 && retryHash == hash {
			// The other writer persisted the same content.
			existing, getErr := p.store.GetCanonicalRecord(ctx, businessID, retryVersion)
			if getErr != nil {
				return nil, stageErr(stageCanonicalize, KindPersistenceFailure, getErr)
			}
			return &CanonicalizeResult{
				RecordID:    existing.ID,
				BusinessID:  businessID,
				Version:     retryVersion,
				ContentHash: hash,
				Created:     false,
			}, nil
		}
		rec.ID = ""
		rec.Version = retryVersion + 1
		if retryErr := p.store.InsertCanonicalRecord(ctx, rec); retryErr != nil {
			if eris.Is(retryErr, store.ErrVersionConflict) {
				return nil, stageErr(stageCanonicalize, KindPersistenceConflict, retryErr)
			}
			return nil, stageErr(stageCanonicalize, KindPersistenceFailure, retryErr)
		}
	}

	zap.L().Info("pipeline: canonical version created",
		zap.String("business_id", businessID),
		zap.Int("version", rec.Version),
		zap.String("content_hash", hash),
	)
	return &CanonicalizeResult{
		RecordID:    rec.ID,
		BusinessID:  businessID,
		Version:     rec.Version,
		ContentHash: hash,
		Created:     true,
	}, nil
}
