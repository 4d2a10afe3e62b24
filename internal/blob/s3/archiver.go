package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chris-ch/coinarb/internal/domain"
)

// OpportunityArchiveStore provides read access to opportunities for
// archival. The Postgres store satisfies this through ListBefore.
type OpportunityArchiveStore interface {
	// ListBefore returns all opportunities detected strictly before the
	// given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error)
}

// Archiver serializes aged opportunity records to JSONL and uploads the
// result to object storage.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here; that is a separate, explicit step to be executed
// after the archive has been verified.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	opps   OpportunityArchiveStore
}

// NewArchiver creates an Archiver. The reader is used to avoid clobbering a
// batch already uploaded for the same month.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, opps OpportunityArchiveStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, opps: opps}
}

// ArchiveOpportunities queries all opportunities before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/opportunities/YYYY-MM.jsonl. Returns the number of archived
// records.
func (a *Archiver) ArchiveOpportunities(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.opps.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities query: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	path, err := a.batchPath(ctx, before)
	if err != nil {
		return 0, err
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}

	return int64(len(opps)), nil
}

// batchPath returns the object key for this batch, appending the cutoff's
// unix timestamp when a batch for the same month was already uploaded.
func (a *Archiver) batchPath(ctx context.Context, before time.Time) (string, error) {
	base := archivePath("opportunities", before)
	taken, err := a.reader.Exists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive opportunities check %s: %w", base, err)
	}
	if !taken {
		return base, nil
	}
	return fmt.Sprintf("archive/opportunities/%s-%d.jsonl",
		before.UTC().Format("2006-01"), before.Unix()), nil
}

// marshalJSONL renders records as one JSON object per line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// archivePath builds the object key for one archive batch, bucketed by the
// cutoff month.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01"))
}
