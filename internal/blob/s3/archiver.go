package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharpline/valuebot/internal/domain"
)

// auditSource is the slice of domain.AuditStore the archiver needs: the
// time-ranged read plus the prune.
type auditSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.AuditRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuditArchiver implements domain.Archiver: audit rows older than the cutoff
// are exported to the object store as gzipped NDJSON, the upload is verified,
// and only then are the rows pruned from Postgres.
type AuditArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audits auditSource
	logger *slog.Logger
}

var _ domain.Archiver = (*AuditArchiver)(nil)

// NewAuditArchiver creates an AuditArchiver. reader may be nil; the
// verification step is then skipped.
func NewAuditArchiver(writer domain.BlobWriter, reader domain.BlobReader, audits auditSource, logger *slog.Logger) *AuditArchiver {
	return &AuditArchiver{
		writer: writer,
		reader: reader,
		audits: audits,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveAudit exports and prunes rows older than before, returning how many
// were archived. A verification failure leaves the primary store untouched.
func (a *AuditArchiver) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.audits.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := gzipNDJSON(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit encode: %w", err)
	}

	path := archivePath(before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/gzip"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	if a.reader != nil {
		ok, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive audit verify: %w", err)
		}
		if !ok {
			return 0, fmt.Errorf("s3blob: archive audit verify: %s missing after upload", path)
		}
	}

	deleted, err := a.audits.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(recs)), fmt.Errorf("s3blob: archive audit prune: %w", err)
	}

	a.logger.Info("audit archived",
		slog.String("path", path),
		slog.Int("exported", len(recs)),
		slog.Int64("pruned", deleted))
	return int64(len(recs)), nil
}

// archivePath partitions exports by the cutoff's UTC date.
//
//	audit/2026/01/17/audit-20260117T120000Z.ndjson.gz
func archivePath(before time.Time) string {
	u := before.UTC()
	return fmt.Sprintf("audit/%s/audit-%s.ndjson.gz",
		u.Format("2006/01/02"), u.Format("20060102T150405Z"))
}

// gzipNDJSON renders records as gzip-compressed newline-delimited JSON.
func gzipNDJSON(recs []domain.AuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	enc.SetEscapeHTML(false)

	for i, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}
