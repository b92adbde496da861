package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts controls pagination and time filtering for list queries.
type ListOpts struct {
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// AuditStore persists the audit trail.
type AuditStore interface {
	Record(ctx context.Context, rec AuditRecord) error
	List(ctx context.Context, opts ListOpts) ([]AuditRecord, error)
	// ListBefore and DeleteBefore support the S3 archiver: records older
	// than the cutoff are exported, then pruned.
	ListBefore(ctx context.Context, before time.Time) ([]AuditRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// IntentStore persists bet intents and their eventual outcomes.
type IntentStore interface {
	Create(ctx context.Context, intent BetIntent) error
	SetOutcome(ctx context.Context, intentID string, outcome BetOutcome) error
	ListOpen(ctx context.Context) ([]BetIntent, error)
}

// QuoteCache mirrors the latest quote per (market, source) into a shared
// cache so external tooling sees live state. Writes are best effort.
type QuoteCache interface {
	SetQuote(ctx context.Context, key string, source Source, price float64, ts time.Time) error
	GetQuotes(ctx context.Context, key string) (map[Source]float64, error)
}

// DedupStore records dispatched dedup keys outside process memory so a
// restart cannot place a second bet on the same opportunity.
type DedupStore interface {
	// MarkDispatched returns false when the key was already marked.
	MarkDispatched(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsDispatched(ctx context.Context, key string) (bool, error)
}

// LockManager provides a distributed mutex guarding the dispatch of one key
// when multiple engine instances share an account.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobReader reads back archived objects. The archiver verifies an upload
// landed before pruning the rows it exported.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports aged audit rows to blob storage and prunes them from the
// primary store.
type Archiver interface {
	ArchiveAudit(ctx context.Context, before time.Time) (int64, error)
}
