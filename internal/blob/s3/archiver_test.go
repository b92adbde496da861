package s3blob

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sharpline/valuebot/internal/domain"
)

type memBlob struct {
	objects map[string][]byte
	failPut bool
}

func (m *memBlob) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if m.failPut {
		return errors.New("upload failed")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[path] = b
	return nil
}

func (m *memBlob) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlob) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
	}
	return out, nil
}

func (m *memBlob) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

type memAuditSource struct {
	rows    []domain.AuditRecord
	deleted bool
}

func (m *memAuditSource) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditRecord, error) {
	var out []domain.AuditRecord
	for _, r := range m.rows {
		if r.At.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAuditSource) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var kept []domain.AuditRecord
	var n int64
	for _, r := range m.rows {
		if r.At.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	m.deleted = true
	return n, nil
}

func testRows(cutoff time.Time) []domain.AuditRecord {
	return []domain.AuditRecord{
		{ID: "a", At: cutoff.Add(-48 * time.Hour), Event: domain.AuditBetDispatched, Key: "k1", Stake: 15},
		{ID: "b", At: cutoff.Add(-24 * time.Hour), Event: domain.AuditValueBetFound, Key: "k2", ValuePct: 7.5},
		{ID: "c", At: cutoff.Add(time.Hour), Event: domain.AuditBetRejected, Key: "k3"},
	}
}

func TestArchiveAuditExportsAndPrunes(t *testing.T) {
	cutoff := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	blob := &memBlob{}
	src := &memAuditSource{rows: testRows(cutoff)}
	a := NewAuditArchiver(blob, blob, src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveAudit(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// The newer row survives the prune.
	require.Len(t, src.rows, 1)
	assert.Equal(t, "c", src.rows[0].ID)

	// The export round-trips as gzipped NDJSON.
	path := archivePath(cutoff)
	body, err := blob.Get(context.Background(), path)
	require.NoError(t, err)
	defer body.Close()

	gz, err := gzip.NewReader(body)
	require.NoError(t, err)
	var ids []string
	sc := bufio.NewScanner(gz)
	for sc.Scan() {
		var rec domain.AuditRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ids = append(ids, rec.ID)
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestArchiveAuditNothingToDo(t *testing.T) {
	cutoff := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	blob := &memBlob{}
	src := &memAuditSource{}
	a := NewAuditArchiver(blob, blob, src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	n, err := a.ArchiveAudit(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, blob.objects)
	assert.False(t, src.deleted)
}

func TestArchiveAuditUploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	blob := &memBlob{failPut: true}
	src := &memAuditSource{rows: testRows(cutoff)}
	a := NewAuditArchiver(blob, blob, src, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := a.ArchiveAudit(context.Background(), cutoff)
	require.Error(t, err)
	assert.Len(t, src.rows, 3)
	assert.False(t, src.deleted)
}

func TestArchivePathLayout(t *testing.T) {
	cutoff := time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "audit/2026/01/17/audit-20260117T120000Z.ndjson.gz", archivePath(cutoff))
}
