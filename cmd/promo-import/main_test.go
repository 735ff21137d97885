package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
)

type memUpserter struct {
	mu    sync.Mutex
	codes map[string]promotion.Promotion
	err   error
}

func (m *memUpserter) Upsert(_ context.Context, p *promotion.Promotion) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]promotion.Promotion)
	}
	m.codes[p.Code] = *p
	return nil
}

func writeGz(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func TestImportReader(t *testing.T) {
	revoked := bloom.NewWithEstimates(1000, 0.0001)
	revoked.AddString("LEAKED99")

	const data = `CODE,TYPE,VALUE,MIN_SUBTOTAL,MAX_USES,DAYS
SPRING15,PERCENTAGE,15,2000,500,30
LEAKED99,FIXED,999,,,30
broken,,,
"bad"quote,FIXED,1,,,1
SAVE300,FIXED,300,3000,,14
`
	repo := &memUpserter{}
	var st stats
	err := importReader(context.Background(), "test.csv", strings.NewReader(data), revoked, repo, importTime, &st)
	require.NoError(t, err)

	assert.Equal(t, int64(2), st.imported.Load())
	assert.Equal(t, int64(1), st.revoked.Load())
	assert.Equal(t, int64(2), st.invalid.Load())
	assert.Contains(t, repo.codes, "SPRING15")
	assert.Contains(t, repo.codes, "SAVE300")
	assert.NotContains(t, repo.codes, "LEAKED99")
}

func TestImportReader_StorageErrorAborts(t *testing.T) {
	repo := &memUpserter{err: errors.New("connection reset")}
	var st stats
	err := importReader(context.Background(), "test.csv",
		strings.NewReader("SPRING15,PERCENTAGE,15,,,30\n"),
		bloom.NewWithEstimates(10, 0.01), repo, importTime, &st)
	require.ErrorContains(t, err, "connection reset")
	assert.Zero(t, st.imported.Load())
}

func TestImportFiles(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.csv.gz", "AAAA1111,FIXED,100,,,10\nAAAA2222,FIXED,200,,,10\n"),
		writeGz(t, dir, "b.csv.gz", "BBBB1111,SHIPPING,150,,,10\n"),
	}
	revokedPath := writeGz(t, dir, "revoked.gz", "# revoked\naaaa2222\n\n")

	revoked := bloom.NewWithEstimates(1000, 0.0001)
	n, err := loadRevoked(context.Background(), revokedPath, revoked)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	repo := &memUpserter{}
	var st stats
	require.NoError(t, importFiles(context.Background(), files, revoked, repo, importTime, &st))

	assert.Len(t, repo.codes, 2)
	assert.Contains(t, repo.codes, "AAAA1111")
	assert.Contains(t, repo.codes, "BBBB1111")
	assert.Equal(t, int64(1), st.revoked.Load())
}

func TestImportFiles_MissingFile(t *testing.T) {
	var st stats
	err := importFiles(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv.gz")},
		bloom.NewWithEstimates(10, 0.01), &memUpserter{}, importTime, &st)
	require.ErrorContains(t, err, "open")
}
