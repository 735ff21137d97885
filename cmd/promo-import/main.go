package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront-checkout/internal/domain/promotion"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	progressEvery = 10_000
	maxParallel   = 4
)

// Upserter stores imported promotions.
type Upserter interface {
	Upsert(ctx context.Context, p *promotion.Promotion) error
}

type stats struct {
	imported atomic.Int64
	revoked  atomic.Int64
	invalid  atomic.Int64
}

func main() {
	var (
		dataDir     string
		revokedFile string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz promotion files")
	flag.StringVar(&revokedFile, "revoked", "", "optional gzip file with one revoked code per line")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, revokedFile, databaseURL); err != nil {
		slog.Error("promotion import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promotion import completed successfully")
}

func run(ctx context.Context, dataDir, revokedFile, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return errors.Wrap(err, "list data files")
	}
	if len(files) == 0 {
		slog.Info("no promotion files found", slog.String("dir", dataDir))
		return nil
	}

	revoked := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	if revokedFile != "" {
		slog.Info("loading revoked codes", slog.String("path", revokedFile))
		n, err := loadRevoked(ctx, revokedFile, revoked)
		if err != nil {
			return errors.Wrap(err, "load revoked codes")
		}
		slog.Info("revoked codes loaded", slog.Uint64("count", n))
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var st stats
	if err := importFiles(ctx, files, revoked, postgres.NewPromotionRepository(pool), time.Now(), &st); err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("files", len(files)),
		slog.Int64("imported", st.imported.Load()),
		slog.Int64("revoked", st.revoked.Load()),
		slog.Int64("invalid", st.invalid.Load()),
	)
	return nil
}

// importFiles streams every file concurrently into repo.
func importFiles(
	ctx context.Context,
	files []string,
	revoked *bloom.BloomFilter,
	repo Upserter,
	now time.Time,
	st *stats,
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for _, path := range files {
		g.Go(func() error {
			f, err := openGz(path)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			if err := importReader(ctx, path, f, revoked, repo, now, st); err != nil {
				return errors.Wrapf(err, "import %s", path)
			}
			return nil
		})
	}
	return g.Wait()
}

// importReader parses CSV rows from r. Invalid and revoked rows are counted
// and skipped; storage errors abort the import.
func importReader(
	ctx context.Context,
	name string,
	r io.Reader,
	revoked *bloom.BloomFilter,
	repo Upserter,
	now time.Time,
	st *stats,
) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				st.invalid.Add(1)
				slog.Warn("skipping malformed line", slog.String("file", name), slog.Int("line", line), slog.String("error", err.Error()))
				continue
			}
			return errors.Wrap(err, "read csv")
		}
		if line == 1 && isHeader(record) {
			continue
		}

		p, err := parseRow(record, now)
		if err != nil {
			st.invalid.Add(1)
			slog.Warn("skipping invalid row", slog.String("file", name), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		if revoked.TestString(p.Code) {
			st.revoked.Add(1)
			continue
		}

		if err := repo.Upsert(ctx, &p); err != nil {
			return err
		}
		if n := st.imported.Add(1); n%progressEvery == 0 {
			slog.Info("import progress", slog.Int64("imported", n))
		}
	}

	slog.Info("file complete", slog.String("file", name), slog.Int("lines", line))
	return nil
}

// loadRevoked adds every non-empty line of a gzip file to filter.
func loadRevoked(ctx context.Context, path string, filter *bloom.BloomFilter) (uint64, error) {
	f, err := openGz(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return addLines(ctx, f, filter)
}

func addLines(ctx context.Context, r io.Reader, filter *bloom.BloomFilter) (uint64, error) {
	var n uint64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		code := promotion.NormalizeCode(scanner.Text())
		if code == "" || strings.HasPrefix(code, "#") {
			continue
		}
		filter.AddString(code)
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, errors.Wrap(err, "scan")
	}
	return n, nil
}

type gzFile struct {
	*pgzip.Reader
	f *os.File
}

func (g gzFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// openGz opens a gzip-compressed file for streaming.
func openGz(path string) (gzFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return gzFile{}, errors.Wrapf(err, "open %s", path)
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return gzFile{}, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return gzFile{Reader: gz, f: f}, nil
}
