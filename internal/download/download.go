// Package download fetches per-day compressed trade dumps from the public
// archive over HTTP. It scrapes the archive's HTML directory listing,
// downloads files through a bounded worker set with paced, retried requests,
// and decompresses each file into its canonical name only after the
// transfer completes — a crash mid-download never leaves a file that looks
// already downloaded.
package download

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/quantlab/tickhist/internal/config"
)

// notFoundError marks a 404 from the archive; backfill probing counts these
// against its tolerance instead of retrying them.
type notFoundError struct{ url string }

func (e *notFoundError) Error() string { return fmt.Sprintf("not found: %s", e.url) }

// Client downloads archive files for symbols.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	sem        *semaphore.Weighted
	maxRetries uint64
	tolerance  int
	logger     *slog.Logger
}

// NewClient builds a download client from the download configuration.
func NewClient(cfg config.DownloadConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				ResponseHeaderTimeout: cfg.Timeout,
				TLSHandshakeTimeout:   10 * time.Second,
				MaxIdleConnsPerHost:   cfg.Concurrency,
			},
		},
		limiter:    rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		sem:        semaphore.NewWeighted(int64(cfg.Concurrency)),
		maxRetries: cfg.MaxRetries,
		tolerance:  cfg.BackfillTolerance,
		logger:     logger,
	}
}

// ListSymbols fetches the archive index and returns the symbol directory
// names, optionally filtered to the requested subset.
func (c *Client) ListSymbols(ctx context.Context, requested []string) ([]string, error) {
	body, err := c.get(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	symbols, err := parseSymbolListing(body)
	if err != nil {
		return nil, err
	}
	if len(requested) == 0 {
		return symbols, nil
	}

	want := make(map[string]bool, len(requested))
	for _, s := range requested {
		want[s] = true
	}
	var out []string
	for _, s := range symbols {
		if want[s] {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListFiles fetches a symbol's directory page and returns its per-day file
// entries in listing order.
func (c *Client) ListFiles(ctx context.Context, symbol string) ([]FileEntry, error) {
	url := c.baseURL + symbol + "/"
	body, err := c.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return parseFileListing(body, url)
}

// Options control one symbol's download pass.
type Options struct {
	// Backfill probes dates before the listed minimum until the configured
	// number of consecutive misses.
	Backfill bool
	// SkipByDir names a directory of prior outputs; files whose date is
	// already covered there are not downloaded again.
	SkipByDir string
}

// DownloadSymbol downloads every listed day file for the symbol into
// destDir/<symbol>/, skipping files already present. Transfers run
// concurrently up to the configured limit; a failed file does not stop the
// remaining transfers, but the run returns an error reporting how many
// failed.
func (c *Client) DownloadSymbol(ctx context.Context, symbol, destDir string, opts Options) error {
	symbolDir := filepath.Join(destDir, symbol)
	if err := os.MkdirAll(symbolDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", symbolDir, err)
	}

	entries, err := c.ListFiles(ctx, symbol)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		c.logger.Warn("no files listed for symbol", "symbol", symbol)
		return nil
	}

	covered := coveredDates(opts.SkipByDir, symbol)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int

	for i, entry := range entries {
		if covered[entry.Date] {
			c.logger.Debug("skipping covered date", "symbol", symbol, "date", entry.Date)
			continue
		}
		if err := c.sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func(idx int, e FileEntry) {
			defer wg.Done()
			defer c.sem.Release(1)
			if err := c.fetchOne(ctx, symbol, symbolDir, e, idx+1, len(entries)); err != nil {
				c.logger.Error("download failed", "symbol", symbol, "file", e.Name, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(i, entry)
	}
	wg.Wait()

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed for %s", failed, len(entries), symbol)
	}

	if opts.Backfill {
		minDate := entries[0].Date
		for _, e := range entries {
			if e.Date != "" && (minDate == "" || e.Date < minDate) {
				minDate = e.Date
			}
		}
		return c.backfill(ctx, symbol, symbolDir, minDate)
	}
	return nil
}

// backfill probes dates before the listed minimum; archives hide older
// files from the listing but still serve them. Probing stops after the
// configured number of consecutive 404s.
func (c *Client) backfill(ctx context.Context, symbol, symbolDir, minDate string) error {
	day, err := time.ParseInLocation("2006-01-02", minDate, time.UTC)
	if err != nil {
		return fmt.Errorf("cannot backfill %s: no usable minimum date: %w", symbol, err)
	}

	misses := 0
	for misses < c.tolerance {
		if err := ctx.Err(); err != nil {
			return err
		}
		day = day.AddDate(0, 0, -1)
		date := day.Format("2006-01-02")
		entry := FileEntry{
			Date: date,
			Name: symbol + date + ".csv.gz",
			URL:  c.baseURL + symbol + "/" + symbol + date + ".csv.gz",
		}
		err := c.fetchOne(ctx, symbol, symbolDir, entry, 0, 0)
		if err != nil {
			if isNotFound(err) {
				c.logger.Debug("backfill miss", "symbol", symbol, "date", date)
				misses++
				continue
			}
			return err
		}
		misses = 0
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *notFoundError
	return errors.As(err, &nf)
}

// fetchOne downloads one compressed day file and lands it as
// <symbol>.<date>.csv. The transfer goes to a uniquely named temp file
// first; the canonical name appears only after decompression succeeds.
func (c *Client) fetchOne(ctx context.Context, symbol, symbolDir string, entry FileEntry, idx, total int) error {
	if entry.Date == "" {
		return fmt.Errorf("file name %q carries no date", entry.Name)
	}
	finalPath := filepath.Join(symbolDir, fmt.Sprintf("%s.%s.csv", symbol, entry.Date))
	if _, err := os.Stat(finalPath); err == nil {
		c.logger.Debug("already downloaded", "file", finalPath)
		return nil
	}

	tmpPath := filepath.Join(symbolDir, fmt.Sprintf(".%s.%s.gz", entry.Name, uuid.NewString()))
	defer os.Remove(tmpPath)

	op := func() error {
		if err := c.downloadTo(ctx, entry.URL, tmpPath); err != nil {
			if isNotFound(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return err
	}

	if err := gunzip(tmpPath, finalPath); err != nil {
		os.Remove(finalPath)
		return err
	}

	if total > 0 {
		c.logger.Info(fmt.Sprintf("downloaded %d/%d", idx, total), "symbol", symbol, "file", finalPath)
	} else {
		c.logger.Info("downloaded", "symbol", symbol, "file", finalPath)
	}
	return nil
}

// downloadTo streams one URL into path, pacing requests with the shared
// rate limiter.
func (c *Client) downloadTo(ctx context.Context, url, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// get issues one GET and returns the body; non-2xx statuses are errors,
// with 404 classified separately for backfill probing.
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", url, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, &notFoundError{url: url}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}

// gunzip decompresses src into dst. dst is truncated first, so a failed
// decompression never leaves a usable-looking file behind (the caller
// removes dst on error).
func gunzip(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	zr, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("%s is not a gzip file: %w", src, err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	return out.Close()
}

// coveredDates scans a directory of prior outputs for file names shaped
// <symbol>.<date>.<ext> and returns the dates already covered. Prior runs
// write per-symbol subdirectories, so <dir>/<symbol>/ is checked first; a
// flat directory of files works too.
func coveredDates(dir, symbol string) map[string]bool {
	covered := make(map[string]bool)
	if dir == "" {
		return covered
	}
	scan := dir
	if symbolDir := filepath.Join(dir, symbol); hasSymbolFiles(symbolDir, symbol) {
		scan = symbolDir
	}
	entries, err := os.ReadDir(scan)
	if err != nil {
		return covered
	}
	prefix := symbol + "."
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if date := datePattern.FindString(name); date != "" {
			covered[date] = true
		}
	}
	return covered
}

func hasSymbolFiles(dir, symbol string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	prefix := symbol + "."
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			return true
		}
	}
	return false
}
