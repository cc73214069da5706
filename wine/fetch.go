package wine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
)

// DefaultURL is the UCI red wine quality dataset.
const DefaultURL = "https://archive.ics.uci.edu/ml/machine-learning-databases/wine-quality/winequality-red.csv"

// DefaultCachePath is where the last downloaded copy is kept.
const DefaultCachePath = "data/winequality-red.csv"

// DefaultMaxBytes bounds the download. The real file is about 100KB.
const DefaultMaxBytes = 32 << 20

// Source says where the dataset comes from.
type Source struct {
	URL       string
	CachePath string
	Timeout   time.Duration
	// Offline skips the network and reads the cache only.
	Offline bool
}

// DefaultSource returns the UCI URL with the default cache and a 30s timeout.
func DefaultSource() Source {
	return Source{URL: DefaultURL, CachePath: DefaultCachePath, Timeout: 30 * time.Second}
}

// Fetcher downloads the dataset and keeps a local cache of it.
type Fetcher struct {
	source   Source
	client   *http.Client
	logger   log.Logger
	maxBytes int64
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client. Its timeout wins over Source.Timeout.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithMaxBytes sets the largest accepted response body.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// WithFetcherLogger overrides the logger.
func WithFetcherLogger(l log.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// NewFetcher creates a Fetcher for src.
func NewFetcher(src Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{source: src, maxBytes: DefaultMaxBytes}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: src.Timeout}
	}
	if f.logger == nil {
		f.logger = log.GetLoggerWithName("wine.fetcher")
	}
	return f
}

// Source returns the configured source.
func (f *Fetcher) Source() Source {
	return f.source
}

// FetchOrLoad downloads the dataset and refreshes the cache. When the download
// fails it reads the cache instead. A DataUnavailableError is returned when
// neither works. Content that was retrieved but cannot be parsed is an error of
// its own and does not fall back.
func (f *Fetcher) FetchOrLoad(ctx context.Context) (*Table, error) {
	var netErr error
	if f.source.Offline {
		netErr = errors.New("offline mode")
	} else {
		body, err := f.download(ctx)
		if err == nil {
			t, err := ReadCSV(bytes.NewReader(body))
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse dataset from %s", f.source.URL)
			}
			t.Origin = OriginNetwork
			f.logger.Info("Dataset downloaded",
				log.OperationKey, log.OperationFetch,
				log.DataSourceKey, string(OriginNetwork),
				log.DataURLKey, f.source.URL,
				log.SamplesKey, t.Len(),
			)
			f.refreshCache(t)
			return t, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrap(ctxErr, "dataset fetch cancelled")
		}
		netErr = err
		f.logger.Warn("Dataset download failed, falling back to cache",
			netErr,
			log.DataURLKey, f.source.URL,
			log.PathKey, f.source.CachePath,
		)
	}

	t, err := f.loadCache()
	if err != nil {
		return nil, errors.NewDataUnavailableError(f.source.URL, f.source.CachePath, errors.CombineErrors(netErr, err))
	}
	f.logger.Info("Dataset loaded from cache",
		log.OperationKey, log.OperationFetch,
		log.DataSourceKey, string(OriginCache),
		log.PathKey, f.source.CachePath,
		log.SamplesKey, t.Len(),
	)
	return t, nil
}

func (f *Fetcher) download(ctx context.Context) ([]byte, error) {
	if f.source.URL == "" {
		return nil, errors.New("no dataset URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.source.URL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dataset request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "dataset request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("dataset request returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read dataset body")
	}
	if int64(len(body)) > f.maxBytes {
		return nil, errors.Newf("dataset body exceeds %d bytes", f.maxBytes)
	}
	return body, nil
}

// refreshCache replaces the cache atomically. Failure is logged only, the
// downloaded table is still usable.
func (f *Fetcher) refreshCache(t *Table) {
	if f.source.CachePath == "" {
		return
	}
	staged, err := model.StageFile(f.source.CachePath, func(w io.Writer) error {
		return WriteCSV(w, t)
	})
	if err == nil {
		err = staged.Commit()
	}
	if err != nil {
		f.logger.Warn("Failed to refresh dataset cache", err, log.PathKey, f.source.CachePath)
	}
}

func (f *Fetcher) loadCache() (*Table, error) {
	if f.source.CachePath == "" {
		return nil, errors.Wrap(os.ErrNotExist, "no cache path configured")
	}
	t, err := LoadFile(f.source.CachePath)
	if err != nil {
		return nil, err
	}
	t.Origin = OriginCache
	return t, nil
}

// LoadFile reads a dataset from a local CSV file.
func LoadFile(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	t, err := ReadCSV(file)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return t, nil
}
