// Package remotefs makes partition and chunk files available on local disk,
// downloading them from object storage when they are not there yet.
package remotefs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/arkilian/sortcheck/internal/errors"
	"github.com/arkilian/sortcheck/internal/storage"
)

// Compression is the encoding of remote objects.
type Compression string

const (
	// CompressionNone stores objects under their file name as is
	CompressionNone Compression = "none"

	// CompressionSnappy stores objects as "<name>.sz" snappy framed streams
	CompressionSnappy Compression = "snappy"
)

// snappySuffix is appended to the object name of snappy compressed files.
const snappySuffix = ".sz"

// ParseCompression validates a compression name. The empty string means none.
func ParseCompression(s string) (Compression, error) {
	switch Compression(strings.ToLower(s)) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionSnappy:
		return CompressionSnappy, nil
	default:
		return "", fmt.Errorf("unknown compression %q (must be none or snappy)", s)
	}
}

// Config configures a Materializer.
type Config struct {
	// LocalDir holds local copies, laid out like the remote namespace
	LocalDir string

	// Compression of remote objects
	Compression Compression

	// MaxCacheBytes bounds the total size of downloaded files; 0 keeps them all
	MaxCacheBytes int64

	// DownloadConcurrency bounds simultaneous downloads (default 4)
	DownloadConcurrency int
}

// Materializer resolves remote file names to local paths.
// It is safe for concurrent use.
type Materializer struct {
	localDir    string
	remote      storage.ObjectStorage
	compression Compression
	cache       *downloadLRU
	sem         *semaphore.Weighted
	inflight    singleflight.Group
	logger      zerolog.Logger
}

// New creates a Materializer. remote may be nil, in which case only files
// already present under cfg.LocalDir can be materialized.
func New(cfg Config, remote storage.ObjectStorage, logger zerolog.Logger) (*Materializer, error) {
	if cfg.LocalDir == "" {
		return nil, fmt.Errorf("remotefs: local directory is required")
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("remotefs: failed to create local directory: %w", err)
	}
	compression, err := ParseCompression(string(cfg.Compression))
	if err != nil {
		return nil, fmt.Errorf("remotefs: %w", err)
	}
	concurrency := cfg.DownloadConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	m := &Materializer{
		localDir:    cfg.LocalDir,
		remote:      remote,
		compression: compression,
		sem:         semaphore.NewWeighted(int64(concurrency)),
		logger:      logger,
	}
	if cfg.MaxCacheBytes > 0 {
		m.cache = newDownloadLRU(cfg.MaxCacheBytes)
	}
	return m, nil
}

// maxAcquireAttempts bounds how often LocalFile downloads a file that other
// callers keep evicting before it can be pinned.
const maxAcquireAttempts = 3

// LocalFile returns the local path of remotePath, downloading it first when
// no non-empty local copy exists. When downloads are cached under a size
// limit the file stays on disk until Release(remotePath) is called, so every
// successful LocalFile must be paired with a Release.
func (m *Materializer) LocalFile(ctx context.Context, remotePath string) (string, error) {
	local, err := m.localPath(remotePath)
	if err != nil {
		return "", err
	}

	for attempt := 0; ; attempt++ {
		if m.acquire(remotePath, local) {
			return local, nil
		}
		if m.remote == nil {
			return "", errors.NewStorageError(errors.CodeObjectNotFound,
				fmt.Sprintf("%s is not available locally and no remote storage is configured", remotePath), nil)
		}
		if attempt == maxAcquireAttempts {
			return "", errors.NewStorageError(errors.CodeReadFailed,
				fmt.Sprintf("%s was evicted %d times before it could be used; raise local.max_cache_bytes", remotePath, attempt), nil)
		}

		_, err, _ = m.inflight.Do(remotePath, func() (interface{}, error) {
			return nil, m.download(ctx, remotePath, local)
		})
		if err != nil {
			return "", err
		}
		if m.cache == nil {
			return local, nil
		}
	}
}

// Release marks the file returned by LocalFile(remotePath) as no longer in
// use, allowing the cache to delete it. It is a no-op without a size limit.
func (m *Materializer) Release(remotePath string) {
	if m.cache == nil {
		return
	}
	for _, evicted := range m.cache.release(path.Clean(remotePath)) {
		m.logger.Debug().Str("path", evicted).Msg("evicted cached file")
	}
}

// Prefetch materializes the given files concurrently, bounded by the
// download concurrency. It returns every failure joined together. Prefetched
// files are not held, so a size limited cache may evict them again.
func (m *Materializer) Prefetch(ctx context.Context, remotePaths []string) error {
	p := pool.New().WithContext(ctx)
	for _, name := range remotePaths {
		p.Go(func(ctx context.Context) error {
			if _, err := m.LocalFile(ctx, name); err != nil {
				return err
			}
			m.Release(name)
			return nil
		})
	}
	return p.Wait()
}

// acquire reports whether remotePath is usable from local, pinning it when
// it is a cached download.
func (m *Materializer) acquire(remotePath, local string) bool {
	if m.cache != nil {
		return m.cache.acquire(path.Clean(remotePath), local)
	}
	info, err := os.Stat(local)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func (m *Materializer) localPath(remotePath string) (string, error) {
	clean := path.Clean(remotePath)
	if remotePath == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.NewStorageError(errors.CodeReadFailed,
			fmt.Sprintf("invalid remote path %q", remotePath), nil)
	}
	return filepath.Join(m.localDir, filepath.FromSlash(clean)), nil
}

func (m *Materializer) download(ctx context.Context, remotePath, local string) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	objectPath := remotePath
	if m.compression == CompressionSnappy {
		objectPath += snappySuffix
	}

	dir := filepath.Dir(local)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to create %s", dir), err)
	}

	tmp := filepath.Join(dir, "."+uuid.New().String()+".tmp")
	defer os.Remove(tmp)

	m.logger.Debug().Str("object", objectPath).Msg("downloading file")
	if err := m.remote.Download(ctx, objectPath, tmp); err != nil {
		if stderrors.Is(err, storage.ErrObjectNotFound) {
			return errors.NewStorageError(errors.CodeObjectNotFound,
				fmt.Sprintf("object %s not found", objectPath), err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to download %s", objectPath), err)
	}

	if m.compression == CompressionSnappy {
		raw := filepath.Join(dir, "."+uuid.New().String()+".tmp")
		defer os.Remove(raw)
		if err := decompressSnappy(tmp, raw, objectPath); err != nil {
			return err
		}
		tmp = raw
	}

	info, err := os.Stat(tmp)
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("downloaded %s vanished", objectPath), err)
	}

	var evicted []string
	if m.cache != nil {
		evicted, err = m.cache.install(path.Clean(remotePath), local, tmp, info.Size())
	} else {
		err = os.Rename(tmp, local)
	}
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("failed to move %s into place", remotePath), err)
	}
	m.logger.Debug().Str("file", remotePath).Int64("bytes", info.Size()).Msg("downloaded file")
	for _, p := range evicted {
		m.logger.Debug().Str("path", p).Msg("evicted cached file")
	}
	return nil
}

func decompressSnappy(srcPath, dstPath, objectPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeReadFailed, "failed to open downloaded object", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to create local file", err)
	}
	if _, err := io.Copy(dst, snappy.NewReader(src)); err != nil {
		dst.Close()
		return errors.NewParseError(errors.CodeMalformedFile,
			fmt.Sprintf("%s is not a valid snappy stream", objectPath), err)
	}
	if err := dst.Close(); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed, "failed to write local file", err)
	}
	return nil
}
