package download

import (
	"errors"
	"hash"
)

// ProgressFunc receives the length of each chunk after it is written.
// Chunks arrive in stream order and are reported exactly once, giving
// implementations a monotonic byte counter. A nil ProgressFunc is a
// no-op.
type ProgressFunc func(n int)

// Option defines optional settings for a download.
type Option func(*options) error

type options struct {
	digest    hash.Hash
	progress  ProgressFunc
	chunkSize int
}

// WithDigest replaces the default MD5 content digest. h must be fresh;
// a reused hash carries state from previous transfers.
func WithDigest(h hash.Hash) Option {
	return func(opts *options) error {
		if h == nil {
			return errors.New("hash must not be nil")
		}

		opts.digest = h
		return nil
	}
}

// WithProgress installs a progress sink.
func WithProgress(fn ProgressFunc) Option {
	return func(opts *options) error {
		if fn == nil {
			return errors.New("progress func must not be nil")
		}

		opts.progress = fn
		return nil
	}
}

// WithChunkSize overrides the read buffer size. The final digest is
// chunking-invariant; this only tunes memory and progress granularity.
func WithChunkSize(n int) Option {
	return func(opts *options) error {
		if n <= 0 {
			return errors.New("chunk size must be positive")
		}

		opts.chunkSize = n
		return nil
	}
}
