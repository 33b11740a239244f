// Package download streams build archives to a destination while
// folding the bytes into a running content digest and reporting
// progress per chunk.
package download

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultChunkSize = 128 << 10 // 128KB

var (
	// ErrTransport indicates the source stream failed mid-transfer.
	ErrTransport = errors.New("transport failure mid-stream")
	// ErrWrite indicates the destination rejected a chunk.
	ErrWrite = errors.New("destination write failed")
)

// Error wraps a sentinel error with additional detail.
type Error struct {
	Err    error
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Outcome is the terminal state of one download.
type Outcome int

const (
	// OutcomeVerified means every byte was written and the computed
	// digest matches the expected content hash.
	OutcomeVerified Outcome = iota + 1
	// OutcomeHashMismatch means every byte was written but the digest
	// differs from the expected hash. The file is complete and usable;
	// the advertised hash is occasionally stale for in-flight builds,
	// so this is reported as data rather than raised as an error.
	OutcomeHashMismatch
	// OutcomeCancelled means the context ended mid-stream. The
	// in-flight chunk was fully written before the loop exited.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeHashMismatch:
		return "hash mismatch"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result reports how a download ended. Written counts the bytes that
// reached the destination; Digest is the lower-case hex sum, set only
// when the stream was fully consumed. Outcome is meaningful only when
// Run returned a nil error.
type Result struct {
	Outcome Outcome
	Written int64
	Digest  string
}

// Run consumes body chunk by chunk. Each chunk is written to dst,
// folded into the running digest, and reported to the progress sink,
// strictly in that order; the digest is order-sensitive, so chunk
// processing is never parallelized. On EOF, the computed digest is
// compared case-insensitively against expectedHash.
//
// Bytes written before a failure remain in dst; cleanup is the
// caller's concern.
func Run(ctx context.Context, body io.Reader, dst io.Writer, expectedHash string, optFns ...Option) (Result, error) {
	var opts options
	for _, opt := range optFns {
		if err := opt(&opts); err != nil {
			return Result{}, fmt.Errorf("applying option: %w", err)
		}
	}

	digest := opts.digest
	if digest == nil {
		digest = md5.New()
	}
	chunkSize := opts.chunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var written int64
	buf := make([]byte, chunkSize)
	for {
		if ctx.Err() != nil {
			return Result{Outcome: OutcomeCancelled, Written: written}, nil
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			written += int64(wn)
			if werr != nil {
				return Result{Written: written}, &Error{Err: ErrWrite, Detail: werr.Error()}
			}

			digest.Write(buf[:n]) // hash.Hash never returns an error
			if opts.progress != nil {
				opts.progress(n)
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			// A cancelled request surfaces as a read error on the
			// response body; report it as cancellation, not transport.
			if ctx.Err() != nil || errors.Is(rerr, context.Canceled) || errors.Is(rerr, context.DeadlineExceeded) {
				return Result{Outcome: OutcomeCancelled, Written: written}, nil
			}

			return Result{Written: written}, &Error{Err: ErrTransport, Detail: rerr.Error()}
		}
	}

	sum := hex.EncodeToString(digest.Sum(nil))
	res := Result{Outcome: OutcomeVerified, Written: written, Digest: sum}
	if !strings.EqualFold(sum, expectedHash) {
		res.Outcome = OutcomeHashMismatch
	}

	return res, nil
}
