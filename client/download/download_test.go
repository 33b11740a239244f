package download_test

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/houdl/houdl/client/download"
)

func md5hex(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

func TestRun_Verified(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")

	var dst bytes.Buffer
	res, err := download.Run(t.Context(), bytes.NewReader(content), &dst, md5hex(content))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Outcome != download.OutcomeVerified {
		t.Errorf("expected OutcomeVerified, got %v", res.Outcome)
	}
	if res.Written != int64(len(content)) {
		t.Errorf("Written = %d, expected %d", res.Written, len(content))
	}
	if res.Digest != md5hex(content) {
		t.Errorf("Digest = %q, expected %q", res.Digest, md5hex(content))
	}
	if !bytes.Equal(dst.Bytes(), content) {
		t.Error("destination content differs from the source")
	}
}

func TestRun_VerifyIsCaseInsensitive(t *testing.T) {
	content := []byte("payload")

	var dst bytes.Buffer
	res, err := download.Run(t.Context(), bytes.NewReader(content), &dst, strings.ToUpper(md5hex(content)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Outcome != download.OutcomeVerified {
		t.Errorf("expected OutcomeVerified for upper-case hash, got %v", res.Outcome)
	}
}

func TestRun_HashMismatchKeepsFile(t *testing.T) {
	content := []byte("bytes that do not match the advertised hash")

	var dst bytes.Buffer
	res, err := download.Run(t.Context(), bytes.NewReader(content), &dst, "def456")
	if err != nil {
		t.Fatalf("hash mismatch must not be an error, got %v", err)
	}

	if res.Outcome != download.OutcomeHashMismatch {
		t.Errorf("expected OutcomeHashMismatch, got %v", res.Outcome)
	}
	if res.Written != int64(len(content)) {
		t.Errorf("Written = %d, expected %d", res.Written, len(content))
	}
	if !bytes.Equal(dst.Bytes(), content) {
		t.Error("file must still be fully present at the destination")
	}
	if res.Digest != md5hex(content) {
		t.Errorf("Digest = %q, expected the actual digest %q", res.Digest, md5hex(content))
	}
}

func TestRun_DigestIsChunkingInvariant(t *testing.T) {
	content := make([]byte, 10_000)
	if _, err := rand.Read(content); err != nil {
		t.Fatal(err)
	}

	exp := md5hex(content)
	for _, chunkSize := range []int{1, 3, 7, 64, 1024, 1 << 20} {
		var dst bytes.Buffer
		res, err := download.Run(t.Context(), bytes.NewReader(content), &dst, exp,
			download.WithChunkSize(chunkSize),
		)
		if err != nil {
			t.Fatalf("chunk size %d: %v", chunkSize, err)
		}

		if res.Digest != exp {
			t.Errorf("chunk size %d: digest %q differs from %q", chunkSize, res.Digest, exp)
		}
		if res.Outcome != download.OutcomeVerified {
			t.Errorf("chunk size %d: expected OutcomeVerified, got %v", chunkSize, res.Outcome)
		}
	}
}

// brokenReader yields data and then fails with err.
type brokenReader struct {
	r   io.Reader
	err error
}

func (b *brokenReader) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, b.err
	}
	return n, err
}

func TestRun_TransportErrorMidStream(t *testing.T) {
	declared := make([]byte, 1024)
	half := declared[:512]

	src := &brokenReader{r: bytes.NewReader(half), err: errors.New("connection reset")}

	var dst bytes.Buffer
	res, err := download.Run(t.Context(), src, &dst, md5hex(declared))

	if !errors.Is(err, download.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	// Bytes written so far must match the stream-received bytes exactly.
	if res.Written != int64(len(half)) {
		t.Errorf("Written = %d, expected %d", res.Written, len(half))
	}
	if !bytes.Equal(dst.Bytes(), half) {
		t.Error("destination bytes differ from the received stream prefix")
	}
}

// failWriter rejects every write.
type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func TestRun_WriteError(t *testing.T) {
	content := []byte("doomed payload")

	_, err := download.Run(t.Context(), bytes.NewReader(content), failWriter{}, md5hex(content))

	if !errors.Is(err, download.ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}

	var dlErr *download.Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected *download.Error, got %v", err)
	}
	if !strings.Contains(dlErr.Detail, "no space left") {
		t.Errorf("expected the write failure detail, got %q", dlErr.Detail)
	}
}

func TestRun_CancellationFinishesInFlightChunk(t *testing.T) {
	content := []byte("aaaabbbbcccc")

	ctx, cancel := context.WithCancel(t.Context())

	var dst bytes.Buffer
	res, err := download.Run(ctx, bytes.NewReader(content), &dst, md5hex(content),
		download.WithChunkSize(4),
		// Cancel after the first chunk is fully processed.
		download.WithProgress(func(n int) { cancel() }),
	)
	if err != nil {
		t.Fatalf("cancellation must not be an error, got %v", err)
	}

	if res.Outcome != download.OutcomeCancelled {
		t.Errorf("expected OutcomeCancelled, got %v", res.Outcome)
	}
	if res.Written != 4 {
		t.Errorf("expected the in-flight chunk to be written, got %d bytes", res.Written)
	}
	if dst.String() != "aaaa" {
		t.Errorf("destination = %q, expected %q", dst.String(), "aaaa")
	}
}

func TestRun_CancelledReadSurfacesAsCancellation(t *testing.T) {
	src := &brokenReader{r: bytes.NewReader([]byte("partial")), err: context.Canceled}

	var dst bytes.Buffer
	res, err := download.Run(t.Context(), src, &dst, "irrelevant")
	if err != nil {
		t.Fatalf("expected cancellation outcome, got error %v", err)
	}

	if res.Outcome != download.OutcomeCancelled {
		t.Errorf("expected OutcomeCancelled, got %v", res.Outcome)
	}
	if dst.String() != "partial" {
		t.Errorf("destination = %q, expected %q", dst.String(), "partial")
	}
}

func TestRun_ProgressReportsEveryChunkInOrder(t *testing.T) {
	content := make([]byte, 1000)

	var total int
	res, err := download.Run(t.Context(), bytes.NewReader(content), io.Discard, md5hex(content),
		download.WithChunkSize(64),
		download.WithProgress(func(n int) {
			if n <= 0 {
				t.Errorf("progress reported a non-positive chunk length %d", n)
			}
			total += n
		}),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if int64(total) != res.Written {
		t.Errorf("progress total %d differs from bytes written %d", total, res.Written)
	}
}

func TestRun_WithDigest(t *testing.T) {
	content := []byte("sha256 this time")
	sum := sha256.Sum256(content)

	res, err := download.Run(t.Context(), bytes.NewReader(content), io.Discard, hex.EncodeToString(sum[:]),
		download.WithDigest(sha256.New()),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Outcome != download.OutcomeVerified {
		t.Errorf("expected OutcomeVerified with injected digest, got %v", res.Outcome)
	}
}

func TestRun_OptionValidation(t *testing.T) {
	testCases := []struct {
		name string
		opt  download.Option
	}{
		{name: "nil digest", opt: download.WithDigest(nil)},
		{name: "nil progress", opt: download.WithProgress(nil)},
		{name: "zero chunk size", opt: download.WithChunkSize(0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := download.Run(t.Context(), strings.NewReader(""), io.Discard, "", tc.opt); err == nil {
				t.Error("expected an option error")
			}
		})
	}
}

func TestReporter_Add(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := download.NewReporter(logger, 8)
	r.Add(4)
	r.Add(4)

	if !strings.Contains(buf.String(), "download complete") {
		t.Errorf("expected a completion log line, got %q", buf.String())
	}
}

func TestReporter_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	// A total of 0 must not divide by zero or log completion.
	r := download.NewReporter(logger, 0)
	r.Add(1024)

	if strings.Contains(buf.String(), "download complete") {
		t.Errorf("unexpected completion line: %q", buf.String())
	}
}
