package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chris-ch/coinarb/internal/domain"
)

// multipartThreshold is the batch size above which a flush switches to a
// multipart upload.
const multipartThreshold = 32 << 20

// Recorder buffers published quote lines and periodically uploads the
// accumulated batch to blob storage as a JSONL object, one object per flush.
// It implements Capture.
type Recorder struct {
	writer   domain.BlobWriter
	prefix   string
	interval time.Duration
	logger   *slog.Logger

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewRecorder creates a recorder flushing to keys under prefix, e.g.
// "captures", every interval.
func NewRecorder(writer domain.BlobWriter, prefix string, interval time.Duration, logger *slog.Logger) *Recorder {
	return &Recorder{
		writer:   writer,
		prefix:   prefix,
		interval: interval,
		logger:   logger.With(slog.String("component", "recorder")),
	}
}

// Append queues one quote line for the next flush.
func (r *Recorder) Append(line []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf.Write(line)
	r.buf.WriteByte('\n')
}

// Run flushes on every tick and once more on shutdown. It blocks until ctx
// is cancelled.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("recorder started", slog.String("prefix", r.prefix))
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			err := r.Flush(flushCtx)
			cancel()
			if err != nil {
				r.logger.Warn("final flush failed", slog.String("error", err.Error()))
			}
			r.logger.Info("recorder stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.logger.Warn("flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Flush uploads the buffered lines, if any, as one object.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	if r.buf.Len() == 0 {
		r.mu.Unlock()
		return nil
	}
	data := make([]byte, r.buf.Len())
	copy(data, r.buf.Bytes())
	r.buf.Reset()
	r.mu.Unlock()

	now := time.Now().UTC()
	path := fmt.Sprintf("%s/%s/quotes-%s.jsonl", r.prefix, now.Format("2006/01/02"), now.Format("150405"))

	// Long flush intervals on busy books can accumulate batches too big for
	// a single upload request.
	var err error
	if len(data) >= multipartThreshold {
		err = r.writer.PutMultipart(ctx, path, bytes.NewReader(data), 0)
	} else {
		err = r.writer.Put(ctx, path, bytes.NewReader(data), "application/x-ndjson")
	}
	if err != nil {
		return fmt.Errorf("recorder: upload %s: %w", path, err)
	}
	r.logger.Debug("capture uploaded", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}
