// Package localasset implements the local-fallback upload pipeline
// variant: photos are written to the service's asset directory and the
// record carries a filesystem path instead of a URL.
package localasset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// Writer persists photos under a base directory.
type Writer struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewWriter creates the asset directory if needed and returns a Writer.
func NewWriter(dir string, logger *slog.Logger, metrics *observability.Metrics) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create asset dir %s: %v", domain.ErrLocalWriteFailed, dir, err)
	}
	return &Writer{dir: dir, logger: logger, metrics: metrics}, nil
}

// Upload writes the photo to a uniquely named file and returns a local
// asset reference with its absolute path.
func (w *Writer) Upload(_ context.Context, photo []byte, filenameHint string) (domain.AssetRef, error) {
	if len(photo) == 0 {
		return domain.AssetRef{}, fmt.Errorf("%w: empty photo", domain.ErrLocalWriteFailed)
	}

	ext := filepath.Ext(filenameHint)
	if ext == "" {
		ext = ".jpg"
	}
	path := filepath.Join(w.dir, uuid.NewString()+ext)

	start := time.Now()
	if err := os.WriteFile(path, photo, 0o644); err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: %v", domain.ErrLocalWriteFailed, err)
	}
	w.metrics.UploadDuration.WithLabelValues("local").Observe(time.Since(start).Seconds())

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w.logger.Debug("photo written", "path", abs, "bytes", len(photo))
	return domain.LocalAsset(abs), nil
}
