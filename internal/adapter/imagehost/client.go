// Package imagehost implements the cloud upload pipeline variant: photos
// are posted to an unsigned-upload asset host and the returned secure URL
// is embedded in the committed record.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/roadmedic/reportsync/internal/domain"
	"github.com/roadmedic/reportsync/internal/observability"
)

// Client uploads photos via a multipart form and returns remote asset
// references.
type Client struct {
	uploadURL  string
	preset     string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an asset host client. The preset names the host-side
// unsigned upload configuration.
func NewClient(uploadURL, preset string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		uploadURL: uploadURL,
		preset:    preset,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: metrics,
	}
}

// uploadResponse is the subset of the host's response the pipeline needs.
type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

// Upload posts the photo and returns the hosted URL. Any transport error,
// non-2xx status, or response without a secure URL fails the upload;
// nothing is committed and the caller keeps its state for retry.
func (c *Client) Upload(ctx context.Context, photo []byte, filenameHint string) (domain.AssetRef, error) {
	if len(photo) == 0 {
		return domain.AssetRef{}, fmt.Errorf("%w: empty photo", domain.ErrUploadFailed)
	}
	if filenameHint == "" {
		filenameHint = "photo.jpg"
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)

	part, err := form.CreateFormFile("file", filenameHint)
	if err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if _, err := part.Write(photo); err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if err := form.WriteField("upload_preset", c.preset); err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}
	if err := form.Close(); err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: build form: %v", domain.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: create request: %v", domain.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}
	defer resp.Body.Close()
	c.metrics.UploadDuration.WithLabelValues("cloud").Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AssetRef{}, fmt.Errorf("%w: status %d: %s", domain.ErrUploadFailed, resp.StatusCode, detail)
	}

	var parsed uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.AssetRef{}, fmt.Errorf("%w: decode response: %v", domain.ErrUploadFailed, err)
	}
	if parsed.SecureURL == "" {
		return domain.AssetRef{}, fmt.Errorf("%w: response missing secure_url", domain.ErrUploadFailed)
	}

	c.logger.Debug("photo uploaded", "bytes", len(photo), "url", parsed.SecureURL)
	return domain.RemoteAsset(parsed.SecureURL), nil
}
