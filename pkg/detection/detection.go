// Package detection counts recyclable containers in kiosk camera images by calling
// a model-serving sidecar.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
)

var ErrNotReady = errors.New("detection model not loaded")

// Detection is one object found in an image. Confidence is a fraction in [0,1];
// Box is x, y, width, height in pixels.
type Detection struct {
	Label      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// Percent returns the confidence as a percentage rounded to one decimal.
func (d Detection) Percent() float64 {
	return decimal.NewFromFloat(d.Confidence * 100).Round(1).InexactFloat64()
}

type Detector interface {
	Detect(ctx context.Context, image []byte) ([]Detection, error)
	Ready() bool
}

// AverageConfidence returns the mean confidence of dets as a percentage, or 0.
func AverageConfidence(dets []Detection) float64 {
	if len(dets) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, d := range dets {
		sum = sum.Add(decimal.NewFromFloat(d.Confidence))
	}
	return sum.Div(decimal.NewFromInt(int64(len(dets)))).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
}

type HTTPDetector struct {
	baseURL       string
	client        *http.Client
	labels        map[string]struct{}
	minConfidence float64
	log           *slog.Logger
	ready         atomic.Bool
}

func NewHTTPDetector(baseURL string, timeout time.Duration, labels []string, minConfidence float64, log *slog.Logger) *HTTPDetector {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		set[l] = struct{}{}
	}
	return &HTTPDetector{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		labels:        set,
		minConfidence: minConfidence,
		log:           log,
	}
}

// Open waits for the sidecar to report healthy, retrying until ctx is done or
// maxWait elapses.
func (d *HTTPDetector) Open(ctx context.Context, maxWait time.Duration) error {
	probe := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("detection health: status %d", resp.StatusCode)
		}
		return nil
	}
	bo := backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(maxWait))
	notify := func(err error, wait time.Duration) {
		d.log.Warn("detection model not ready, retrying", "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(probe, backoff.WithContext(bo, ctx), notify); err != nil {
		return fmt.Errorf("open detector: %w", err)
	}
	d.ready.Store(true)
	d.log.Info("detection model ready", "url", d.baseURL)
	return nil
}

func (d *HTTPDetector) Close() error {
	d.ready.Store(false)
	d.client.CloseIdleConnections()
	return nil
}

func (d *HTTPDetector) Ready() bool { return d.ready.Load() }

type detectResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Box        [4]int  `json:"box"`
	} `json:"detections"`
}

// Detect sends image to the sidecar and keeps container labels at or above the
// configured confidence.
func (d *HTTPDetector) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	if !d.Ready() {
		return nil, ErrNotReady
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/detect", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("detect: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("detect: decode response: %w", err)
	}
	dets := make([]Detection, 0, len(out.Detections))
	for _, r := range out.Detections {
		if _, ok := d.labels[r.Label]; !ok || r.Confidence < d.minConfidence {
			continue
		}
		dets = append(dets, Detection{Label: r.Label, Confidence: r.Confidence, Box: r.Box})
	}
	return dets, nil
}
