package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"recycletek/pkg/cloudinary"
	"recycletek/pkg/detection"
)

type DetectionHandler struct {
	detector detection.Detector
	archive  cloudinary.Archive // optional
	maxBytes int64
	log      *slog.Logger
}

func NewDetectionHandler(detector detection.Detector, archive cloudinary.Archive, maxBytes int64, log *slog.Logger) *DetectionHandler {
	return &DetectionHandler{detector: detector, archive: archive, maxBytes: maxBytes, log: log}
}

type detectionView struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	Box        [4]int  `json:"box"`
}

// Detect counts containers in the multipart "image" upload.
func (h *DetectionHandler) Detect(c *gin.Context) {
	if h.detector == nil || !h.detector.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection model not loaded"})
		return
	}
	fh, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image uploaded"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image selected"})
		return
	}
	if fh.Size > h.maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()
	image, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	if int64(len(image)) > h.maxBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}

	dets, err := h.detector.Detect(c.Request.Context(), image)
	if errors.Is(err, detection.ErrNotReady) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detection model not loaded"})
		return
	}
	if err != nil {
		h.log.Error("detection failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Detection failed"})
		return
	}

	views := make([]detectionView, len(dets))
	for i, d := range dets {
		views[i] = detectionView{Class: d.Label, Confidence: d.Percent(), Box: d.Box}
	}
	out := gin.H{
		"success":        true,
		"bottle_count":   len(dets),
		"avg_confidence": detection.AverageConfidence(dets),
		"detections":     views,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if url := h.archiveImage(c.Request.Context(), image); url != "" {
		out["image_url"] = url
	}
	c.JSON(http.StatusOK, out)
}

// archiveImage uploads best-effort; a failed upload never fails the detection.
func (h *DetectionHandler) archiveImage(ctx context.Context, image []byte) string {
	if h.archive == nil {
		return ""
	}
	url, err := h.archive.UploadImage(ctx, bytes.NewReader(image), cloudinary.NewPublicID("det"))
	if err != nil {
		h.log.Warn("detection image archive failed", "error", err)
		return ""
	}
	return url
}

func (h *DetectionHandler) ModelStatus(c *gin.Context) {
	ready := h.detector != nil && h.detector.Ready()
	msg := "Detection model not loaded"
	if ready {
		msg = "Detection model ready"
	}
	c.JSON(http.StatusOK, gin.H{"ready": ready, "message": msg})
}
