package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recycletek/pkg/detection"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"10", 10, true},
		{" -3 ", -3, true},
		{"2.5", 0, false},
		{`"3"`, 0, false},
		{"true", 0, false},
		{"null", 0, false},
		{"", 0, false},
		{"1e3", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseInt([]byte(tt.raw))
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestPayoutCallbackWithdrawalID(t *testing.T) {
	id, ok := PayoutCallback{WithdrawalID: 7}.withdrawalID()
	assert.True(t, ok)
	assert.Equal(t, uint(7), id)

	id, ok = PayoutCallback{OrderID: "wd-42"}.withdrawalID()
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	_, ok = PayoutCallback{OrderID: "42"}.withdrawalID()
	assert.False(t, ok)
	_, ok = PayoutCallback{OrderID: "wd-x"}.withdrawalID()
	assert.False(t, ok)
}

func TestParseOutcome(t *testing.T) {
	ok, known := parseOutcome("COMPLETED")
	assert.True(t, ok)
	assert.True(t, known)

	ok, known = parseOutcome("canceled")
	assert.False(t, ok)
	assert.True(t, known)

	_, known = parseOutcome("in_transit")
	assert.False(t, known)
}

type fakeDetector struct {
	ready bool
	dets  []detection.Detection
	err   error
}

func (f *fakeDetector) Ready() bool { return f.ready }

func (f *fakeDetector) Detect(context.Context, []byte) ([]detection.Detection, error) {
	return f.dets, f.err
}

type fakeArchive struct {
	uploaded int
}

func (a *fakeArchive) UploadImage(_ context.Context, r io.Reader, publicID string) (string, error) {
	a.uploaded++
	return "https://img.example/" + publicID, nil
}

func multipartImage(t *testing.T, field string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "frame.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func serveDetect(t *testing.T, h *DetectionHandler, field string, data []byte) (int, map[string]any) {
	t.Helper()
	r := gin.New()
	r.POST("/detect-bottles", h.Detect)
	body, ctype := multipartImage(t, field, data)
	req := httptest.NewRequest(http.MethodPost, "/detect-bottles", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func TestDetectBottles(t *testing.T) {
	det := &fakeDetector{ready: true, dets: []detection.Detection{
		{Label: "bottle", Confidence: 0.9, Box: [4]int{1, 2, 3, 4}},
		{Label: "cup", Confidence: 0.5, Box: [4]int{5, 6, 7, 8}},
	}}
	archive := &fakeArchive{}
	h := NewDetectionHandler(det, archive, 1<<20, slogt.New(t))

	code, body := serveDetect(t, h, "image", []byte("jpeg"))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["bottle_count"])
	assert.Equal(t, float64(70), body["avg_confidence"])
	dets := body["detections"].([]any)
	assert.Equal(t, "bottle", dets[0].(map[string]any)["class"])
	assert.Equal(t, float64(90), dets[0].(map[string]any)["confidence"])
	assert.Contains(t, body["image_url"], "https://img.example/det_")
	assert.Equal(t, 1, archive.uploaded)
}

func TestDetectBottlesErrors(t *testing.T) {
	log := slogt.New(t)

	code, body := serveDetect(t, NewDetectionHandler(&fakeDetector{}, nil, 1<<20, log), "image", []byte("x"))
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Detection model not loaded", body["error"])

	ready := &fakeDetector{ready: true}
	code, body = serveDetect(t, NewDetectionHandler(ready, nil, 1<<20, log), "file", []byte("x"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No image uploaded", body["error"])

	code, body = serveDetect(t, NewDetectionHandler(ready, nil, 4, log), "image", []byte("too large"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "File too large. Maximum size is 10MB.", body["error"])

	broken := &fakeDetector{ready: true, err: errors.New("sidecar down")}
	code, body = serveDetect(t, NewDetectionHandler(broken, nil, 1<<20, log), "image", []byte("x"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Detection failed", body["error"])
}
