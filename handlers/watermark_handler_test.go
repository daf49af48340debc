package handlers

import (
	"bytes"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"watermark-backend/audio"
	"watermark-backend/models"
	"watermark-backend/watermark"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWatermarkHandler()

	api := router.Group("/api/v1")
	api.GET("/health", h.HealthCheck)
	api.GET("/protection-info", h.ProtectionInfo)
	api.POST("/watermark/protect", h.ProtectAudio)
	api.POST("/watermark/verify", h.VerifyAudio)
	return router
}

func testWAV(t *testing.T, seconds int, sampleRate int) []byte {
	t.Helper()
	n := seconds * sampleRate
	sig := watermark.NewAudioSignal(1, n, sampleRate)
	for i := 0; i < n; i++ {
		sig.Samples[0][i] = 0.6 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	data, err := audio.NewCodec().EncodeWAV(sig)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func multipartBody(t *testing.T, filename string, fileData []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if fileData != nil {
		part, err := writer.CreateFormFile("audio_file", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(fileData); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	writer.Close()
	return body, writer.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	router := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field = %q", resp["status"])
	}
}

func TestProtectionInfo(t *testing.T) {
	router := testRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/protection-info", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp models.ProtectionInfoResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Levels) != 5 {
		t.Errorf("levels = %d, want 5", len(resp.Levels))
	}
	if resp.Levels[0].Profile.Level != watermark.LevelMetadata {
		t.Errorf("first level = %s, want metadata", resp.Levels[0].Profile.Level)
	}
	if len(resp.Features) != 4 {
		t.Errorf("features = %d, want 4", len(resp.Features))
	}
}

func TestProtectMissingFile(t *testing.T) {
	router := testRouter()
	body, contentType := multipartBody(t, "", nil, map[string]string{"artist_name": "A"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/protect", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestProtectUnsupportedFormat(t *testing.T) {
	router := testRouter()
	body, contentType := multipartBody(t, "song.ogg", []byte("oggdata"), nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/protect", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestProtectTooShort(t *testing.T) {
	router := testRouter()
	// 1000 samples is below one analysis frame.
	wavData := testWAV(t, 1, 1000)
	body, contentType := multipartBody(t, "tiny.wav", wavData, map[string]string{
		"protection_level": "medium",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/protect", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
	}
}

func TestProtectWAV(t *testing.T) {
	router := testRouter()
	wavData := testWAV(t, 1, 8000)
	body, contentType := multipartBody(t, "track.wav", wavData, map[string]string{
		"artist_name":      "Test Artist",
		"track_title":      "Test Track",
		"protection_level": "light",
		"timestamp":        "1700000000",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/protect", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "audio/wav" {
		t.Errorf("content type = %q, want audio/wav", got)
	}
	if w.Header().Get("X-Job-ID") == "" {
		t.Error("missing X-Job-ID header")
	}
	if got := w.Header().Get("X-Watermark-Level"); got != "light" {
		t.Errorf("X-Watermark-Level = %q, want light", got)
	}
	if sig := w.Header().Get("X-Watermark-Signature"); len(sig) != 32 {
		t.Errorf("X-Watermark-Signature = %q, want 32 hex chars", sig)
	}
	// 8kHz cannot carry light's 8-12kHz band.
	if got := w.Header().Get("X-Watermark-Skipped-Bands"); got != "1" {
		t.Errorf("X-Watermark-Skipped-Bands = %q, want 1", got)
	}
	if w.Header().Get("X-Watermark-PSNR") == "" {
		t.Error("missing X-Watermark-PSNR header")
	}

	// The protected output must decode back to the same shape.
	decoded, meta, err := audio.NewCodec().DecodeWAV(w.Body.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if meta.SampleRate != 8000 || decoded.Length() != 8000 {
		t.Errorf("output shape %d Hz / %d samples, want 8000/8000", meta.SampleRate, decoded.Length())
	}
}

func TestVerifyBlind(t *testing.T) {
	router := testRouter()
	wavData := testWAV(t, 1, 8000)
	body, contentType := multipartBody(t, "track.wav", wavData, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/verify", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.VerifyResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Errorf("success = false: %s", resp.Message)
	}
	if resp.Report == nil || !resp.Report.Blind {
		t.Errorf("expected a blind report, got %+v", resp.Report)
	}
	if resp.Report != nil && resp.Report.IsProtected {
		t.Error("clean upload reported protected")
	}
}

func TestVerifyMissingFile(t *testing.T) {
	router := testRouter()
	body, contentType := multipartBody(t, "", nil, nil)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/watermark/verify", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
