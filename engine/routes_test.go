package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mwhitby/pdfraster/database"
)

// multipartUpload builds a multipart request body with one file field plus
// extra form values
func multipartUpload(t *testing.T, fileName string, fileBody []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(fileBody); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestConvertDocumentEndpoint(t *testing.T) {
	renderer := &fakeRenderer{pages: 2}
	handler := newTestHandler(t, renderer)
	e := handler.Echo
	e.POST("/api/convert", handler.ConvertDocument)

	t.Run("rejects non-PDF upload", func(t *testing.T) {
		body, contentType := multipartUpload(t, "photo.png", []byte("not a pdf"), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for non-PDF upload, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("rejects missing file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/convert", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for missing file, got %d", rec.Code)
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		body, contentType := multipartUpload(t, "doc.pdf", []byte("%PDF-1.4"), map[string]string{"format": "gif"})
		req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for unknown format, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("accepts PDF and runs conversion", func(t *testing.T) {
		body, contentType := multipartUpload(t, "report.pdf", []byte("%PDF-1.4 stand-in"), map[string]string{
			"dpi":    "150",
			"format": "png",
		})
		req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
		req.Header.Set(echo.HeaderContentType, contentType)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var response struct {
			ConversionID string `json:"conversionId"`
			JobID        string `json:"jobId"`
			OutputDir    string `json:"outputDir"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to parse response: %v", err)
		}
		if response.ConversionID == "" || response.JobID == "" {
			t.Fatalf("Expected conversion and job IDs in response: %s", rec.Body.String())
		}
		if filepath.Base(response.OutputDir) != "report_images" {
			t.Errorf("Expected suggested output folder report_images, got %s", response.OutputDir)
		}

		// The worker runs in a goroutine, poll the job until it finishes
		waitForTerminalConversion(t, handler, response.ConversionID)

		done, err := handler.DB.GetConversionByULID(response.ConversionID)
		if err != nil {
			t.Fatalf("Failed to fetch conversion: %v", err)
		}
		if done.Status != database.JobStatusCompleted {
			t.Fatalf("Expected completed conversion, got %s (error: %s)", done.Status, done.Error)
		}
		for page := 1; page <= 2; page++ {
			path := filepath.Join(done.OutputDir, fmt.Sprintf("page_%d.png", page))
			if _, err := os.Stat(path); err != nil {
				t.Errorf("Expected page file %s: %v", path, err)
			}
		}
	})
}

func TestConversionRoutes(t *testing.T) {
	renderer := &fakeRenderer{pages: 2}
	handler := newTestHandler(t, renderer)
	e := handler.Echo
	e.GET("/api/conversions/recent", handler.GetRecentConversions)
	e.GET("/api/conversions/:id", handler.GetConversion)
	e.GET("/api/conversions/:id/files", handler.GetConversionFiles)
	e.POST("/api/jobs/:id/cancel", handler.CancelJob)

	conv := newTestConversion(t, handler, "sample.pdf", 300, "png")
	handler.conversionJobFuncWithTracking(context.Background(), conv, conv.JobID)

	t.Run("get conversion", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+conv.ULID.String(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("get conversion not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions/01JUNKJUNKJUNKJUNKJUNKJUNK", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("recent conversions", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions/recent", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var conversions []database.Conversion
		if err := json.Unmarshal(rec.Body.Bytes(), &conversions); err != nil {
			t.Fatalf("Failed to parse conversions: %v", err)
		}
		if len(conversions) == 0 {
			t.Error("Expected at least one conversion")
		}
	})

	t.Run("list output files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/conversions/"+conv.ULID.String()+"/files", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var files []conversionFile
		if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
			t.Fatalf("Failed to parse files: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("Expected 2 files, got %d", len(files))
		}
		if files[0].Page != 1 || files[1].Page != 2 {
			t.Errorf("Expected files ordered by page, got %d then %d", files[0].Page, files[1].Page)
		}
		if files[0].Name != "page_1.png" {
			t.Errorf("Expected page_1.png first, got %s", files[0].Name)
		}
	})

	t.Run("cancel finished job returns not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/"+conv.JobID.String()+"/cancel", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 cancelling a finished job, got %d", rec.Code)
		}
	})

	t.Run("cancel with bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/jobs/not-a-ulid/cancel", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad job id, got %d", rec.Code)
		}
	})
}

func TestJobRoutes(t *testing.T) {
	renderer := &fakeRenderer{pages: 2}
	handler := newTestHandler(t, renderer)
	e := handler.Echo
	e.GET("/api/jobs/:id", handler.GetJob)
	e.GET("/api/jobs/:id/conversion", handler.GetJobConversion)

	conv := newTestConversion(t, handler, "linked.pdf", 300, "png")
	handler.conversionJobFuncWithTracking(context.Background(), conv, conv.JobID)

	t.Run("get job", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+conv.JobID.String(), nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var job database.Job
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			t.Fatalf("Failed to parse job: %v", err)
		}
		if job.ID != conv.JobID {
			t.Errorf("Expected job %s, got %s", conv.JobID, job.ID)
		}
	})

	t.Run("job resolves its conversion", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+conv.JobID.String()+"/conversion", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var linked database.Conversion
		if err := json.Unmarshal(rec.Body.Bytes(), &linked); err != nil {
			t.Fatalf("Failed to parse conversion: %v", err)
		}
		if linked.ULID != conv.ULID {
			t.Errorf("Expected conversion %s, got %s", conv.ULID, linked.ULID)
		}
		if linked.Name != "linked.pdf" {
			t.Errorf("Expected conversion name linked.pdf, got %s", linked.Name)
		}
	})

	t.Run("cleanup job has no conversion", func(t *testing.T) {
		cleanupJob, err := handler.DB.CreateJob(database.JobTypeCleanup, "Scheduled cleanup")
		if err != nil {
			t.Fatalf("Failed to create cleanup job: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+cleanupJob.ID.String()+"/conversion", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404 for a cleanup job, got %d", rec.Code)
		}
	})

	t.Run("conversion lookup with bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-ulid/conversion", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for bad job id, got %d", rec.Code)
		}
	})
}

// waitForTerminalConversion polls until the conversion reaches a terminal
// state or the deadline passes
func waitForTerminalConversion(t *testing.T, handler *ServerHandler, ulidStr string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		conv, err := handler.DB.GetConversionByULID(ulidStr)
		if err == nil && conv.Status.IsTerminal() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("Conversion did not finish in time")
}
