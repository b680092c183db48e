package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/ledongthuc/pdf"
	"github.com/mwhitby/pdfraster/database"
	"github.com/mwhitby/pdfraster/engine/imageenc"
	"github.com/oklog/ulid/v2"
)

// conversionJobFuncWithSteps converts a PDF through explicit steps with progress tracking
// Step 1: Preflight the upload and open the document
// Step 2: Render, post-process and save each page, checking for cancellation between pages
// Step 3: Finalize counts and clean up the upload
func (serverHandler *ServerHandler) conversionJobFuncWithTracking(ctx context.Context, conv *database.Conversion, jobID ulid.ULID) {
	db := serverHandler.DB

	// Add panic recovery and update job status on panic
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in conversion job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
			db.UpdateConversionStatus(conv.ULID.String(), database.JobStatusFailed, fmt.Sprintf("Panic: %v", r))
		}
	}()

	fileName := conv.Name
	ulidStr := conv.ULID.String()

	// Mark job as running
	if err := db.UpdateJobStatus(jobID, database.JobStatusRunning, fmt.Sprintf("Converting %s", fileName)); err != nil {
		Logger.Error("Failed to update job status", "error", err)
	}
	db.UpdateConversionStatus(ulidStr, database.JobStatusRunning, "")

	// Step 1: Preflight and open
	db.UpdateJobProgress(jobID, 0, fmt.Sprintf("%s - Opening PDF", fileName))
	Logger.Info("Step 1: Opening PDF", "fileName", fileName, "inputPath", conv.InputPath)

	if _, err := os.Stat(conv.InputPath); err != nil {
		serverHandler.failConversion(conv, jobID, fmt.Errorf("unable to access PDF file: %w", err))
		return
	}

	// Cheap parse check before firing up the renderer. Some PDFs that this
	// parser rejects still render fine, so a failure here only logs.
	if pageCount, err := preflightPageCount(conv.InputPath); err != nil {
		Logger.Info("PDF preflight parse failed, renderer will decide", "fileName", fileName, "error", err)
	} else {
		Logger.Debug("PDF preflight parse succeeded", "fileName", fileName, "pages", pageCount)
	}

	doc, err := serverHandler.Renderer.Open(conv.InputPath)
	if err != nil {
		serverHandler.failConversion(conv, jobID, fmt.Errorf("unable to open PDF: %w", err))
		return
	}
	defer doc.Close()

	totalPages := doc.PageCount()
	if totalPages <= 0 {
		serverHandler.failConversion(conv, jobID, fmt.Errorf("PDF has no pages: %s", fileName))
		return
	}

	if err := os.MkdirAll(conv.OutputDir, os.ModePerm); err != nil {
		serverHandler.failConversion(conv, jobID, fmt.Errorf("unable to create output folder: %w", err))
		return
	}

	db.UpdateConversionPageCount(ulidStr, totalPages)
	Logger.Info("Step 1 complete: PDF opened", "fileName", fileName, "pages", totalPages)

	format := imageenc.Format(conv.Format)
	encodeOpts := imageenc.Options{JPEGQuality: serverHandler.ServerConfig.JPEGQuality}

	// Step 2: Render and save page by page
	pagesDone := 0
	pageErrors := 0
	var saveErrorDetails []string

	for pageIndex := 0; pageIndex < totalPages; pageIndex++ {
		// Cancellation is only honored between pages so finished pages stay intact
		if ctx.Err() != nil {
			Logger.Info("Conversion cancelled", "fileName", fileName, "pagesDone", pagesDone, "jobID", jobID)
			db.UpdateJobStatus(jobID, database.JobStatusCancelled, fmt.Sprintf("Cancelled after %d of %d pages", pagesDone, totalPages))
			db.UpdateConversionStatus(ulidStr, database.JobStatusCancelled, "")
			db.UpdateConversionProgress(ulidStr, pagesDone)
			return
		}

		pageNum := pageIndex + 1
		stepMsg := fmt.Sprintf("%s - Converting page %d of %d", fileName, pageNum, totalPages)
		db.UpdateJobProgress(jobID, (pageIndex*100)/totalPages, stepMsg)

		img, err := doc.RenderPage(pageIndex, conv.DPI)
		if err != nil {
			// A page that cannot be rendered means the document is bad
			serverHandler.failConversion(conv, jobID, fmt.Errorf("unable to render page %d: %w", pageNum, err))
			return
		}

		img = serverHandler.postProcess(img)

		outName := imageenc.PageFileName(pageNum, format)
		outPath := filepath.Join(conv.OutputDir, outName)
		if err := writePageImage(outPath, img, format, encodeOpts); err != nil {
			// Save failures are collected, the run carries on with the next page
			Logger.Error("Unable to save page image", "path", outPath, "error", err)
			pageErrors++
			saveErrorDetails = append(saveErrorDetails, fmt.Sprintf("page %d: %v", pageNum, err))
			continue
		}

		pagesDone++
		db.UpdateConversionProgress(ulidStr, pagesDone)
	}

	// Step 3: Finalize
	// Save errors are tolerated per page, not in aggregate. A run that wrote
	// nothing at all is a failure.
	if pagesDone == 0 {
		serverHandler.failConversion(conv, jobID, fmt.Errorf("no pages could be saved: %s", saveErrorDetails[0]))
		return
	}

	if !serverHandler.ServerConfig.KeepUploads {
		if err := os.Remove(conv.InputPath); err != nil {
			Logger.Warn("Unable to remove uploaded PDF after conversion", "path", conv.InputPath, "error", err)
		}
	}

	if err := db.CompleteConversion(ulidStr, pagesDone, pageErrors); err != nil {
		Logger.Error("Failed to mark conversion as complete", "error", err)
	}

	summary := database.JobSummary{
		PagesConverted: pagesDone,
		PagesTotal:     totalPages,
		PageErrors:     pageErrors,
		OutputDir:      conv.OutputDir,
	}
	if pageErrors > 0 {
		summary.Details = fmt.Sprintf("%d pages could not be saved: %s", pageErrors, saveErrorDetails[0])
	}
	result, err := json.Marshal(summary)
	if err != nil {
		Logger.Error("Failed to marshal job summary", "error", err)
		result = []byte("{}")
	}
	if err := db.CompleteJob(jobID, string(result)); err != nil {
		Logger.Error("Failed to mark job as complete", "error", err)
	}

	Logger.Info("Conversion job completed", "jobID", jobID, "fileName", fileName, "pagesDone", pagesDone, "total", totalPages, "pageErrors", pageErrors)
}

// failConversion records a fatal error against the job and the conversion
func (serverHandler *ServerHandler) failConversion(conv *database.Conversion, jobID ulid.ULID, convErr error) {
	Logger.Error("Conversion failed", "fileName", conv.Name, "jobID", jobID, "error", convErr)
	if err := serverHandler.DB.UpdateJobError(jobID, convErr.Error()); err != nil {
		Logger.Error("Failed to record job error", "error", err)
	}
	if err := serverHandler.DB.UpdateConversionStatus(conv.ULID.String(), database.JobStatusFailed, convErr.Error()); err != nil {
		Logger.Error("Failed to record conversion error", "error", err)
	}
}

// postProcess applies the configured grayscale and width limit to a rendered page
func (serverHandler *ServerHandler) postProcess(img image.Image) image.Image {
	if serverHandler.ServerConfig.Grayscale {
		img = imaging.Grayscale(img)
	}
	maxWidth := serverHandler.ServerConfig.MaxWidth
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	return img
}

// writePageImage encodes img to a temp file and renames it into place so a
// failed save never leaves a partial page file behind
func writePageImage(outPath string, img image.Image, format imageenc.Format, opts imageenc.Options) error {
	tmpPath := outPath + ".tmp"
	outFile, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	if err := imageenc.Encode(outFile, img, format, opts); err != nil {
		outFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := outFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, outPath)
}

// preflightPageCount parses the PDF header without rendering anything
func preflightPageCount(filePath string) (int, error) {
	pdfFile, reader, err := pdf.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer pdfFile.Close()
	return reader.NumPage(), nil
}

// cleanupJobFuncWithTracking removes old finished conversions, their job rows
// and any stale uploads left behind
func (serverHandler *ServerHandler) cleanupJobFuncWithTracking(db database.Repository, jobID ulid.ULID) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Error("Panic recovered in cleanup job", "panic", r, "jobID", jobID)
			db.UpdateJobError(jobID, fmt.Sprintf("Panic: %v", r))
		}
	}()

	db.UpdateJobStatus(jobID, database.JobStatusRunning, "Removing old conversions")

	serverConfig, err := database.FetchConfigFromDB(db)
	if err != nil {
		Logger.Error("Error reading config from database", "error", err)
		serverConfig = serverHandler.ServerConfig
	}

	retention := serverConfig.RetentionAge()

	db.UpdateJobProgress(jobID, 20, "Deleting old conversion records")
	removedConversions, err := db.DeleteOldConversions(retention)
	if err != nil {
		Logger.Error("Failed to delete old conversions", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Failed to delete old conversions: %v", err))
		return
	}

	db.UpdateJobProgress(jobID, 60, "Deleting old job records")
	removedJobs, err := db.DeleteOldJobs(retention)
	if err != nil {
		Logger.Error("Failed to delete old jobs", "error", err)
		db.UpdateJobError(jobID, fmt.Sprintf("Failed to delete old jobs: %v", err))
		return
	}

	db.UpdateJobProgress(jobID, 80, "Removing stale uploads")
	removedUploads := serverHandler.removeStaleUploads(db)

	result := fmt.Sprintf(`{"conversionsRemoved": %d, "jobsRemoved": %d, "uploadsRemoved": %d}`, removedConversions, removedJobs, removedUploads)
	if err := db.CompleteJob(jobID, result); err != nil {
		Logger.Error("Failed to mark cleanup job as complete", "error", err)
	}

	Logger.Info("Cleanup job completed", "jobID", jobID, "conversions", removedConversions, "jobs", removedJobs, "uploads", removedUploads)
}

// removeStaleUploads deletes uploaded PDFs no conversion refers to any more
func (serverHandler *ServerHandler) removeStaleUploads(db database.Repository) int {
	uploadPath := serverHandler.ServerConfig.UploadPath
	if uploadPath == "" {
		return 0
	}

	// Gather every input path the database still knows about
	tracked := make(map[string]bool)
	offset := 0
	for {
		conversions, err := db.GetRecentConversions(100, offset)
		if err != nil {
			Logger.Error("Failed to list conversions for upload cleanup", "error", err)
			return 0
		}
		if len(conversions) == 0 {
			break
		}
		for _, conv := range conversions {
			if conv.InputPath != "" {
				tracked[filepath.Clean(conv.InputPath)] = true
			}
		}
		offset += len(conversions)
	}

	entries, err := os.ReadDir(uploadPath)
	if err != nil {
		if !os.IsNotExist(err) {
			Logger.Error("Unable to read upload folder", "path", uploadPath, "error", err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fullPath := filepath.Clean(filepath.Join(uploadPath, entry.Name()))
		if tracked[fullPath] {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			Logger.Warn("Unable to remove stale upload", "path", fullPath, "error", err)
			continue
		}
		Logger.Info("Removed stale upload", "path", fullPath)
		removed++
	}
	return removed
}
