package engine

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/mwhitby/pdfraster/config"
	"github.com/mwhitby/pdfraster/database"
	"github.com/mwhitby/pdfraster/engine/imageenc"
	"github.com/mwhitby/pdfraster/engine/pdfrenderer"
	"github.com/mwhitby/pdfraster/internal/build"
	"github.com/oklog/ulid/v2"
)

// ServerHandler will inject the variables needed into routes
type ServerHandler struct {
	DB           database.Repository
	Echo         *echo.Echo
	ServerConfig config.ServerConfig
	Renderer     pdfrenderer.Renderer

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc // keyed by job ID
}

// NewServerHandler wires the handler used by all routes
func NewServerHandler(db database.Repository, e *echo.Echo, serverConfig config.ServerConfig, renderer pdfrenderer.Renderer) *ServerHandler {
	return &ServerHandler{
		DB:           db,
		Echo:         e,
		ServerConfig: serverConfig,
		Renderer:     renderer,
		cancels:      make(map[string]context.CancelFunc),
	}
}

type conversionFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
	Page int    `json:"page"`
}

// ConvertDocument accepts a PDF upload and starts a conversion job
// @Summary Convert a PDF to images
// @Description Upload a PDF and start converting each page to an image in the background
// @Tags Conversions
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "PDF file to convert"
// @Param dpi formData int false "Resolution in DPI (72-600, default from config)"
// @Param format formData string false "Output format: png, jpg, jpeg, bmp or tiff"
// @Param output formData string false "Output folder name (default: <pdfname>_images)"
// @Success 200 {object} map[string]interface{} "Conversion started with conversionId and jobId"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /convert [post]
func (serverHandler *ServerHandler) ConvertDocument(c echo.Context) error {
	request := c.Request()

	file, fileHeader, err := request.FormFile("file")
	if err != nil {
		Logger.Warn("Convert request without file", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "No PDF file supplied",
		})
	}
	defer file.Close()

	fileName := filepath.Base(fileHeader.Filename)
	if !strings.EqualFold(filepath.Ext(fileName), ".pdf") {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": fmt.Sprintf("Not a PDF file: %s", fileName),
		})
	}

	// DPI outside the spinner range is clamped rather than rejected
	dpi := serverHandler.ServerConfig.DefaultDPI
	if dpiStr := request.FormValue("dpi"); dpiStr != "" {
		parsed, err := strconv.Atoi(dpiStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"error": fmt.Sprintf("Invalid DPI value: %s", dpiStr),
			})
		}
		dpi = config.ClampDPI(parsed)
	}

	formatStr := request.FormValue("format")
	if formatStr == "" {
		formatStr = serverHandler.ServerConfig.DefaultFormat
	}
	format, err := imageenc.ParseFormat(formatStr)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": err.Error(),
		})
	}

	outputName := request.FormValue("output")
	if outputName == "" {
		outputName = config.SuggestOutputFolder(fileName)
	}
	// keep the folder inside the configured output root
	outputName = filepath.Base(filepath.Clean(outputName))
	if outputName == "." || outputName == string(filepath.Separator) {
		outputName = config.SuggestOutputFolder(fileName)
	}
	outputDir := filepath.Join(serverHandler.ServerConfig.OutputPath, outputName)

	conv, err := database.NewConversion(fileName, "", outputDir, dpi, string(format))
	if err != nil {
		Logger.Error("Failed to build conversion record", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create conversion",
		})
	}

	// Upload goes to its own folder so repeated names don't clobber each other
	uploadPath := filepath.Join(serverHandler.ServerConfig.UploadPath, conv.ULID.String()+"_"+fileName)
	if err := os.MkdirAll(filepath.Dir(uploadPath), os.ModePerm); err != nil {
		Logger.Error("Unable to create upload directory", "path", uploadPath, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to store upload",
		})
	}
	body, err := io.ReadAll(file)
	if err != nil {
		Logger.Error("Unable to read uploaded file", "fileName", fileName, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read upload",
		})
	}
	if err := os.WriteFile(uploadPath, body, 0644); err != nil {
		Logger.Error("Unable to write uploaded file", "path", uploadPath, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to store upload",
		})
	}
	conv.InputPath = uploadPath

	job, err := serverHandler.DB.CreateJob(database.JobTypeConversion, fmt.Sprintf("Converting %s", fileName))
	if err != nil {
		Logger.Error("Failed to create conversion job", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to create job",
		})
	}
	conv.JobID = job.ID

	if err := serverHandler.DB.SaveConversion(conv); err != nil {
		Logger.Error("Failed to save conversion", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to save conversion",
		})
	}

	serverHandler.StartConversion(conv, job.ID)

	Logger.Info("Conversion started", "fileName", fileName, "dpi", dpi, "format", format, "outputDir", outputDir, "jobID", job.ID.String())
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Conversion started",
		"conversionId": conv.ULID.String(),
		"jobId":        job.ID.String(),
		"outputDir":    outputDir,
	})
}

// StartConversion launches the background worker for a saved conversion. The
// job can be stopped through CancelJob until it reaches a terminal state.
func (serverHandler *ServerHandler) StartConversion(conv *database.Conversion, jobID ulid.ULID) {
	ctx, cancel := context.WithCancel(context.Background())

	serverHandler.cancelMu.Lock()
	serverHandler.cancels[jobID.String()] = cancel
	serverHandler.cancelMu.Unlock()

	go func() {
		defer func() {
			serverHandler.cancelMu.Lock()
			delete(serverHandler.cancels, jobID.String())
			serverHandler.cancelMu.Unlock()
			cancel()
		}()
		serverHandler.conversionJobFuncWithTracking(ctx, conv, jobID)
	}()
}

// CancelJob requests cancellation of a running conversion job
// @Summary Cancel a job
// @Description Stop a running conversion between pages. Pages already written stay on disk.
// @Tags Jobs
// @Accept json
// @Produce json
// @Param id path string true "Job ID (ULID)"
// @Success 200 {object} map[string]interface{} "Cancellation requested"
// @Failure 400 {object} map[string]interface{} "Invalid job ID"
// @Failure 404 {object} map[string]interface{} "Job not found or already finished"
// @Router /jobs/{id}/cancel [post]
func (serverHandler *ServerHandler) CancelJob(c echo.Context) error {
	jobIDStr := c.Param("id")

	if _, err := ulid.Parse(jobIDStr); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": "Invalid job ID format",
		})
	}

	serverHandler.cancelMu.Lock()
	cancel, ok := serverHandler.cancels[jobIDStr]
	serverHandler.cancelMu.Unlock()

	if !ok {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Job not running",
		})
	}

	cancel()
	Logger.Info("Cancellation requested", "jobID", jobIDStr)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Cancellation requested",
		"jobId":   jobIDStr,
	})
}

// GetRecentConversions retrieves recent conversions with pagination
// @Summary Get recent conversions
// @Description Retrieve a list of recent conversions with pagination
// @Tags Conversions
// @Accept json
// @Produce json
// @Param limit query int false "Number of conversions to return (default: 20)"
// @Param offset query int false "Offset for pagination (default: 0)"
// @Success 200 {array} database.Conversion "List of conversions"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /conversions/recent [get]
func (serverHandler *ServerHandler) GetRecentConversions(c echo.Context) error {
	limit := 20
	offset := 0

	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	conversions, err := serverHandler.DB.GetRecentConversions(limit, offset)
	if err != nil {
		Logger.Error("Failed to get recent conversions", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to retrieve conversions",
		})
	}

	if conversions == nil {
		conversions = []database.Conversion{}
	}

	return c.JSON(http.StatusOK, conversions)
}

// GetConversion retrieves a conversion by ULID
// @Summary Get conversion by ID
// @Description Retrieve details of a specific conversion by its ULID
// @Tags Conversions
// @Accept json
// @Produce json
// @Param id path string true "Conversion ULID"
// @Success 200 {object} database.Conversion "Conversion details"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id} [get]
func (serverHandler *ServerHandler) GetConversion(c echo.Context) error {
	ulidStr := c.Param("id")

	conversion, err := serverHandler.DB.GetConversionByULID(ulidStr)
	if err != nil {
		Logger.Error("Failed to get conversion", "ulid", ulidStr, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Conversion not found",
		})
	}

	return c.JSON(http.StatusOK, conversion)
}

// DeleteConversion removes a conversion record and its output images
// @Summary Delete a conversion
// @Description Delete a conversion record, its output folder and the kept upload if any
// @Tags Conversions
// @Accept json
// @Produce json
// @Param id path string true "Conversion ULID"
// @Success 200 {string} string "Conversion Deleted"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /conversions/{id} [delete]
func (serverHandler *ServerHandler) DeleteConversion(c echo.Context) error {
	ulidStr := c.Param("id")

	conversion, err := serverHandler.DB.GetConversionByULID(ulidStr)
	if err != nil {
		Logger.Error("Unable to find conversion to delete", "ulid", ulidStr, "error", err)
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Conversion not found",
		})
	}

	if !conversion.Status.IsTerminal() {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": "Conversion is still running, cancel it first",
		})
	}

	// Only remove output folders that live under our output root
	if conversion.OutputDir != "" && isSubPath(serverHandler.ServerConfig.OutputPath, conversion.OutputDir) {
		if err := os.RemoveAll(conversion.OutputDir); err != nil {
			Logger.Error("Unable to delete output folder", "path", conversion.OutputDir, "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{
				"error": "Failed to delete output folder",
			})
		}
	}

	if conversion.InputPath != "" && isSubPath(serverHandler.ServerConfig.UploadPath, conversion.InputPath) {
		if err := os.Remove(conversion.InputPath); err != nil && !os.IsNotExist(err) {
			Logger.Warn("Unable to delete kept upload", "path", conversion.InputPath, "error", err)
		}
	}

	if err := serverHandler.DB.DeleteConversion(ulidStr); err != nil {
		Logger.Error("Unable to delete conversion from database", "ulid", ulidStr, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to delete conversion",
		})
	}

	return c.JSON(http.StatusOK, "Conversion Deleted")
}

// GetConversionFiles lists the page images written for a conversion
// @Summary List conversion output files
// @Description Retrieve the page images written so far for a conversion, ordered by page number
// @Tags Conversions
// @Accept json
// @Produce json
// @Param id path string true "Conversion ULID"
// @Success 200 {array} conversionFile "Output files"
// @Failure 404 {object} map[string]interface{} "Conversion not found"
// @Router /conversions/{id}/files [get]
func (serverHandler *ServerHandler) GetConversionFiles(c echo.Context) error {
	ulidStr := c.Param("id")

	conversion, err := serverHandler.DB.GetConversionByULID(ulidStr)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "Conversion not found",
		})
	}

	files := []conversionFile{}
	entries, err := os.ReadDir(conversion.OutputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return c.JSON(http.StatusOK, files)
		}
		Logger.Error("Unable to read output folder", "path", conversion.OutputDir, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to read output folder",
		})
	}

	folderName := filepath.Base(conversion.OutputDir)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		page, ok := parsePageNumber(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, conversionFile{
			Name: entry.Name(),
			Size: info.Size(),
			URL:  "/outputs/" + folderName + "/" + entry.Name(),
			Page: page,
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Page < files[j].Page })
	return c.JSON(http.StatusOK, files)
}

// parsePageNumber extracts the page number from a page_<n>.<ext> file name
func parsePageNumber(name string) (int, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, "page_") {
		return 0, false
	}
	page, err := strconv.Atoi(strings.TrimPrefix(base, "page_"))
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

// isSubPath reports whether child is inside root after cleaning
func isSubPath(root, child string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absChild, err := filepath.Abs(child)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absChild)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// GetAboutInfo returns information about the application configuration
// @Summary Get application information
// @Description Retrieve information about the application configuration, version, and database
// @Tags Admin
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{} "Application information"
// @Router /about [get]
func (serverHandler *ServerHandler) GetAboutInfo(c echo.Context) error {
	aboutInfo := map[string]interface{}{
		"version":       build.Version,
		"renderer":      serverHandler.ServerConfig.Renderer,
		"databaseType":  serverHandler.ServerConfig.DatabaseType,
		"databaseHost":  serverHandler.ServerConfig.DatabaseHost,
		"databasePort":  serverHandler.ServerConfig.DatabasePort,
		"databaseName":  serverHandler.ServerConfig.DatabaseDbname,
		"uploadPath":    serverHandler.ServerConfig.UploadPath,
		"outputPath":    serverHandler.ServerConfig.OutputPath,
		"defaultDpi":    serverHandler.ServerConfig.DefaultDPI,
		"defaultFormat": serverHandler.ServerConfig.DefaultFormat,
		"minDpi":        config.MinDPI,
		"maxDpi":        config.MaxDPI,
	}

	return c.JSON(http.StatusOK, aboutInfo)
}
