package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// DPI limits match what the spinner in the UI offers.
const (
	MinDPI     = 72
	MaxDPI     = 600
	DefaultDPI = 300
)

// ServerConfig contains all of the server settings
type ServerConfig struct {
	StormID          int `storm:"id"`
	ListenAddrIP     string
	ListenAddrPort   string
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     string
	DatabaseUser     string
	DatabasePassword string `json:"-"`
	DatabaseDbname   string
	DatabaseSslmode  string
	UploadPath       string // absolute path where uploaded PDFs land
	OutputPath       string // absolute root under which page images are written
	KeepUploads      bool   // keep the uploaded PDF after a conversion finishes
	DefaultDPI       int
	DefaultFormat    string
	Renderer         string // fitz or pdfium
	JPEGQuality      int
	Grayscale        bool // convert pages to grayscale before encoding
	MaxWidth         int  // downscale pages wider than this, 0 disables
	RetentionDays    int  // purge finished jobs/conversions older than this
	CleanupInterval  int  // minutes between cleanup runs
	UseReverseProxy  bool
	BaseURL          string
	FrontEndConfig
}

// FrontEndConfig stores all of the frontend settings
type FrontEndConfig struct {
	RecentConversionCount int
	ServerAPIURL          string
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolVal
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// RetentionAge converts the configured retention days to a duration for the
// cleanup job. Non-positive settings fall back to the default.
func (sc ServerConfig) RetentionAge() time.Duration {
	days := sc.RetentionDays
	if days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
}

// ClampDPI forces a requested DPI into the supported range.
func ClampDPI(dpi int) int {
	if dpi < MinDPI {
		return MinDPI
	}
	if dpi > MaxDPI {
		return MaxDPI
	}
	return dpi
}

// SetupServer loads configuration and returns ServerConfig and Logger
func SetupServer() (ServerConfig, *slog.Logger) {
	serverConfigLive := ServerConfig{}
	frontEndConfigLive := FrontEndConfig{}

	// Load .env file (silently ignore if doesn't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load("config.env")

	logger := setupLogging()
	Logger = logger

	// Load configuration from environment variables with defaults

	// Server configuration
	serverConfigLive.ListenAddrPort = getEnv("SERVER_PORT", "8000")
	serverConfigLive.ListenAddrIP = getEnv("SERVER_ADDR", "127.0.0.1")

	// Database configuration
	serverConfigLive.DatabaseType = getEnv("DATABASE_TYPE", "sqlite")
	serverConfigLive.DatabaseHost = getEnv("DATABASE_HOST", "localhost")
	serverConfigLive.DatabasePort = getEnv("DATABASE_PORT", "5432")
	serverConfigLive.DatabaseUser = getEnv("DATABASE_USER", "pdfraster")
	serverConfigLive.DatabasePassword = getEnv("DATABASE_PASSWORD", "")
	serverConfigLive.DatabaseDbname = getEnv("DATABASE_NAME", "databases/pdfraster.sqlite")
	serverConfigLive.DatabaseSslmode = getEnv("DATABASE_SSLMODE", "")

	logger.Info("Database configuration loaded", "type", serverConfigLive.DatabaseType)

	// Upload folder, uploaded PDFs sit here while they are converted
	uploadDir := filepath.ToSlash(getEnv("UPLOAD_PATH", "uploads"))
	uploadDirAbs, err := filepath.Abs(uploadDir)
	if err != nil {
		logger.Error("Failed creating absolute path for upload directory", "error", err)
	}
	serverConfigLive.UploadPath = uploadDirAbs
	serverConfigLive.KeepUploads = getEnvBool("KEEP_UPLOADS", false)

	// Output root, each conversion writes page images into a folder below it
	outputDir := filepath.ToSlash(getEnv("OUTPUT_PATH", "output"))
	outputDirAbs, err := filepath.Abs(outputDir)
	if err != nil {
		logger.Error("Failed creating absolute path for output directory", "error", err)
	}
	serverConfigLive.OutputPath = outputDirAbs

	// Conversion defaults
	serverConfigLive.DefaultDPI = ClampDPI(getEnvInt("DEFAULT_DPI", DefaultDPI))
	serverConfigLive.DefaultFormat = strings.ToLower(getEnv("DEFAULT_FORMAT", "png"))
	serverConfigLive.Renderer = strings.ToLower(getEnv("PDF_RENDERER", "fitz"))
	serverConfigLive.JPEGQuality = getEnvInt("JPEG_QUALITY", 90)
	serverConfigLive.Grayscale = getEnvBool("GRAYSCALE", false)
	serverConfigLive.MaxWidth = getEnvInt("MAX_WIDTH", 0)

	// Housekeeping
	serverConfigLive.RetentionDays = getEnvInt("RETENTION_DAYS", 14)
	serverConfigLive.CleanupInterval = getEnvInt("CLEANUP_INTERVAL", 60)

	fmt.Println("\n========================================")
	fmt.Println("   pdfRaster - PDF to Images Converter")
	fmt.Println("========================================")
	fmt.Printf("Server will start on: %s:%s\n", serverConfigLive.ListenAddrIP, serverConfigLive.ListenAddrPort)
	if serverConfigLive.ListenAddrIP == "" {
		fmt.Println("(Listening on all network interfaces)")
	}
	fmt.Printf("Page images root: %s\n", serverConfigLive.OutputPath)
	fmt.Printf("Detailed logs: %s\n", getEnv("LOG_FILE", "pdfraster.log"))
	fmt.Println("Initializing...")

	// Reverse proxy configuration
	serverConfigLive.UseReverseProxy = getEnvBool("PROXY_ENABLED", false)
	serverConfigLive.BaseURL = getEnv("BASE_URL", "")

	if serverConfigLive.UseReverseProxy {
		logger.Info("Using Reverse Proxy", "baseURL", serverConfigLive.BaseURL)
	} else {
		logger.Info("Using relative URLs for API calls (frontend will use same host it was served from)")
	}

	// Frontend configuration
	frontEndConfigLive.RecentConversionCount = getEnvInt("RECENT_CONVERSION_COUNT", 10)
	frontEndConfigLive.ServerAPIURL = getEnv("SERVER_API_URL", "")
	serverConfigLive.FrontEndConfig = frontEndConfigLive

	return serverConfigLive, logger
}

// setupLogging configures the application logger
func setupLogging() *slog.Logger {
	logLevel := getEnv("LOG_LEVEL", "debug")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelDebug
	}

	handlerOptions := &slog.HandlerOptions{Level: level}

	logOutput := getEnv("LOG_OUTPUT", "file")
	var logWriter io.Writer

	if logOutput == "stdout" {
		logWriter = os.Stdout
	} else {
		logPath, err := filepath.Abs(filepath.ToSlash(getEnv("LOG_FILE", "pdfraster.log")))
		if err != nil {
			fmt.Printf("Error creating log file path: %v\n", err)
			logWriter = os.Stdout
		} else {
			logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
			if err != nil {
				fmt.Printf("Failed to open log file: %v\n", err)
				logWriter = os.Stdout
			} else {
				logWriter = logFile
				fmt.Println("Logging to file: ", logPath)
			}
		}
	}

	handler := slog.NewTextHandler(logWriter, handlerOptions)
	return slog.New(handler)
}

// SuggestOutputFolder proposes an output folder name for an uploaded PDF,
// mirroring what the file picker pre-fills in the UI.
func SuggestOutputFolder(pdfName string) string {
	base := strings.TrimSuffix(filepath.Base(pdfName), filepath.Ext(pdfName))
	if base == "" {
		base = "pdf"
	}
	return base + "_images"
}
