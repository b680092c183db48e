package database

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/mwhitby/pdfraster/config"
	"github.com/oklog/ulid/v2"
)

// Conversion is one PDF-to-images run as stored in the database. The row is
// created when the upload is accepted and updated as the worker progresses.
type Conversion struct {
	StormID     int // ID field (kept as StormID for backward compatibility)
	ULID        ulid.ULID
	JobID       ulid.ULID // job carrying live progress for this conversion
	Name        string    // original PDF file name
	InputPath   string    // full path to the uploaded PDF
	OutputDir   string    // full path to the folder holding the page images
	DPI         int
	Format      string // png, jpg, jpeg, bmp or tiff
	PageCount   int
	PagesDone   int
	PageErrors  int // pages that rendered but could not be saved
	Status      JobStatus
	Error       string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// Repository defines database operations
type Repository interface {
	Close() error
	SaveConversion(conv *Conversion) error
	GetConversionByULID(ulid string) (*Conversion, error)
	GetConversionByJobID(jobID string) (*Conversion, error)
	GetRecentConversions(limit, offset int) ([]Conversion, error)
	UpdateConversionPageCount(ulid string, pageCount int) error
	UpdateConversionProgress(ulid string, pagesDone int) error
	UpdateConversionStatus(ulid string, status JobStatus, errMsg string) error
	CompleteConversion(ulid string, pagesDone, pageErrors int) error
	DeleteConversion(ulid string) error
	DeleteOldConversions(olderThan time.Duration) (int, error)
	SaveConfig(config *config.ServerConfig) error
	GetConfig() (*config.ServerConfig, error)
	// Job tracking methods
	CreateJob(jobType JobType, message string) (*Job, error)
	UpdateJobProgress(jobID ulid.ULID, progress int, currentStep string) error
	UpdateJobStatus(jobID ulid.ULID, status JobStatus, message string) error
	UpdateJobError(jobID ulid.ULID, errorMsg string) error
	CompleteJob(jobID ulid.ULID, result string) error
	GetJob(jobID ulid.ULID) (*Job, error)
	GetRecentJobs(limit, offset int) ([]Job, error)
	GetActiveJobs() ([]Job, error)
	DeleteOldJobs(olderThan time.Duration) (int, error)
}

// FetchConfigFromDB pulls the server config from the database
func FetchConfigFromDB(db Repository) (config.ServerConfig, error) {
	serverConfig, err := db.GetConfig()
	if err != nil {
		Logger.Error("Unable to fetch server config from db", "error", err)
		return config.ServerConfig{}, err
	}
	return *serverConfig, nil
}

// WriteConfigToDB writes the serverconfig to the database for later retrieval
func WriteConfigToDB(serverConfig config.ServerConfig, db Repository) {
	serverConfig.StormID = 1 // config is stored in row 1
	err := db.SaveConfig(&serverConfig)
	if err != nil {
		Logger.Error("Unable to write server config to database", "error", err)
	}
}

// NewConversion builds a conversion record for an accepted upload. The caller
// persists it with SaveConversion once the worker job has been created.
func NewConversion(name, inputPath, outputDir string, dpi int, format string) (*Conversion, error) {
	now := time.Now()
	newULID, err := CalculateUUID(now)
	if err != nil {
		Logger.Error("Cannot generate ULID", "name", name, "error", err)
		return nil, err
	}

	return &Conversion{
		ULID:      newULID,
		Name:      name,
		InputPath: inputPath,
		OutputDir: outputDir,
		DPI:       dpi,
		Format:    format,
		Status:    JobStatusPending,
		CreatedAt: now,
	}, nil
}

// CalculateUUID for the incoming file
func CalculateUUID(time time.Time) (ulid.ULID, error) {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.UnixNano())), 0)
	newULID, err := ulid.New(ulid.Timestamp(time), entropy)
	if err != nil {
		return newULID, err
	}
	return newULID, nil
}
