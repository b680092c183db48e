package database

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/uptrace/bun"
)

// BunConversion represents the conversions table for Bun ORM
type BunConversion struct {
	bun.BaseModel `bun:"table:conversions,alias:c"`

	ID          int        `bun:"id,pk,autoincrement"`
	ULID        string     `bun:"ulid,notnull,unique"` // Stored as string in DB
	JobID       string     `bun:"job_id,notnull"`
	Name        string     `bun:"name,notnull"`
	InputPath   string     `bun:"input_path,notnull"`
	OutputDir   string     `bun:"output_dir,notnull"`
	DPI         int        `bun:"dpi,notnull"`
	Format      string     `bun:"format,notnull"`
	PageCount   int        `bun:"page_count,default:0"`
	PagesDone   int        `bun:"pages_done,default:0"`
	PageErrors  int        `bun:"page_errors,default:0"`
	Status      string     `bun:"status,default:'pending'"`
	Error       string     `bun:"error,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToConversion converts BunConversion to Conversion
func (bc *BunConversion) ToConversion() (*Conversion, error) {
	parsedULID, err := ulid.Parse(bc.ULID)
	if err != nil {
		return nil, err
	}
	parsedJobID, err := ulid.Parse(bc.JobID)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		StormID:     bc.ID,
		ULID:        parsedULID,
		JobID:       parsedJobID,
		Name:        bc.Name,
		InputPath:   bc.InputPath,
		OutputDir:   bc.OutputDir,
		DPI:         bc.DPI,
		Format:      bc.Format,
		PageCount:   bc.PageCount,
		PagesDone:   bc.PagesDone,
		PageErrors:  bc.PageErrors,
		Status:      JobStatus(bc.Status),
		Error:       bc.Error,
		CreatedAt:   bc.CreatedAt,
		CompletedAt: bc.CompletedAt,
	}, nil
}

// FromConversion converts Conversion to BunConversion
func FromConversion(conv *Conversion) *BunConversion {
	return &BunConversion{
		ID:          conv.StormID,
		ULID:        conv.ULID.String(),
		JobID:       conv.JobID.String(),
		Name:        conv.Name,
		InputPath:   conv.InputPath,
		OutputDir:   conv.OutputDir,
		DPI:         conv.DPI,
		Format:      conv.Format,
		PageCount:   conv.PageCount,
		PagesDone:   conv.PagesDone,
		PageErrors:  conv.PageErrors,
		Status:      string(conv.Status),
		Error:       conv.Error,
		CreatedAt:   conv.CreatedAt,
		CompletedAt: conv.CompletedAt,
	}
}

// BunServerConfig represents the server_config table for Bun ORM
type BunServerConfig struct {
	bun.BaseModel `bun:"table:server_config,alias:sc"`

	ID                    int       `bun:"id,pk"`
	ListenAddrIP          string    `bun:"listen_addr_ip,default:''"`
	ListenAddrPort        string    `bun:"listen_addr_port,notnull,default:'8000'"`
	UploadPath            string    `bun:"upload_path,notnull,default:''"`
	OutputPath            string    `bun:"output_path,notnull,default:''"`
	KeepUploads           bool      `bun:"keep_uploads,notnull,default:false"`
	DefaultDPI            int       `bun:"default_dpi,notnull,default:300"`
	DefaultFormat         string    `bun:"default_format,notnull,default:'png'"`
	Renderer              string    `bun:"renderer,notnull,default:'fitz'"`
	JPEGQuality           int       `bun:"jpeg_quality,notnull,default:90"`
	Grayscale             bool      `bun:"grayscale,notnull,default:false"`
	MaxWidth              int       `bun:"max_width,notnull,default:0"`
	RetentionDays         int       `bun:"retention_days,notnull,default:14"`
	CleanupInterval       int       `bun:"cleanup_interval,notnull,default:60"`
	UseReverseProxy       bool      `bun:"use_reverse_proxy,notnull,default:false"`
	BaseURL               string    `bun:"base_url,default:''"`
	RecentConversionCount int       `bun:"recent_conversion_count,notnull,default:10"`
	ServerAPIURL          string    `bun:"server_api_url,default:''"`
	CreatedAt             time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunJob represents the jobs table for Bun ORM
type BunJob struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID          string     `bun:"id,pk"` // ULID as string
	Type        string     `bun:"type,notnull"`
	Status      string     `bun:"status,default:'pending'"`
	Progress    int        `bun:"progress,default:0"`
	CurrentStep string     `bun:"current_step,default:''"`
	TotalSteps  int        `bun:"total_steps,default:0"`
	Message     string     `bun:"message,default:''"`
	Error       string     `bun:"error,nullzero"`
	Result      string     `bun:"result,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
	StartedAt   *time.Time `bun:"started_at,nullzero"`
	CompletedAt *time.Time `bun:"completed_at,nullzero"`
}

// ToJob converts BunJob to Job
func (bj *BunJob) ToJob() (*Job, error) {
	parsedULID, err := ulid.Parse(bj.ID)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:          parsedULID,
		Type:        JobType(bj.Type),
		Status:      JobStatus(bj.Status),
		Progress:    bj.Progress,
		CurrentStep: bj.CurrentStep,
		TotalSteps:  bj.TotalSteps,
		Message:     bj.Message,
		Error:       bj.Error,
		Result:      bj.Result,
		CreatedAt:   bj.CreatedAt,
		UpdatedAt:   bj.UpdatedAt,
		StartedAt:   bj.StartedAt,
		CompletedAt: bj.CompletedAt,
	}, nil
}

// FromJob converts Job to BunJob
func FromJob(job *Job) *BunJob {
	return &BunJob{
		ID:          job.ID.String(),
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
		TotalSteps:  job.TotalSteps,
		Message:     job.Message,
		Error:       job.Error,
		Result:      job.Result,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
}
