package engine

import (
	"fmt"
	"log/slog"

	database "github.com/mwhitby/pdfraster/database"
	"github.com/robfig/cron/v3"
)

// Logger is global since we will need it everywhere
var Logger *slog.Logger

// InitializeSchedules starts all the cron jobs (currently just one)
func (serverHandler *ServerHandler) InitializeSchedules(db database.Repository) {
	serverConfig, err := database.FetchConfigFromDB(db)
	if err != nil {
		fmt.Println("Error reading db when initializing")
	}

	if serverConfig.CleanupInterval <= 0 {
		Logger.Info("Cleanup scheduler disabled", "interval_minutes", serverConfig.CleanupInterval)
		return
	}

	c := cron.New()
	var cleanupJob cron.Job
	cleanupJob = cron.FuncJob(func() { serverHandler.runScheduledCleanup(db) })
	cleanupJob = cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cleanupJob) //ensure we don't kick off another if old one is still running
	c.AddJob(fmt.Sprintf("@every %dm", serverConfig.CleanupInterval), cleanupJob)
	Logger.Info("Adding cleanup job scheduler", "interval_minutes", serverConfig.CleanupInterval)
	c.Start()
}

// runScheduledCleanup creates a tracked cleanup job and runs it
func (serverHandler *ServerHandler) runScheduledCleanup(db database.Repository) {
	job, err := db.CreateJob(database.JobTypeCleanup, "Scheduled cleanup of old conversions")
	if err != nil {
		Logger.Error("Failed to create scheduled cleanup job", "error", err)
		return
	}
	serverHandler.cleanupJobFuncWithTracking(db, job.ID)
}
