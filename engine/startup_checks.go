package engine

import (
	"fmt"
	"os"

	"github.com/mwhitby/pdfraster/config"
	"github.com/mwhitby/pdfraster/database"
)

// StartupChecks performs all the checks to make sure everything works
func (serverHandler *ServerHandler) StartupChecks() error {
	serverConfig, err := database.FetchConfigFromDB(serverHandler.DB)
	if err != nil {
		Logger.Error("Error fetching config", "error", err)
		return err
	}
	if err := uploadDirectoryChecks(serverConfig); err != nil {
		return err
	}
	if err := outputDirectoryChecks(serverConfig); err != nil {
		return err
	}
	rendererChecks(serverConfig)
	return nil
}

// uploadDirectoryChecks ensures the upload directory exists
func uploadDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.UploadPath == "" {
		Logger.Warn("Upload path not configured")
		return nil
	}

	uploadInfo, err := os.Stat(serverConfig.UploadPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating upload directory", "path", serverConfig.UploadPath)
			err = os.MkdirAll(serverConfig.UploadPath, 0755)
			if err != nil {
				Logger.Error("Failed to create upload directory", "path", serverConfig.UploadPath, "error", err)
				return err
			}
			Logger.Info("Upload directory created successfully", "path", serverConfig.UploadPath)
			return nil
		}
		Logger.Error("Error checking upload directory", "path", serverConfig.UploadPath, "error", err)
		return err
	}

	if !uploadInfo.IsDir() {
		Logger.Error("Upload path exists but is not a directory", "path", serverConfig.UploadPath)
		return fmt.Errorf("upload path is not a directory: %s", serverConfig.UploadPath)
	}

	Logger.Info("Upload directory exists", "path", serverConfig.UploadPath)
	return nil
}

// outputDirectoryChecks ensures the output root directory exists
func outputDirectoryChecks(serverConfig config.ServerConfig) error {
	if serverConfig.OutputPath == "" {
		Logger.Warn("Output path not configured")
		return nil
	}

	outputInfo, err := os.Stat(serverConfig.OutputPath)
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Info("Creating output directory", "path", serverConfig.OutputPath)
			err = os.MkdirAll(serverConfig.OutputPath, 0755)
			if err != nil {
				Logger.Error("Failed to create output directory", "path", serverConfig.OutputPath, "error", err)
				return err
			}
			Logger.Info("Output directory created successfully", "path", serverConfig.OutputPath)
			return nil
		}
		Logger.Error("Error checking output directory", "path", serverConfig.OutputPath, "error", err)
		return err
	}

	if !outputInfo.IsDir() {
		Logger.Error("Output path exists but is not a directory", "path", serverConfig.OutputPath)
		return fmt.Errorf("output path is not a directory: %s", serverConfig.OutputPath)
	}

	Logger.Info("Output directory exists", "path", serverConfig.OutputPath)
	return nil
}

// rendererChecks logs which rendering backend is in use
func rendererChecks(serverConfig config.ServerConfig) {
	switch serverConfig.Renderer {
	case "", "fitz":
		Logger.Info("Using MuPDF renderer (go-fitz)")
	case "pdfium":
		Logger.Info("Using PDFium renderer (WebAssembly)")
	default:
		Logger.Warn("Unknown renderer configured, conversions will fail", "renderer", serverConfig.Renderer)
	}
}
