package config

import (
	"log"
	"os"

	"github.com/spf13/afero"
)

// Initialize creates the configuration directory at path and writes the
// default configuration into it. Existing files are left alone.
func Initialize(path string, logger *log.Logger) error {
	if err := os.MkdirAll(path, 0700); err != nil {
		return err
	}
	logger.Printf("Initializing configuration in %q\n", path)
	return InitializeFs(afero.NewBasePathFs(afero.NewOsFs(), path), logger)
}

// InitializeFs writes the default configuration into the root of fs.
func InitializeFs(fs afero.Fs, logger *log.Logger) error {
	exists, err := afero.Exists(fs, ConfigurationName)
	if err != nil {
		return err
	}
	if exists {
		logger.Printf("- %s already exists, skipping\n", ConfigurationName)
		return nil
	}

	logger.Printf("- Writing %s\n", ConfigurationName)
	return afero.WriteFile(fs, ConfigurationName, defaultConfigData, 0600)
}
