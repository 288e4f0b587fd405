package util

import (
	"github.com/greatvovan/bacon-number/pkg/logger"

	"github.com/joho/godotenv"
)

// LoadEnv reads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Variables already set win, and a
// missing file is not an error.
func LoadEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		logger.Debug("No .env file found, using system environment variables")
	}
}
