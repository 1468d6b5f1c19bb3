package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env file and sets environment variables.
// Missing files are not an error so the binary runs unchanged in
// environments that configure it directly.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}
