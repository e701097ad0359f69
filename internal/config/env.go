package config

import (
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads .env and .env.local from dir into the process
// environment. Existing variables win, so the shell can always override
// file values. Missing files are not an error.
func loadEnvFiles(dir string) {
	for _, name := range []string{".env.local", ".env"} {
		// godotenv.Load never overwrites variables that are already set.
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}
