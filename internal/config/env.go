package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// EnvFilePaths returns the .env files checked by default.
func EnvFilePaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}
	paths = append(paths, filepath.Join(ConfigDir(), ".env"))
	return paths
}

// LoadEnvFiles loads every existing file in paths into the process
// environment. Variables already set are never overridden, so earlier files
// and the real environment take precedence. It returns the files loaded.
func LoadEnvFiles(paths ...string) []string {
	var loaded []string
	for _, path := range lo.Uniq(paths) {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			log.Printf("[config] failed to load %s: %v", path, err)
			continue
		}
		log.Printf("[config] loaded environment from %s", path)
		loaded = append(loaded, path)
	}
	return loaded
}
