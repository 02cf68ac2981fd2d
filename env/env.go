package env

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const DefaultEnvFile = ".env"

// LoadFiles loads variables from env files without overriding the ones
// already set. Missing files are skipped; with no arguments DefaultEnvFile
// is tried.
func LoadFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultEnvFile}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// InitConfig fills each config struct from the environment, after loading
// the optional .env file.
func InitConfig(configs ...any) error {
	if err := LoadFiles(); err != nil {
		return err
	}

	for _, c := range configs {
		if err := envconfig.Process("", c); err != nil {
			return errors.Wrap(err, "failed to envconfig.Process")
		}
	}

	return nil
}
