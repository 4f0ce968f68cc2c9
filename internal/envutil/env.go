package envutil

import (
	"os"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

// Load reads a .env file into the process environment. Variables already set
// win over the file, and a missing file is not an error.
func Load(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// Write stores values as a .env file with sorted keys.
func Write(path string, values map[string]string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := godotenv.Write(values, path); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return os.Chmod(path, 0o600)
}
