package config

import (
	"errors"
	"io/fs"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

// parseEnvFile loads KEY=VALUE pairs from the file given with -env, or from
// ./.env when it exists, into the process environment. Variables already
// set in the environment win. An explicitly named file that cannot be read
// panics.
func parseEnvFile() {
	path := flagx.EnvFileFlag()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return
		}
		panic(err)
	}
}
