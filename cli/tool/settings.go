package tool

import (
	"io/ioutil"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// LoadSettings populates the settings from the yaml file of the --config flag.
// The settings are left untouched when the flag is not set. Each module reads
// its own section of the file and ignores the rest.
func LoadSettings(path string, settings interface{}) error {
	if path == "" {
		return nil
	}

	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return xerrors.Errorf("failed to read config file: %v", err)
	}

	err = yaml.Unmarshal(buf, settings)
	if err != nil {
		return xerrors.Errorf("failed to unmarshal config: %v", err)
	}

	return nil
}
