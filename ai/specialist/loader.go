package specialist

import (
	"fmt"

	"github.com/yosefsha/myassistant/ai/configloader"
	"github.com/yosefsha/myassistant/internal/version"
)

// File is the on-disk layout of a specialist registry, in YAML or TOML.
//
//	min_version: 0.3.0
//	specialists:
//	  - id: technical
//	    label: Technical Expert
//	    keywords: [sql, api, bug]
//	    intent_keywords: [fix, implement]
//	    threshold: 0.15
//	    prompt_template: "You are {{specialist}} ... {{query}}"
type File struct {
	// MinVersion is the oldest engine release that understands the file.
	// Development builds skip the check.
	MinVersion  string       `yaml:"min_version" toml:"min_version"`
	Specialists []Specialist `yaml:"specialists" toml:"specialists"`
}

// Load builds a registry from the file at path. An empty path returns the
// built-in defaults. Any read, parse or validation failure is reported as a
// *ConfigInvalidError.
func Load(path string) (*Registry, error) {
	if path == "" {
		return New(Defaults())
	}

	var f File
	if err := configloader.NewLoader("").Load(path, &f); err != nil {
		return nil, &ConfigInvalidError{Problems: []string{err.Error()}}
	}
	if err := checkMinVersion(f.MinVersion, version.Version); err != nil {
		return nil, &ConfigInvalidError{Problems: []string{err.Error()}}
	}
	return New(f.Specialists)
}

func checkMinVersion(minVersion, running string) error {
	if minVersion == "" {
		return nil
	}
	if !version.IsValid(minVersion) {
		return fmt.Errorf("min_version %q is not a semantic version", minVersion)
	}
	if version.IsRelease(running) && !version.IsVersionGreaterOrEqualThan(running, minVersion) {
		return fmt.Errorf("file requires engine %s or newer, running %s", minVersion, running)
	}
	return nil
}
