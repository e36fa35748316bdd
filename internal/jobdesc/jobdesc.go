// ============================================================================
// Job Descriptor Loader
// ============================================================================
//
// Package: internal/jobdesc
// File: jobdesc.go
// Purpose: spec.md §1 scopes "the user job description loader (turns a
// directory into a structured job descriptor with settings)" out as
// external. SPEC_FULL §4.6 supplies a minimal real implementation: a
// job.yaml read with gopkg.in/yaml.v3, with a settings override map applied
// over it — the same library the teacher's CLI config uses, doing double
// duty as the domain job-settings format.
//
// ============================================================================

package jobdesc

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Descriptor is the structured form of a job directory's job.yaml.
type Descriptor struct {
	// Clear mirrors the original's job_desc "clear" flag: when set and the
	// worker is in local mode, prepare() removes any pre-existing per-run
	// working dir rather than picking a fresh suffix (spec.md §4.1 step 5).
	Clear bool `yaml:"clear"`
	// Settings holds free-form key/value configuration for the inner
	// executor; values passed to prepare() override these by key.
	Settings map[string]string `yaml:"settings"`
}

// Load reads "<jobDir>/job.yaml" and applies overrides on top of its
// Settings map (a nil overrides is a no-op). A job directory with no
// job.yaml yields a zero-value Descriptor — not an error, since a minimal
// job needs no settings at all.
func Load(jobDir string, overrides map[string]string) (Descriptor, error) {
	path := filepath.Join(jobDir, "job.yaml")

	var desc Descriptor
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			desc = Descriptor{}
		} else {
			return Descriptor{}, fmt.Errorf("jobdesc: reading %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &desc); err != nil {
		return Descriptor{}, fmt.Errorf("jobdesc: parsing %s: %w", path, err)
	}

	if desc.Settings == nil {
		desc.Settings = make(map[string]string)
	}
	for k, v := range overrides {
		desc.Settings[k] = v
	}
	return desc, nil
}
