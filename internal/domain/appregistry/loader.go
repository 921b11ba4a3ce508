package appregistry

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	oispErrors "github.com/oisp/sensor/pkg/errors"
)

// LoadDirectory reads every *.yaml/*.yml file in dir as a Profile and
// returns a populated Registry seeded with the compiled-in web-app table.
// A single malformed file is skipped with its error collected, not fatal to
// the whole load, since the app registry is a best-effort enrichment input.
func LoadDirectory(dir string) (*Registry, []error) {
	reg := NewRegistry()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return reg, []error{oispErrors.NewNotFoundError("app registry directory: " + err.Error())}
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var p Profile
		if err := yaml.Unmarshal(raw, &p); err != nil {
			errs = append(errs, oispErrors.NewInvalidInputError("app profile "+name+": "+err.Error()))
			continue
		}
		if p.AppID == "" {
			errs = append(errs, oispErrors.NewInvalidInputError("app profile "+name+" missing app_id"))
			continue
		}
		reg.AddProfile(&p)
	}
	return reg, errs
}
