// Package loader parses YAML configuration files into config.Configuration
// values and, optionally, watches one for changes.
package loader

import (
	"fmt"
	"os"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"gopkg.in/yaml.v3"
)

// Registry resolves a YAML "class" name to the app.Class that constructs
// it. The core treats app classes as opaque; the registry is
// how an outer program tells the loader which class a name refers to.
type Registry map[string]app.Class

// document is the on-disk YAML shape.
type document struct {
	Apps map[string]struct {
		Class string                 `yaml:"class"`
		Arg   map[string]interface{} `yaml:"arg"`
	} `yaml:"apps"`
	Links []string `yaml:"links"`
}

// Parse decodes a YAML configuration document, resolving each app's class
// name through registry and validating arg/link grammar the same way
// config.Configuration does on direct construction.
func Parse(data []byte, registry Registry) (*config.Configuration, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("loader: parse yaml: %w", err)
	}

	cfg := config.New()
	for name, spec := range doc.Apps {
		class, ok := registry[spec.Class]
		if !ok {
			return nil, fmt.Errorf("loader: app %q: unknown class %q", name, spec.Class)
		}
		arg := make(config.Arg, len(spec.Arg))
		for k, v := range spec.Arg {
			arg[k] = v
		}
		if err := cfg.AddApp(name, spec.Class, class, arg); err != nil {
			return nil, fmt.Errorf("loader: app %q: %w", name, err)
		}
	}
	for _, spec := range doc.Links {
		if err := cfg.AddLink(spec); err != nil {
			return nil, fmt.Errorf("loader: %w", err)
		}
	}
	return cfg, nil
}

// Load reads and parses the YAML configuration file at path.
func Load(path string, registry Registry) (*config.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loader: read %s: %w", path, err)
	}
	return Parse(data, registry)
}
