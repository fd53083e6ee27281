// Package config defines the immutable Configuration value (apps + links)
// that the engine is driven toward via Configure, and the link
// specification grammar and arg schema validation it enforces.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/newtron-network/breathe/pkg/app"
)

// Sentinel errors surfaced synchronously from configuration construction.
var (
	ErrMissingRequired = errors.New("config: missing required key")
	ErrUnknownKey      = errors.New("config: unknown key")
	ErrDuplicateLink   = errors.New("config: duplicate link specification")
	ErrBadLinkSpec     = errors.New("config: malformed link specification")
)

// Arg is a generic app configuration argument: a bag of named values
// validated against the owning class's Schema.
type Arg map[string]interface{}

// LinkSpec is a parsed "<app>.<port> -> <app>.<port>" link specification.
type LinkSpec struct {
	FromApp, FromPort string
	ToApp, ToPort     string
}

// String renders the canonical textual form of the spec; it also doubles
// as the link's identity key across reconfigurations.
func (s LinkSpec) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", s.FromApp, s.FromPort, s.ToApp, s.ToPort)
}

// ParseLinkSpec parses the grammar "<app>.<port> -> <app>.<port>",
// whitespace around "->" optional.
func ParseLinkSpec(spec string) (LinkSpec, error) {
	parts := strings.SplitN(spec, "->", 2)
	if len(parts) != 2 {
		return LinkSpec{}, fmt.Errorf("%w: %q", ErrBadLinkSpec, spec)
	}
	from, err := parseEndpoint(strings.TrimSpace(parts[0]))
	if err != nil {
		return LinkSpec{}, fmt.Errorf("%w: %q: %v", ErrBadLinkSpec, spec, err)
	}
	to, err := parseEndpoint(strings.TrimSpace(parts[1]))
	if err != nil {
		return LinkSpec{}, fmt.Errorf("%w: %q: %v", ErrBadLinkSpec, spec, err)
	}
	return LinkSpec{FromApp: from[0], FromPort: from[1], ToApp: to[0], ToPort: to[1]}, nil
}

func parseEndpoint(s string) ([2]string, error) {
	dot := strings.LastIndex(s, ".")
	if dot <= 0 || dot == len(s)-1 {
		return [2]string{}, fmt.Errorf("expected \"app.port\", got %q", s)
	}
	appName, port := s[:dot], s[dot+1:]
	if appName == "" || port == "" {
		return [2]string{}, fmt.Errorf("expected \"app.port\", got %q", s)
	}
	return [2]string{appName, port}, nil
}

// AppSpec is one app's recorded class+arg in a Configuration.
type AppSpec struct {
	ClassName string
	Class     app.Class
	Arg       Arg
}

// SameClassAndArg reports whether two specs would be considered "no
// change" by the reconfigurator's diff.
func (a AppSpec) SameClassAndArg(b AppSpec) bool {
	return a.ClassName == b.ClassName && reflect.DeepEqual(a.Arg, b.Arg)
}

// Configuration is an immutable description of an app graph: which apps
// exist (name -> class+arg) and how their ports are wired together.
type Configuration struct {
	Apps  map[string]AppSpec
	Links map[string]LinkSpec // keyed by LinkSpec.String()
}

// New returns a fresh, empty configuration.
func New() *Configuration {
	return &Configuration{
		Apps:  make(map[string]AppSpec),
		Links: make(map[string]LinkSpec),
	}
}

// AddApp validates arg against class's schema (if any) and records the
// app under name, applying schema defaults for absent optional keys.
func (c *Configuration) AddApp(name, className string, class app.Class, arg Arg) error {
	resolved, err := validate(class, arg)
	if err != nil {
		return fmt.Errorf("config: add app %q: %w", name, err)
	}
	c.Apps[name] = AppSpec{ClassName: className, Class: class, Arg: resolved}
	return nil
}

func validate(class app.Class, arg Arg) (Arg, error) {
	provider, ok := class.(app.SchemaProvider)
	if !ok {
		return arg, nil
	}
	schema := provider.ConfigSchema()
	resolved := make(Arg, len(arg))
	for k, v := range arg {
		resolved[k] = v
	}
	for key, field := range schema {
		if _, present := resolved[key]; !present {
			if field.Required {
				return nil, fmt.Errorf("%w %q", ErrMissingRequired, key)
			}
			if field.Default != nil {
				resolved[key] = field.Default
			}
		}
	}
	for key := range arg {
		if _, known := schema[key]; !known {
			return nil, fmt.Errorf("%w %q", ErrUnknownKey, key)
		}
	}
	return resolved, nil
}

// AddLink parses and records a link specification, rejecting a spec that
// already exists.
func (c *Configuration) AddLink(spec string) error {
	parsed, err := ParseLinkSpec(spec)
	if err != nil {
		return err
	}
	key := parsed.String()
	if _, exists := c.Links[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateLink, key)
	}
	c.Links[key] = parsed
	return nil
}
