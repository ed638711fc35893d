package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/rootgc/rootgc/pkg/policy"
	"github.com/rootgc/rootgc/pkg/yaml"
)

//go:generate go run ../../internal/schemagen/main.go -o config.v1beta1.json

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed config.v1beta1.json
	schemaJSON []byte

	ValidAPIVersions = []string{
		"rootgc.dev/v1beta1",
	}
	ValidKinds = []string{
		"Configuration",
	}

	DefaultValidator = yaml.MustNewValidator("/config.v1beta1.json", schemaJSON)

	ErrDuplicateProfilePath = errors.New("duplicate profile path")
)

//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// TemporaryRootPolicies prune by age the ad hoc roots matched by path
	// pattern. Policies are evaluated in (priority, name) order and the
	// first match claims the root.
	TemporaryRootPolicies map[string]*policy.TemporaryRoot `json:"temporaryRootPolicies,omitempty" jsonschema:"title=Temporary Root Policies"`

	// ProfilePolicies prune the numbered generations of profiles.
	ProfilePolicies map[string]*policy.Profile `json:"profilePolicies,omitempty" jsonschema:"title=Profile Policies"`

	// Store is the root directory of the content-addressed store. Roots
	// whose target does not resolve into it are invalid.
	Store string `json:"store,omitempty" jsonschema:"title=Store"`

	// OwnedOnly restricts the run to roots owned by the invoking user.
	// `auto` enables the restriction for non-root users only.
	OwnedOnly OwnedOnly `json:"ownedOnly,omitempty" jsonschema:"title=Owned Only"`

	// Directories lists the GC root directories to traverse.
	Directories []string `json:"directories,omitempty" jsonschema:"title=Directories"`

	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`

	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`

	// RemoveRoot removes the root symlink itself instead of its target.
	RemoveRoot bool `json:"removeRoot,omitempty" jsonschema:"title=Remove Root"`
}

func NewConfig() *Config {
	c := &Config{
		APIVersion: "rootgc.dev/v1beta1",
		Kind:       "Configuration",
	}
	c.EnsureDefaults()

	return c
}

func (c *Config) EnsureDefaults() {
	if c.Store == "" {
		c.Store = "/nix/store"
	}

	if c.OwnedOnly == "" {
		c.OwnedOnly = OwnedOnlyAuto
	}

	if len(c.Directories) == 0 {
		c.Directories = []string{"/nix/var/nix/gcroots/auto"}
	}

	for _, p := range c.TemporaryRootPolicies {
		p.EnsureDefaults()
	}
}

// Validate checks the invariants that the JSON schema cannot express, and
// compiles all policy patterns and expressions.
func (c *Config) Validate() error {
	err := c.OwnedOnly.Validate()
	if err != nil {
		return err
	}

	for name, p := range c.TemporaryRootPolicies {
		err := p.Validate(name)
		if err != nil {
			return err
		}

		if p.Enabled() {
			err = p.Compile()
			if err != nil {
				return fmt.Errorf("temporary root policy %q: %w", name, err)
			}
		}
	}

	seen := map[string]string{}

	for name, p := range c.ProfilePolicies {
		err := p.Validate(name)
		if err != nil {
			return err
		}

		if !p.Enabled() {
			continue
		}

		for _, path := range p.ProfilePaths {
			if other, ok := seen[path]; ok && other != name {
				return fmt.Errorf("%w: %q is claimed by policies %q and %q",
					ErrDuplicateProfilePath, path, other, name)
			}

			seen[path] = name
		}
	}

	return nil
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	apiVersion, ok := jss.Properties.Get("apiVersion")
	if !ok {
		panic("apiVersion property not found in schema")
	}

	for _, version := range ValidAPIVersions {
		apiVersion.OneOf = append(apiVersion.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: version,
			Title: "API Version",
		})
	}

	_, _ = jss.Properties.Set("apiVersion", apiVersion)

	kind, ok := jss.Properties.Get("kind")
	if !ok {
		panic("kind property not found in schema")
	}

	for _, kindValue := range ValidKinds {
		kind.OneOf = append(kind.OneOf, &jsonschema.Schema{
			Type:  "string",
			Const: kindValue,
			Title: "Kind",
		})
	}

	_, _ = jss.Properties.Set("kind", kind)
}

func (c *Config) MarshalYAML() ([]byte, error) {
	b := &bytes.Buffer{}
	enc := yaml.NewEncoder(b)
	err := enc.Encode(*c)
	if err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}

	return b.Bytes(), nil
}

type ConfigValidator interface {
	Validate(data any) error
}

type ConfigLoader struct {
	cv        ConfigValidator
	yamlError *yaml.ErrorWrapper
	data      []byte
}

func NewConfigLoaderFromBytes(data []byte, opts ...ConfigLoaderOpt) *ConfigLoader {
	cl := &ConfigLoader{
		cv:   DefaultValidator,
		data: data,
	}
	for _, opt := range opts {
		opt(cl)
	}

	cl.yamlError = yaml.NewErrorWrapper(
		yaml.WithSource(cl.data),
	)

	return cl
}

func NewConfigLoaderFromFile(path string, opts ...ConfigLoaderOpt) (*ConfigLoader, error) {
	data, err := readConfig(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cl := NewConfigLoaderFromBytes(data, opts...)

	return cl, nil
}

type ConfigLoaderOpt func(*ConfigLoader)

func WithConfigValidator(cv ConfigValidator) ConfigLoaderOpt {
	return func(cl *ConfigLoader) {
		cl.cv = cv
	}
}

// Validate validates configuration data with [ConfigValidator] without
// loading it into a [Config] struct.
func (cl *ConfigLoader) Validate() error {
	// Decode into interface{} for initial validation.
	var anyConfig any

	dec := yaml.NewDecoder(bytes.NewReader(cl.data))
	err := dec.Decode(&anyConfig)
	if err != nil {
		return cl.yamlError.Wrap(err)
	}

	err = cl.cv.Validate(anyConfig)
	if err != nil {
		return cl.yamlError.Wrap(err)
	}

	return nil
}

func (cl *ConfigLoader) Load() (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(cl.data))
	err := dec.Decode(c)
	if err != nil {
		return nil, cl.yamlError.Wrap(err)
	}

	c.EnsureDefaults()

	// Run Go validation on the config (for requirements that can't be
	// represented in the schema).
	err = c.Validate()
	if err != nil {
		return nil, cl.yamlError.Wrap(err)
	}

	return c, nil
}

// WriteDefaultConfig writes the embedded default config.yaml and jsonschema
// to the specified path.
func WriteDefaultConfig(path string, force bool) error {
	configExists := false
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		switch {
		case err == nil && pathInfo.Mode().IsRegular():
			configExists = true
		case pathInfo.IsDir():
			return fmt.Errorf("%s: path is a directory", path)
		default:
			return fmt.Errorf("%s: unknown file state", path)
		}
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	if configExists && force {
		// Move the existing file to a backup.
		backupFile := fmt.Sprintf("%s.%d.old", filepath.Base(path), time.Now().UnixNano())
		backupPath := filepath.Join(filepath.Dir(path), backupFile)
		slog.Info("backing up existing config file",
			slog.String("path", backupPath),
		)

		err = os.Rename(path, backupPath)
		if err != nil {
			return fmt.Errorf("rename existing config file to backup: %w", err)
		}

		configExists = false
	}

	// Write the default config file.
	if !configExists {
		slog.Info("write default configuration",
			slog.String("path", path),
		)

		err = os.WriteFile(path, defaultConfigYAML, 0o600)
		if err != nil {
			return fmt.Errorf("write config file: %w", err)
		}
	} else {
		slog.Debug("configuration file already exists, skipping write",
			slog.String("path", path),
		)
	}

	// Write the JSON schema file alongside the config file.
	schemaPath := filepath.Join(filepath.Dir(path), "config.v1beta1.json")
	slog.Debug("write JSON schema",
		slog.String("path", schemaPath),
	)

	err = os.WriteFile(schemaPath, schemaJSON, 0o600)
	if err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}

	return nil
}

func GetPath() string {
	if xdgHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgHome != "" {
		return filepath.Join(xdgHome, "rootgc", "config.yaml")
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", "rootgc", "config.yaml")
	}

	tmpConfig := filepath.Join(os.TempDir(), "rootgc", "config.yaml")

	slog.Warn("could not determine user config directory, using temp path for config",
		slog.String("path", tmpConfig),
		slog.Any("error", fmt.Errorf("$XDG_CONFIG_HOME is unset, fall back to home directory: %w", err)),
	)

	return tmpConfig
}

func readConfig(path string) ([]byte, error) {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.IsDir() {
			return nil, fmt.Errorf("%s: path is a directory", path)
		}
		if err == nil && !pathInfo.Mode().IsRegular() {
			return nil, fmt.Errorf("%s: unknown file state", path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}
