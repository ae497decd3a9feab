// Package config loads the reportd server configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/infracollect/reportd/apis/v1"
)

// CwdVariable is always available to ${VAR} templates and holds the working
// directory of the process.
const CwdVariable = "REPORTD_CWD"

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

// Parse unmarshals a YAML configuration and applies defaults. An empty
// document yields the default configuration.
func Parse(data []byte) (v1.ServerConfig, error) {
	var cfg v1.ServerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return v1.ServerConfig{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()

	return cfg, nil
}

// Validate checks cfg against its struct constraints.
func Validate(cfg v1.ServerConfig) error {
	if err := defaultValidator.Struct(cfg); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	return nil
}

// Load parses data, expands templates with the built-in variables plus the
// allowed environment variables, then validates the result.
func Load(data []byte, allowedEnv []string) (v1.ServerConfig, error) {
	cfg, err := Parse(data)
	if err != nil {
		return v1.ServerConfig{}, err
	}

	variables, err := BuildVariables(allowedEnv)
	if err != nil {
		return v1.ServerConfig{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := ExpandTemplates(&cfg, variables); err != nil {
		return v1.ServerConfig{}, fmt.Errorf("failed to expand templates: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return v1.ServerConfig{}, err
	}

	return cfg, nil
}

// BuildVariables returns the variables usable in templates. Every name in
// allowedEnv must be set in the environment.
func BuildVariables(allowedEnv []string) (map[string]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	variables := map[string]string{
		CwdVariable: cwd,
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}
