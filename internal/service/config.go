package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deployhook/internal/security"
	"deployhook/pkg/cmdutil"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBranch      = "main"
	DefaultTimeout     = 300
	DefaultInterpreter = "/bin/bash"

	// DefaultServiceName is served when no config file exists.
	DefaultServiceName = "gatus"
	DefaultScript      = "/opt/scripts/deploy-gatus.sh"
)

// DefaultServices returns the built-in single-service setup.
func DefaultServices() map[string]*Service {
	return map[string]*Service{
		DefaultServiceName: {
			Name:        DefaultServiceName,
			Script:      DefaultScript,
			Interpreter: []string{DefaultInterpreter},
			Branch:      DefaultBranch,
			Timeout:     DefaultTimeout * time.Second,
		},
	}
}

// LoadConfig loads and validates services from a YAML file.
func LoadConfig(configPath string) (*Config, map[string]*Service, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig validates services from YAML bytes.
func ParseConfig(data []byte) (*Config, map[string]*Service, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if len(config.Services) == 0 {
		return nil, nil, fmt.Errorf("no services defined in config")
	}

	services := make(map[string]*Service, len(config.Services))
	for name, serviceConfig := range config.Services {
		if errors := ValidateServiceConfig(name, serviceConfig); len(errors) > 0 {
			return nil, nil, fmt.Errorf("invalid configuration for service '%s':\n%s",
				name, strings.Join(errors, "\n"))
		}

		svc, err := newService(name, serviceConfig)
		if err != nil {
			return nil, nil, err
		}
		services[name] = svc
	}

	return &config, services, nil
}

func newService(name string, config ServiceConfig) (*Service, error) {
	branch := config.Branch
	if branch == "" {
		branch = DefaultBranch
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	interpreter, err := parseInterpreter(config.Interpreter)
	if err != nil {
		return nil, fmt.Errorf("invalid interpreter for service '%s': %w", name, err)
	}

	return &Service{
		Name:        name,
		Script:      filepath.Clean(config.Script),
		Interpreter: interpreter,
		Dir:         config.Dir,
		Branch:      branch,
		Timeout:     time.Duration(timeout) * time.Second,
		Exclusive:   config.Exclusive,
	}, nil
}

// ValidateServiceConfig checks the structure of a single service entry.
// It does not touch the filesystem; see CheckServiceFiles.
func ValidateServiceConfig(name string, config ServiceConfig) []string {
	var errors []string

	if err := security.ValidateServiceName(name); err != nil {
		errors = append(errors, fmt.Sprintf("  - Service '%s': %v", name, err))
	}

	if config.Script == "" {
		errors = append(errors, fmt.Sprintf("  - Service '%s': missing required 'script' field", name))
	} else if _, err := security.SanitizePath(config.Script); err != nil {
		errors = append(errors, fmt.Sprintf("  - Service '%s': script %v", name, err))
	}

	if config.Dir != "" {
		if _, err := security.SanitizePath(config.Dir); err != nil {
			errors = append(errors, fmt.Sprintf("  - Service '%s': dir %v", name, err))
		}
	}

	if config.Timeout < 0 {
		errors = append(errors, fmt.Sprintf("  - Service '%s': timeout must be a positive integer, got %d", name, config.Timeout))
	}

	if config.Branch != "" {
		if err := security.ValidateBranchName(config.Branch); err != nil {
			errors = append(errors, fmt.Sprintf("  - Service '%s': %v, got '%s'", name, err, config.Branch))
		}
	}

	if _, err := parseInterpreter(config.Interpreter); err != nil {
		errors = append(errors, fmt.Sprintf("  - Service '%s': cannot parse interpreter %q: %v", name, *config.Interpreter, err))
	}

	return errors
}

// parseInterpreter applies the default when the key is absent.
// An explicit empty string means the script is executed directly.
func parseInterpreter(raw *string) ([]string, error) {
	if raw == nil {
		return []string{DefaultInterpreter}, nil
	}
	if strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	return cmdutil.ParseCommandString(*raw)
}

// CheckServiceFiles reports filesystem problems with a service's script.
// These are warnings: a broken script must not take the gateway down.
func CheckServiceFiles(svc *Service) []string {
	var warnings []string
	for _, problem := range security.CheckScript(svc.Script, len(svc.Interpreter) == 0) {
		warnings = append(warnings, fmt.Sprintf("service '%s': %s", svc.Name, problem))
	}
	if svc.Dir != "" {
		if info, err := os.Stat(svc.Dir); err != nil || !info.IsDir() {
			warnings = append(warnings, fmt.Sprintf("service '%s': working directory not found: %s", svc.Name, svc.Dir))
		}
	}
	return warnings
}
