// Package service loads the named deployment targets a gateway can trigger.
package service

import (
	"time"

	"deployhook/internal/webhook"
)

// Service is a validated deployment target.
type Service struct {
	Name        string
	Script      string
	Interpreter []string // empty runs Script directly
	Dir         string
	Branch      string
	Timeout     time.Duration
	Exclusive   bool
}

// ServiceConfig is the YAML form of a service.
type ServiceConfig struct {
	Script      string  `yaml:"script"`
	Interpreter *string `yaml:"interpreter"`
	Dir         string  `yaml:"dir"`
	Branch      string  `yaml:"branch"`
	Timeout     int     `yaml:"timeout"`
	Exclusive   bool    `yaml:"exclusive"`
}

// Config is the root of services.yaml.
type Config struct {
	Services map[string]ServiceConfig `yaml:"services"`
}

// MatchesRef checks if a git ref is the service's target branch.
func (s *Service) MatchesRef(ref string) bool {
	return ref == webhook.BranchRef(s.Branch)
}

// Command returns the argv that runs the deployment script.
// Nothing in it is derived from a request.
func (s *Service) Command() []string {
	cmd := make([]string, 0, len(s.Interpreter)+1)
	cmd = append(cmd, s.Interpreter...)
	return append(cmd, s.Script)
}
