package config

import "fmt"

// Validator validates configuration comprehensively with clear error
// messages, fail-fast, grounded on pkg/config/validator.go's ValidateAll
// idiom (validate in dependency order, wrap each stage's error).
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll validates every section, stopping at the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateDatabase(); err != nil {
		return fmt.Errorf("database validation failed: %w", err)
	}
	if err := v.validateSupervisor(); err != nil {
		return fmt.Errorf("supervisor validation failed: %w", err)
	}
	if err := v.validateGateway(); err != nil {
		return fmt.Errorf("gateway validation failed: %w", err)
	}
	return nil
}

func (v *Validator) validateDatabase() error {
	d := v.cfg.Database
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if d.MaxIdleConns > d.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed max_open_conns (%d)",
			d.MaxIdleConns, d.MaxOpenConns)
	}
	return nil
}

func (v *Validator) validateSupervisor() error {
	s := v.cfg.Supervisor
	if s.MaxIterations < 1 || s.MaxIterations > 5 {
		return fmt.Errorf("supervisor.max_iterations must be in [1,5], got %d", s.MaxIterations)
	}
	if s.HardIterationCap < 1 {
		return fmt.Errorf("supervisor.hard_iteration_cap must be at least 1, got %d", s.HardIterationCap)
	}
	if s.MaxIterations > s.HardIterationCap {
		return fmt.Errorf("supervisor.max_iterations (%d) cannot exceed hard_iteration_cap (%d)",
			s.MaxIterations, s.HardIterationCap)
	}
	if s.ApprovalThreshold < 0 || s.ApprovalThreshold > 10 {
		return fmt.Errorf("supervisor.approval_threshold must be in [0,10], got %v", s.ApprovalThreshold)
	}
	return nil
}

func (v *Validator) validateGateway() error {
	names := map[string]bool{}
	for _, svc := range v.cfg.Gateway.Services {
		if svc.Name == "" {
			return fmt.Errorf("gateway service entry missing name")
		}
		if svc.BaseURL == "" {
			return fmt.Errorf("gateway service %q missing base_url", svc.Name)
		}
		names[svc.Name] = true
	}
	for _, r := range v.cfg.Gateway.Routes {
		if r.TargetService != "" && !names[r.TargetService] {
			return fmt.Errorf("route %q targets unknown service %q", r.PathPrefix, r.TargetService)
		}
	}
	return nil
}
