// Package routes maps navigation targets to application paths.
package routes

import (
	"context"
	"fmt"
	"strings"

	"pkt.systems/wayfare/schema"
)

const (
	// DefaultLoginPath is where unauthenticated sessions are sent.
	DefaultLoginPath = "/login"
	// DefaultLandingPath is the public landing page.
	DefaultLandingPath = "/"
)

// Table maps each navigation target to a route.
type Table struct {
	Targets map[schema.NavigationTarget]string
	Login   string
	Landing string
}

// DefaultTable returns the marketplace routes.
func DefaultTable() Table {
	return Table{
		Targets: map[schema.NavigationTarget]string{
			schema.TargetSuperAdmin: "/superadmin",
			schema.TargetKeeper:     "/keepers",
			schema.TargetHost:       "/anfitrion",
			schema.TargetAgent:      "/agent",
			schema.TargetCustomer:   "/customers",
		},
		Login:   DefaultLoginPath,
		Landing: DefaultLandingPath,
	}
}

// WithOverrides returns a copy of t with non-empty overrides applied.
// Override keys are target names plus "login" and "landing".
func (t Table) WithOverrides(overrides map[string]string) (Table, error) {
	out := Table{
		Targets: make(map[schema.NavigationTarget]string, len(t.Targets)),
		Login:   t.Login,
		Landing: t.Landing,
	}
	for target, path := range t.Targets {
		out.Targets[target] = path
	}
	for key, path := range overrides {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "login":
			out.Login = path
			continue
		case "landing":
			out.Landing = path
			continue
		}
		target, err := schema.ParseNavigationTarget(key)
		if err != nil {
			return Table{}, fmt.Errorf("routes.%s: %w", key, err)
		}
		out.Targets[target] = path
	}
	if err := out.Validate(); err != nil {
		return Table{}, err
	}
	return out, nil
}

// Map flattens t into the override form accepted by WithOverrides.
func (t Table) Map() map[string]string {
	out := make(map[string]string, len(t.Targets)+2)
	for target, path := range t.Targets {
		out[string(target)] = path
	}
	out["login"] = t.Login
	out["landing"] = t.Landing
	return out
}

// Validate ensures every target has an absolute path.
func (t Table) Validate() error {
	for _, target := range schema.NavigationTargets() {
		if err := validatePath(string(target), t.Targets[target]); err != nil {
			return err
		}
	}
	if err := validatePath("login", t.Login); err != nil {
		return err
	}
	return validatePath("landing", t.Landing)
}

// Path returns the route for target.
func (t Table) Path(target schema.NavigationTarget) (string, error) {
	path, ok := t.Targets[target]
	if !ok || path == "" {
		return "", fmt.Errorf("%w: %q", schema.ErrInvalidTarget, target)
	}
	return path, nil
}

func validatePath(name, path string) error {
	if path == "" {
		return fmt.Errorf("route %s is required", name)
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("route %s must start with '/': %q", name, path)
	}
	if strings.Contains(path, "://") || strings.ContainsAny(path, "?#") {
		return fmt.Errorf("route %s must be a plain path: %q", name, path)
	}
	return nil
}

// Navigator performs navigation once a target has been resolved.
type Navigator interface {
	Navigate(ctx context.Context, target schema.NavigationTarget, path string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target schema.NavigationTarget, path string) error

// Navigate calls f.
func (f NavigatorFunc) Navigate(ctx context.Context, target schema.NavigationTarget, path string) error {
	return f(ctx, target, path)
}
