package routes

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pkt.systems/wayfare/schema"
)

func TestDefaultTablePaths(t *testing.T) {
	table := DefaultTable()
	if err := table.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	want := map[schema.NavigationTarget]string{
		schema.TargetSuperAdmin: "/superadmin",
		schema.TargetKeeper:     "/keepers",
		schema.TargetHost:       "/anfitrion",
		schema.TargetAgent:      "/agent",
		schema.TargetCustomer:   "/customers",
	}
	for target, path := range want {
		got, err := table.Path(target)
		if err != nil {
			t.Fatalf("path %q: %v", target, err)
		}
		if got != path {
			t.Fatalf("path %q = %q, want %q", target, got, path)
		}
	}
	if _, err := table.Path("nope"); !errors.Is(err, schema.ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestWithOverrides(t *testing.T) {
	base := DefaultTable()
	table, err := base.WithOverrides(map[string]string{
		"host":     "/hosts",
		"login":    "/ingresar",
		"customer": "  ",
	})
	if err != nil {
		t.Fatalf("overrides: %v", err)
	}
	if got, _ := table.Path(schema.TargetHost); got != "/hosts" {
		t.Fatalf("expected host override, got %q", got)
	}
	if got, _ := table.Path(schema.TargetCustomer); got != "/customers" {
		t.Fatalf("expected blank override to be ignored, got %q", got)
	}
	if table.Login != "/ingresar" {
		t.Fatalf("expected login override, got %q", table.Login)
	}
	if got, _ := base.Path(schema.TargetHost); got != "/anfitrion" {
		t.Fatalf("expected base table untouched, got %q", got)
	}
}

func TestWithOverridesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]string
		want      string
	}{
		{name: "unknown-target", overrides: map[string]string{"pilot": "/pilot"}, want: "routes.pilot"},
		{name: "relative", overrides: map[string]string{"agent": "agent"}, want: "must start with '/'"},
		{name: "url", overrides: map[string]string{"keeper": "/x://y"}, want: "plain path"},
		{name: "query", overrides: map[string]string{"landing": "/?a=b"}, want: "plain path"},
	}
	for _, tc := range tests {
		_, err := DefaultTable().WithOverrides(tc.overrides)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestNavigatorFunc(t *testing.T) {
	var gotTarget schema.NavigationTarget
	var gotPath string
	nav := NavigatorFunc(func(_ context.Context, target schema.NavigationTarget, path string) error {
		gotTarget, gotPath = target, path
		return nil
	})
	if err := nav.Navigate(context.Background(), schema.TargetKeeper, "/keepers"); err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if gotTarget != schema.TargetKeeper || gotPath != "/keepers" {
		t.Fatalf("unexpected navigation %q %q", gotTarget, gotPath)
	}
}

func TestMapRoundTrip(t *testing.T) {
	table := DefaultTable()
	flat := table.Map()
	if flat["host"] != "/anfitrion" || flat["login"] != "/login" || flat["landing"] != "/" {
		t.Fatalf("unexpected flattened routes %+v", flat)
	}
	again, err := DefaultTable().WithOverrides(flat)
	if err != nil {
		t.Fatalf("with overrides: %v", err)
	}
	for _, target := range schema.NavigationTargets() {
		if again.Targets[target] != table.Targets[target] {
			t.Fatalf("target %s changed: %q", target, again.Targets[target])
		}
	}
}
