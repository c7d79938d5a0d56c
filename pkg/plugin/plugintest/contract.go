// Package plugintest provides shared contract tests that verify any
// plugin.Plugin implementation behaves correctly. Every module's test
// file should call TestPluginContract to ensure conformance.
package plugintest

import (
	"context"
	"testing"

	"github.com/HerbHall/wlanscan/pkg/plugin"
	"go.uber.org/zap"
)

// Option adjusts the dependencies handed to the plugin under test.
type Option func(*plugin.Dependencies)

// WithStore supplies a fresh store for every sub-test. Plugins that persist
// data refuse to Init without one.
func WithStore(newStore func(t *testing.T) plugin.Store) Option {
	return func(d *plugin.Dependencies) {
		d.Store = newStore(currentT)
	}
}

// WithConfig supplies a config section for the plugin under test.
func WithConfig(cfg plugin.Config) Option {
	return func(d *plugin.Dependencies) {
		d.Config = cfg
	}
}

// currentT is set for the duration of each sub-test so store factories can
// register cleanups. Contract sub-tests never run in parallel.
var currentT *testing.T

// TestPluginContract runs a suite of behavioral contract tests against
// any plugin.Plugin implementation. Call this from each module's _test.go:
//
//	func TestContract(t *testing.T) {
//	    plugintest.TestPluginContract(t, func() plugin.Plugin { return scan.New() })
//	}
func TestPluginContract(t *testing.T, factory func() plugin.Plugin, opts ...Option) {
	t.Helper()

	deps := func(t *testing.T, name string) plugin.Dependencies {
		currentT = t
		logger, _ := zap.NewDevelopment()
		d := plugin.Dependencies{Logger: logger.Named(name)}
		for _, opt := range opts {
			opt(&d)
		}
		return d
	}

	t.Run("Info_returns_valid_metadata", func(t *testing.T) {
		p := factory()
		info := p.Info()
		if info.Name == "" {
			t.Error("Info().Name must not be empty")
		}
		if info.Version == "" {
			t.Error("Info().Version must not be empty")
		}
		if info.APIVersion < plugin.APIVersionMin {
			t.Errorf("Info().APIVersion = %d, below minimum %d", info.APIVersion, plugin.APIVersionMin)
		}
	})

	t.Run("Init_succeeds_with_valid_deps", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
	})

	t.Run("Start_after_Init", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	})

	t.Run("Stop_without_Start_does_not_panic", func(t *testing.T) {
		p := factory()
		if err := p.Init(context.Background(), deps(t, p.Info().Name)); err != nil {
			t.Fatalf("Init() error = %v", err)
		}
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() without Start error = %v", err)
		}
	})

	t.Run("Info_is_idempotent", func(t *testing.T) {
		p := factory()
		a := p.Info()
		b := p.Info()
		if a.Name != b.Name || a.Version != b.Version {
			t.Error("Info() must return consistent results")
		}
	})
}
