package config_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/pable/go-curling-metrics/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load the canonical geometry", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Geometry.ButtonX, convey.ShouldEqual, 750)
				convey.So(cfg.Geometry.ButtonY, convey.ShouldEqual, 800)
				convey.So(cfg.Geometry.HouseRadius, convey.ShouldEqual, 600)
				convey.So(cfg.Geometry.CorridorHalfWidth, convey.ShouldEqual, 200)
				convey.So(cfg.Geometry.OffSheet, convey.ShouldEqual, 4095)
				convey.So(cfg.StateShot, convey.ShouldEqual, 3)
				convey.So(cfg.Indices.CSIProfile, convey.ShouldEqual, config.CSIFull)
				convey.So(cfg.Groups.Fallback, convey.ShouldEqual, "Field")
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CURLMETRICS_GEOMETRY__HOUSE_RADIUS", "550")
			_ = os.Setenv("CURLMETRICS_STATE_SHOT", "4")
			_ = os.Setenv("CURLMETRICS_LOG_LEVEL", "debug")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Geometry.HouseRadius, convey.ShouldEqual, 550)
				convey.So(cfg.StateShot, convey.ShouldEqual, 4)
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
				convey.So(cfg.Geometry.CorridorHalfWidth, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
timing:
  preset: quarters
indices:
  csi_profile: corridor_guard
groups:
  targets: [SWE]
aggregation:
  at_least: [1]
`)

			cfg, err := config.Load(ctx, path)

			convey.Convey("Then lists from the file replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Groups.Targets, convey.ShouldResemble, []string{"SWE"})
				convey.So(cfg.Aggregation.AtLeast, convey.ShouldResemble, []float64{1})
				convey.So(cfg.Aggregation.Exactly, convey.ShouldResemble, []float64{0, 1, 2})

				w, err := cfg.CSIWeights()
				convey.So(err, convey.ShouldBeNil)
				convey.So(w.House, convey.ShouldEqual, 0)
				convey.So(w.Corridor, convey.ShouldEqual, 1)

				b, err := cfg.TimingBuckets()
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(b), convey.ShouldEqual, 4)
				convey.So(b[3].Label, convey.ShouldEqual, "Final (7+)")
			})
		})

		convey.Convey("When the config path comes from the environment", func() {
			path := writeConfigFile(t, "state_shot: 2\n")
			_ = os.Setenv("CURLMETRICS_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then the file is read", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.StateShot, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the timing preset is unknown", func() {
			path := writeConfigFile(t, "timing:\n  preset: halves\n")

			_, err := config.Load(ctx, path)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestValidate(t *testing.T) {
	convey.Convey("Given default config", t, func() {
		cfg := config.New()

		convey.Convey("It validates", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Equal sentinels are rejected", func() {
			cfg.Geometry.OffSheet = cfg.Geometry.NotThrown
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("A deep guard line outside the guard band is rejected", func() {
			cfg.Geometry.DeepGuardY = 3000
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unknown csi profile is rejected", func() {
			cfg.Indices.CSIProfile = "nope"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("The default timing scheme starts open ended", func() {
			b, err := cfg.TimingBuckets()
			convey.So(err, convey.ShouldBeNil)
			convey.So(math.IsInf(b[0].Min, -1), convey.ShouldBeTrue)
			convey.So(b[1].Min, convey.ShouldEqual, 3)
			convey.So(b[2].Min, convey.ShouldEqual, 7)
		})
	})
}

func TestTimingPresets(t *testing.T) {
	convey.Convey("Presets are listed in order", t, func() {
		convey.So(config.TimingPresets(), convey.ShouldResemble, []string{"quarters", "thirds"})
	})
}

func clearConfigEnvVars() {
	for _, k := range []string{
		"CURLMETRICS_CONFIG",
		"CURLMETRICS_GEOMETRY__HOUSE_RADIUS",
		"CURLMETRICS_STATE_SHOT",
		"CURLMETRICS_LOG_LEVEL",
	} {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
