package adapters

import (
	"context"
	"path/filepath"

	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// BuildFailureHeader is the structured failure header for builds.
const BuildFailureHeader = "Failed To Build Application"

// Build spawns the configured build command directly in the environment,
// accumulates its output, and discovers where artifacts were written by
// probing a fixed ordered list of conventional output directories.
type Build struct {
	env     types.Environment
	cfg     config.BuildConfig
	emitter *alerts.Emitter
}

// NewBuild creates the build adapter.
func NewBuild(env types.Environment, cfg config.BuildConfig, emitter *alerts.Emitter) *Build {
	return &Build{env: env, cfg: cfg, emitter: emitter}
}

// Execute runs the build, emitting deployment-stage alerts before the
// spawn and after the exit. On success the outcome detail carries the
// resolved output directory.
func (a *Build) Execute(ctx context.Context, action types.Action) types.Outcome {
	logger := logging.GetLogger("adapters.build").With().Str("id", action.ID).Logger()

	a.emitter.Deployment(types.DeploymentAlert{
		Alert: types.Alert{
			Type:        types.AlertInfo,
			Title:       "Building Application",
			Description: "Running the project build",
			Content:     a.cfg.Command,
		},
		Stage:       types.StageBuilding,
		BuildStatus: types.StageStatusPending,
	})

	logger.Debug().Str("command", a.cfg.Command).Msg("Spawning build")
	result, err := a.env.Spawn(ctx, a.cfg.Command)
	if err != nil {
		a.emitBuildFailed(err.Error())
		return types.Failure(BuildFailureHeader, err.Error())
	}
	if result.ExitCode != 0 {
		logger.Info().Int("exitCode", result.ExitCode).Msg("Build failed")
		a.emitBuildFailed(result.Output)
		return types.Failure(BuildFailureHeader, result.Output)
	}

	outputDir := a.resolveOutputDir()
	logger.Debug().Str("outputDir", outputDir).Msg("Build completed")

	a.emitter.Deployment(types.DeploymentAlert{
		Alert: types.Alert{
			Type:        types.AlertInfo,
			Title:       "Build Completed",
			Description: "Build artifacts written to " + outputDir,
			Content:     result.Output,
		},
		Stage:       types.StageBuilding,
		BuildStatus: types.StageStatusSuccess,
	})

	return types.Success(outputDir)
}

// resolveOutputDir probes the conventional output directories in order
// and falls back to the configured default when none exist.
func (a *Build) resolveOutputDir() string {
	fs := a.env.FS()
	for _, dir := range a.cfg.OutputDirs {
		info, err := fs.Stat(filepath.Join(a.env.WorkDir(), dir))
		if err == nil && info.IsDir() {
			return dir
		}
	}
	return a.cfg.DefaultOutput
}

func (a *Build) emitBuildFailed(output string) {
	a.emitter.Deployment(types.DeploymentAlert{
		Alert: types.Alert{
			Type:        types.AlertError,
			Title:       "Build Failed",
			Description: "The project build exited with an error",
			Content:     output,
		},
		Stage:       types.StageBuilding,
		BuildStatus: types.StageStatusFailed,
	})
}
