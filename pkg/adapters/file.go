package adapters

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// File writes content to a path resolved against the environment's
// working directory, creating parent directories as needed.
//
// Filesystem failures are logged but do not fail the action: a partially
// streamed write will usually be retried with fuller content moments
// later, and the upstream generator has no way to react to a transient
// fs error anyway. See DESIGN.md for the policy discussion.
type File struct {
	env types.Environment
}

// NewFile creates the file adapter.
func NewFile(env types.Environment) *File {
	return &File{env: env}
}

// Execute performs a full overwrite of the target file.
func (a *File) Execute(ctx context.Context, action types.Action) types.Outcome {
	a.Write(action.ID, action.FilePath, action.Content)
	return types.Success(action.FilePath)
}

// Write resolves the target path and writes content, ensuring parents
// exist. Used both by finalized dispatch and by streaming re-dispatch.
func (a *File) Write(id, target, content string) {
	logger := logging.GetLogger("adapters.file").With().Str("id", id).Logger()

	path := a.resolve(target)
	if dir := parentDir(path); dir != "" {
		if err := a.env.FS().MkdirAll(dir, 0755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("Failed to create parent directories")
		}
	}

	if err := a.env.FS().WriteFile(path, []byte(content), 0644); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("Failed to write file")
		return
	}

	logger.Debug().Str("path", path).Int("bytes", len(content)).Msg("File written")
}

// resolve anchors a relative target at the environment's working
// directory. Absolute targets are used as-is.
func (a *File) resolve(target string) string {
	target = strings.TrimRight(target, "/")
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(a.env.WorkDir(), target)
}

// parentDir returns the directory that must exist before writing path.
// Empty means no directory creation is needed: "."-relative paths are
// no-ops.
func parentDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" || dir == "" {
		return ""
	}
	return dir
}
