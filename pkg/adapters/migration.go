package adapters

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/arthur-debert/runlet/pkg/alerts"
	"github.com/arthur-debert/runlet/pkg/logging"
	"github.com/arthur-debert/runlet/pkg/types"
)

// MigrationFailureHeader is the structured failure header for database
// operations.
const MigrationFailureHeader = "Failed To Run Database Operation"

// Migration handles the two database operation variants. A migration
// writes its SQL to a file in the workspace and announces it; a query is
// never executed here at all, only forwarded over the database alert
// channel to the collaborator that owns the live connection.
//
// Failures never escape this adapter: whatever goes wrong is folded into
// a Failure outcome so the scheduler's chain continues undisturbed.
type Migration struct {
	file          *File
	emitter       *alerts.Emitter
	migrationsDir string
}

// NewMigration creates the migration adapter.
func NewMigration(file *File, emitter *alerts.Emitter, migrationsDir string) *Migration {
	return &Migration{file: file, emitter: emitter, migrationsDir: migrationsDir}
}

// Execute dispatches on the action's operation tag.
func (a *Migration) Execute(ctx context.Context, action types.Action) (outcome types.Outcome) {
	logger := logging.GetLogger("adapters.migration").With().Str("id", action.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Database operation panicked")
			outcome = types.Failure(MigrationFailureHeader, fmt.Sprint(r))
		}
	}()

	switch action.Operation {
	case types.OpMigration:
		return a.applyMigration(action)
	case types.OpQuery:
		return a.forwardQuery(action)
	}

	// Register validates the tag, so this only fires on a record built
	// outside the store.
	return types.Failure(MigrationFailureHeader, fmt.Sprintf("unknown operation: %q", action.Operation))
}

func (a *Migration) applyMigration(action types.Action) types.Outcome {
	path := action.FilePath
	if path == "" {
		path = filepath.Join(a.migrationsDir, action.ID+".sql")
	}

	a.file.Write(action.ID, path, action.Content)

	a.emitter.Database(types.DatabaseAlert{
		Alert: types.Alert{
			Type:        types.AlertInfo,
			Title:       "Migration Created",
			Description: "New migration written to " + path,
			Content:     action.Content,
		},
	})

	return types.Success(path)
}

func (a *Migration) forwardQuery(action types.Action) types.Outcome {
	a.emitter.Database(types.DatabaseAlert{
		Alert: types.Alert{
			Type:        types.AlertInfo,
			Title:       "Query Requested",
			Description: "SQL query deferred to the database owner",
			Content:     action.Content,
		},
	})

	// Actual execution belongs to the alert consumer; from the engine's
	// side the hand-off is the whole job.
	return types.Pending()
}
