package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/runlet/pkg/config"
	"github.com/arthur-debert/runlet/pkg/engine"
	"github.com/arthur-debert/runlet/pkg/environment"
	"github.com/arthur-debert/runlet/pkg/journal"
	"github.com/arthur-debert/runlet/pkg/types"
)

var (
	workDir     string
	withJournal bool
)

var runCmd = &cobra.Command{
	Use:   "run [script.jsonl]",
	Short: "Execute a stream of action descriptors",
	Long: `Reads JSON-lines action descriptors from the given file (or stdin)
and executes them in order against the workspace. Each line is one
descriptor:

  {"id":"a1","kind":"shell","content":"npm install"}
  {"id":"a2","kind":"file","content":"body { margin: 0 }","filePath":"src/app.css"}
  {"id":"a3","kind":"migration","operation":"query","content":"SELECT 1"}`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer f.Close()
			input = f
		}
		return runScript(cmd.OutOrStdout(), input)
	},
}

func init() {
	runCmd.Flags().StringVarP(&workDir, "workdir", "w", ".", "Workspace root actions execute against")
	runCmd.Flags().BoolVar(&withJournal, "journal", false, "Record finalized actions to the sqlite journal")
}

func runScript(out io.Writer, input io.Reader) error {
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}

	env := environment.NewLocal(workDir)
	terminal := environment.NewTerminal(workDir)
	sink := consoleSink(out)

	var opts []engine.Option
	if withJournal || cfg.Journal.Enabled {
		path := cfg.Journal.Path
		if path == "" {
			path = journal.DefaultPath()
		}
		j, err := journal.Open(path, uuid.NewString())
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, engine.WithRecorder(j))
	}

	eng := engine.New(context.Background(), cfg, env, terminal, sink, opts...)
	defer eng.Close()

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var desc types.Descriptor
		if err := json.Unmarshal(raw, &desc); err != nil {
			log.Warn().Int("line", line).Err(err).Msg("Skipping malformed descriptor")
			continue
		}

		action, err := eng.Submit(desc)
		if err != nil {
			log.Warn().Int("line", line).Err(err).Msg("Skipping invalid descriptor")
			continue
		}
		if err := eng.Run(action.ID); err != nil {
			// Only build failures surface here; they are already alerted,
			// so the script keeps going.
			log.Error().Str("id", action.ID).Err(err).Msg("Build failed")
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	printSummary(out, eng.Actions())
	return nil
}

func consoleSink(out io.Writer) types.AlertSink {
	return types.AlertSink{
		OnAlert: func(a types.Alert) {
			style := infoStyle
			if a.Type == types.AlertError {
				style = errorStyle
			}
			fmt.Fprintf(out, "%s %s\n", style.Render(a.Title), a.Description)
			if a.Content != "" {
				fmt.Fprintln(out, mutedStyle.Render(a.Content))
			}
		},
		OnDatabase: func(a types.DatabaseAlert) {
			fmt.Fprintf(out, "%s %s\n", infoStyle.Render("[db] "+a.Title), a.Description)
		},
		OnDeployment: func(a types.DeploymentAlert) {
			fmt.Fprintf(out, "%s %s: %s\n", stageStyle.Render("["+string(a.Stage)+"]"), a.Title, a.Description)
		},
	}
}

func printSummary(out io.Writer, actions []types.Action) {
	fmt.Fprintln(out)
	for _, a := range actions {
		style := infoStyle
		if a.Status == types.StatusFailed {
			style = errorStyle
		}
		fmt.Fprintf(out, "%-10s %-10s %s\n", a.Kind, style.Render(string(a.Status)), a.ID)
	}
}
