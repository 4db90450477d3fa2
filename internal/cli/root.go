package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"quillborn-cli/internal/engine"
	"quillborn-cli/internal/format"
	"quillborn-cli/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	Project    string
	PrettyJSON bool
	Format     string
	Verbose    bool
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "quillborn",
		Short:        "Quillborn manuscript CLI + editor",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start a new book
  quillborn init --title "The Long Night" --author "R. Vale"

  # Open the editor on the last chapter you worked on
  quillborn edit

  # Scriptable commands
  quillborn chapters add "Chapter One"
  quillborn search wolf --format text
  quillborn export html --out book.html
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Project, "project", envOr("QUILLBORN_PROJECT", ""), "Path to the project directory (default: discovered from cwd, then the current project)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("QUILLBORN_FORMAT", "json"), "Output format (json|edn|text)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", envOr("QUILLBORN_DEBUG", "") != "", "Log debug output to stderr")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newStatusCmd(app))
	cmd.AddCommand(newTreeCmd(app))
	cmd.AddCommand(newChaptersCmd(app))
	cmd.AddCommand(newWriteCmd(app))
	cmd.AddCommand(newCatCmd(app))
	cmd.AddCommand(newSearchCmd(app))
	cmd.AddCommand(newReplaceCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newSnapshotCmd(app))
	cmd.AddCommand(newPalimpsestCmd(app))
	cmd.AddCommand(newCommandsCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newRecentCmd(app))
	cmd.AddCommand(newEditCmd(app))

	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (app *App) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if app.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// resolveProject picks the project directory:
// 1) --project / QUILLBORN_PROJECT
// 2) a manuscript.json in cwd or any parent
// 3) ~/.quillborn/config.json currentProject
func resolveProject(app *App) (string, error) {
	if p := strings.TrimSpace(app.Project); p != "" {
		return filepath.Abs(p)
	}
	if wd, err := os.Getwd(); err == nil {
		if dir, ok := store.DiscoverProject(wd); ok {
			return dir, nil
		}
	}
	if cfg, err := store.LoadConfig(); err == nil && cfg.CurrentProject != "" {
		return cfg.CurrentProject, nil
	}
	return "", errNoProject
}

// openEngine opens the resolved project. Callers must Close the engine.
func openEngine(cmd *cobra.Command, app *App) (*engine.Engine, *store.Store, error) {
	path, err := resolveProject(app)
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s := store.New()
	ix, err := store.OpenIndex(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := store.LoadConfig()
	if err != nil {
		app.logger(cmd).Warn("load config", "err", err)
		cfg = &store.GlobalConfig{}
	}
	e, err := engine.Open(ctx, s, path, engine.Options{
		Debounce: cfg.AutosaveDebounce(),
		Index:    ix,
		Logger:   app.logger(cmd),
	})
	if err != nil {
		_ = ix.Close()
		return nil, nil, err
	}
	cfg.TouchRecent(e.Path(), e.Project().Metadata.Title, time.Now())
	if err := store.SaveConfig(cfg); err != nil {
		app.logger(cmd).Debug("save config", "err", err)
	}
	return e, s, nil
}

func closeEngine(cmd *cobra.Command, e *engine.Engine) error {
	return e.Close(context.WithoutCancel(cmdContext(cmd)))
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// output is a command result: the JSON/EDN envelope plus its --format text rendering.
type output struct {
	env  map[string]any
	text string
}

func (o output) MarshalJSON() ([]byte, error) { return json.Marshal(o.env) }

func (o output) Text() string { return o.text }

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

// writeResult writes env, or text when --format text is selected and text is non-empty.
func writeResult(cmd *cobra.Command, app *App, env map[string]any, text string) error {
	if strings.TrimSpace(text) == "" {
		return writeOut(cmd, app, env)
	}
	return writeOut(cmd, app, output{env: env, text: text})
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
