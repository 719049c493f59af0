package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kwv/cairn/markup"
)

// App wires the CLI commands to the reconciliation pipeline. Commands are
// built per-invocation so tests can run them in isolation.
type App struct {
	version string
	logger  zerolog.Logger

	// persistent flags
	configPath string
	verbose    bool
	quiet      bool
}

// NewApp creates the application with a console logger on stderr.
func NewApp(version string) *App {
	return &App{
		version: version,
		logger:  zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
	}
}

// Execute builds the command tree and runs it against os.Args. Cobra is
// silenced, so a failing command's error is reported here, exactly once,
// on the command's error stream.
func (a *App) Execute() error {
	return a.execute(a.RootCommand())
}

func (a *App) execute(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// RootCommand builds the full cairn command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cairn",
		Short: "Reconcile geospatial markup between mapping platforms",
		Long: `cairn normalizes GPX, KML and GeoJSON exports into one canonical feature
set, collapses duplicates deterministically, and maps source icons and colors
onto the closed vocabularies a target platform accepts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.configureLogger()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "mapping configuration file (YAML); built-in defaults when empty")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "warnings and errors only")

	root.AddCommand(a.migrateCommand())
	root.AddCommand(a.renderCommand())
	root.AddCommand(a.iconsCommand())
	root.AddCommand(a.versionCommand())
	return root
}

// configureLogger applies level precedence: --verbose, then --quiet, then
// info.
func (a *App) configureLogger() {
	level := zerolog.InfoLevel
	if a.quiet {
		level = zerolog.WarnLevel
	}
	if a.verbose {
		if a.quiet {
			fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		} else {
			level = zerolog.DebugLevel
		}
	}
	a.logger = a.logger.Level(level)
}

func (a *App) loadConfig() (*markup.MappingConfig, error) {
	if a.configPath == "" {
		return markup.DefaultMappingConfig(), nil
	}
	cfg, err := markup.LoadMappingConfig(a.configPath)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("path", a.configPath).Msg("loaded mapping config")
	return cfg, nil
}

func (a *App) migrateCommand() *cobra.Command {
	var (
		output      string
		droppedPath string
		tracePath   string
		summaryPath string
		prefer      string
		strictIcons bool
	)

	cmd := &cobra.Command{
		Use:   "migrate <input>...",
		Short: "Reconcile one or more exports and write the migrated document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.reconcileInputs(args, prefer)
			if err != nil {
				return err
			}

			a.logger.Info().
				Int("kept", len(res.Kept)).
				Int("dropped", len(res.Dropped)).
				Int("groups", len(res.Groups)).
				Int("malformed", len(res.Malformed)).
				Msg("reconciliation complete")

			if output != "" {
				if err := a.writeDocument(output, res.Kept, res.Folders); err != nil {
					return err
				}
				a.logger.Info().Str("path", output).Msg("wrote migrated document")
			}
			if droppedPath != "" && len(res.Dropped) > 0 {
				if err := a.writeDocument(droppedPath, res.Dropped, nil); err != nil {
					return err
				}
				a.logger.Info().Str("path", droppedPath).Msg("wrote dropped features")
			}
			if tracePath != "" {
				if err := writeFileWith(tracePath, func(w io.Writer) error {
					return markup.WriteTrace(w, res.Trace)
				}); err != nil {
					return err
				}
			}
			if err := a.emitSummary(summaryPath, res); err != nil {
				return err
			}

			for _, ref := range res.MissingFolderRefs {
				a.logger.Warn().Str("folder_id", ref).Msg("dangling folder reference")
			}
			if len(res.UnmappedSymbols) > 0 {
				for _, sym := range sortedKeys(res.UnmappedSymbols) {
					u := res.UnmappedSymbols[sym]
					a.logger.Warn().
						Str("symbol", sym).
						Int("count", u.Count).
						Str("example", u.ExampleFeatureID).
						Msg("symbol fell through to default icon")
				}
				if strictIcons {
					return fmt.Errorf("%d symbols unmapped with --strict-icons", len(res.UnmappedSymbols))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "migrated.json", "output document (.gpx, .json or .geojson)")
	cmd.Flags().StringVar(&droppedPath, "dropped", "", "write dropped features to this GeoJSON file")
	cmd.Flags().StringVar(&tracePath, "trace", "", "write the decision trace (JSON Lines) to this file")
	cmd.Flags().StringVar(&summaryPath, "summary", "-", "summary destination (- for stdout)")
	cmd.Flags().StringVar(&prefer, "prefer", string(markup.FormatGPX), "source format kept inside duplicate groups (gpx, kml, geojson)")
	cmd.Flags().BoolVar(&strictIcons, "strict-icons", false, "exit non-zero when any symbol resolves to the default icon")
	return cmd
}

func (a *App) renderCommand() *cobra.Command {
	var (
		output      string
		prefer      string
		showDropped bool
	)

	cmd := &cobra.Command{
		Use:   "render <input>...",
		Short: "Render a preview image of the reconciled feature set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.reconcileInputs(args, prefer)
			if err != nil {
				return err
			}

			dropped := res.Dropped
			if !showDropped {
				dropped = nil
			}
			renderer := markup.NewPreviewRenderer(markup.SortForRender(res.Kept), dropped)

			err = writeFileWith(output, func(w io.Writer) error {
				switch strings.ToLower(filepath.Ext(output)) {
				case ".svg":
					return renderer.RenderToSVG(w)
				case ".png":
					return renderer.RenderToPNG(w)
				default:
					return fmt.Errorf("unsupported render format %q (use .svg or .png)", filepath.Ext(output))
				}
			})
			if err != nil {
				return err
			}
			a.logger.Info().Str("path", output).Int("features", len(res.Kept)).Msg("wrote preview")
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "preview.svg", "preview file (.svg or .png)")
	cmd.Flags().StringVar(&prefer, "prefer", string(markup.FormatGPX), "source format kept inside duplicate groups")
	cmd.Flags().BoolVar(&showDropped, "show-dropped", false, "plot dropped duplicates in grey")
	return cmd
}

func (a *App) iconsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "icons [symbol]...",
		Short: "List target icons, or test-resolve source symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				for _, icon := range cfg.TargetIcons() {
					cmd.Println(icon)
				}
				return nil
			}

			mapper, err := markup.NewIconMapper(cfg, nil)
			if err != nil {
				return err
			}
			for _, sym := range args {
				result, unresolved := mapper.Resolve(sym, "", "")
				line := fmt.Sprintf("%-24s -> %-24s tier=%s confidence=%.2f", sym, result.Icon, result.Tier, result.Confidence)
				if unresolved && result.Suggestion != "" {
					line += fmt.Sprintf(" (closest: %s %.2f)", result.Suggestion, result.SuggestionScore)
				}
				cmd.Println(line)
			}
			return nil
		},
	}
	return cmd
}

func (a *App) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("cairn %s\n", a.version)
		},
	}
}

// reconcileInputs parses every input file by extension and runs the full
// pipeline over the combined batches.
func (a *App) reconcileInputs(paths []string, prefer string) (*markup.Result, error) {
	preferred, err := parseSourceFormat(prefer)
	if err != nil {
		return nil, err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	rec, err := markup.NewReconciler(cfg, nil)
	if err != nil {
		return nil, err
	}

	batches := make([]markup.Batch, 0, len(paths))
	for _, path := range paths {
		batch, err := a.parseInput(path)
		if err != nil {
			return nil, err
		}
		a.logger.Debug().
			Str("path", path).
			Str("format", string(batch.Source)).
			Int("features", len(batch.Features)).
			Msg("parsed input")
		batches = append(batches, batch)
	}

	res := rec.Reconcile(batches, preferred)
	for _, m := range res.Malformed {
		a.logger.Warn().
			Str("feature_id", m.FeatureID).
			Str("path", m.Path).
			Str("reason", m.Reason).
			Msg("dropped malformed feature")
	}
	for _, g := range res.Groups {
		a.logger.Debug().
			Str("group", g.ID).
			Str("kept", g.KeptID).
			Strs("dropped", g.DroppedIDs).
			Str("reason", string(g.Reason)).
			Msg("collapsed duplicate group")
	}
	return res, nil
}

func (a *App) parseInput(path string) (markup.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return markup.Batch{}, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		return markup.ParseGPX(f, path)
	case ".kml":
		return markup.ParseKML(f, path)
	case ".json", ".geojson":
		return markup.ParseGeoJSON(f, path)
	default:
		return markup.Batch{}, fmt.Errorf("unsupported input format %q: %s", filepath.Ext(path), path)
	}
}

// writeDocument serializes features to the format implied by the output
// extension.
func (a *App) writeDocument(path string, features []markup.Feature, folders markup.FolderIndex) error {
	return writeFileWith(path, func(w io.Writer) error {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".gpx":
			return markup.WriteGPX(w, features)
		case ".json", ".geojson":
			return markup.WriteGeoJSON(w, features, sortedFolders(folders))
		default:
			return fmt.Errorf("unsupported output format %q: %s", filepath.Ext(path), path)
		}
	})
}

func (a *App) emitSummary(dest string, res *markup.Result) error {
	if dest == "" {
		return nil
	}
	if dest == "-" {
		return markup.WriteSummary(os.Stdout, res)
	}
	return writeFileWith(dest, func(w io.Writer) error {
		return markup.WriteSummary(w, res)
	})
}

func writeFileWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseSourceFormat(s string) (markup.SourceFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpx":
		return markup.FormatGPX, nil
	case "kml":
		return markup.FormatKML, nil
	case "json", "geojson":
		return markup.FormatGeoJSON, nil
	default:
		return "", fmt.Errorf("unknown source format %q (use gpx, kml or geojson)", s)
	}
}

func sortedFolders(idx markup.FolderIndex) []markup.Folder {
	out := make([]markup.Folder, 0, len(idx))
	for _, f := range idx {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedKeys(m map[string]*markup.UnmappedSymbol) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
