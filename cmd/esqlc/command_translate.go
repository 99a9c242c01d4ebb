package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/shibukawa/esqlc"
)

// Sentinel errors
var (
	ErrInputFileNotExist = errors.New("input file does not exist")
	ErrNoInputFiles      = errors.New("no .pgc files found")
)

// TranslateCmd represents the translate command
type TranslateCmd struct {
	Inputs     []string `arg:"" optional:"" help:"Input .pgc files or directories" type:"path"`
	OutputDir  string   `short:"o" help:"Output directory (default: next to each input)" type:"path"`
	Connection string   `short:"c" help:"Default connection for statements without AT clause"`
	Regression bool     `help:"Omit the version number from the output banner"`
	NoMarkers  bool     `help:"Do not emit #line directives"`
	Watch      bool     `short:"w" help:"Watch for file changes and retranslate automatically"`
}

func (t *TranslateCmd) Run(ctx *Context) error {
	config, err := esqlc.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	t.applyFlags(config)

	inputs, err := collectInputs(t.Inputs, config.InputDir)
	if err != nil {
		return err
	}

	pp := esqlc.New(config, esqlc.WithLogger(ctx.Logger))

	if err := t.translateAll(ctx, pp, inputs); err != nil && !t.Watch {
		return err
	}

	if t.Watch {
		return t.watch(ctx, pp, inputs)
	}

	return nil
}

// applyFlags overlays command-line flags onto the loaded configuration.
func (t *TranslateCmd) applyFlags(config *esqlc.Config) {
	if t.OutputDir != "" {
		config.OutputDir = t.OutputDir
	}

	if t.Connection != "" {
		config.DefaultConnection = t.Connection
	}

	if t.Regression {
		config.Regression = true
	}

	if t.NoMarkers {
		disabled := false
		config.Output.LineMarkers = &disabled
	}
}

// translateAll translates each input, reporting per-file results. The first
// error is returned after all files have been attempted.
func (t *TranslateCmd) translateAll(ctx *Context, pp *esqlc.Preprocessor, inputs []string) error {
	var firstErr error

	for _, input := range inputs {
		outPath, err := pp.TranslateFile(input)
		if err != nil {
			if !ctx.Quiet {
				color.Red("✗ %s: %v", input, err)
			}

			if firstErr == nil {
				firstErr = err
			}

			continue
		}

		if ctx.Verbose {
			color.Green("✓ %s -> %s", input, outPath)
		}
	}

	return firstErr
}

// watch retranslates inputs whenever they change on disk. Events are
// debounced because editors produce several writes per save.
func (t *TranslateCmd) watch(ctx *Context, pp *esqlc.Preprocessor, inputs []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	watched := map[string]bool{}

	for _, input := range inputs {
		dir := filepath.Dir(input)
		if watched[dir] {
			continue
		}

		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}

		watched[dir] = true
	}

	if !ctx.Quiet {
		color.Blue("Watching %d directories for changes...", len(watched))
	}

	inputSet := map[string]bool{}
	for _, input := range inputs {
		inputSet[input] = true
	}

	pending := map[string]time.Time{}
	debounce := time.NewTicker(200 * time.Millisecond)
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			if !inputSet[event.Name] && !strings.HasSuffix(event.Name, ".pgc") {
				continue
			}

			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			ctx.Logger.Warn("watch error", zap.Error(err))

		case <-debounce.C:
			now := time.Now()

			for path, stamp := range pending {
				if now.Sub(stamp) < 200*time.Millisecond {
					continue
				}

				delete(pending, path)

				outPath, err := pp.TranslateFile(path)
				if err != nil {
					if !ctx.Quiet {
						color.Red("✗ %s: %v", path, err)
					}

					continue
				}

				if !ctx.Quiet {
					color.Green("✓ %s -> %s", path, outPath)
				}
			}
		}
	}
}

// collectInputs expands files and directories into the list of .pgc files
// to translate. With no arguments the configured input directory is walked.
func collectInputs(args []string, inputDir string) ([]string, error) {
	if len(args) == 0 {
		args = []string{inputDir}
	}

	var inputs []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInputFileNotExist, arg)
		}

		if !info.IsDir() {
			inputs = append(inputs, arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pgc") {
				inputs = append(inputs, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputFiles, strings.Join(args, ", "))
	}

	return inputs, nil
}
