package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/shibukawa/esqlc"
)

// ErrOutputOutOfDate indicates a generated C file does not match what the
// current sources produce.
var ErrOutputOutOfDate = errors.New("generated output is out of date")

// CheckCmd represents the check command. It retranslates inputs in memory
// and diffs the result against the generated files on disk, for CI use.
type CheckCmd struct {
	Inputs     []string `arg:"" optional:"" help:"Input .pgc files or directories" type:"path"`
	Connection string   `short:"c" help:"Default connection for statements without AT clause"`
	Regression bool     `help:"Omit the version number from the output banner"`
}

func (c *CheckCmd) Run(ctx *Context) error {
	config, err := esqlc.LoadConfig(ctx.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.Connection != "" {
		config.DefaultConnection = c.Connection
	}

	if c.Regression {
		config.Regression = true
	}

	inputs, err := collectInputs(c.Inputs, config.InputDir)
	if err != nil {
		return err
	}

	pp := esqlc.New(config, esqlc.WithLogger(ctx.Logger))

	stale := 0

	for _, input := range inputs {
		diff, err := c.checkFile(pp, input)
		if err != nil {
			return err
		}

		if diff == "" {
			if ctx.Verbose {
				color.Green("✓ %s", input)
			}

			continue
		}

		stale++

		if !ctx.Quiet {
			color.Red("✗ %s", input)
			fmt.Print(diff)
		}
	}

	if stale > 0 {
		return fmt.Errorf("%w: %d file(s)", ErrOutputOutOfDate, stale)
	}

	return nil
}

// checkFile translates one input in memory and returns a unified diff
// against the file on disk, or "" when they match. A missing output file
// diffs against empty content.
func (c *CheckCmd) checkFile(pp *esqlc.Preprocessor, input string) (string, error) {
	data, err := os.ReadFile(input)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	want, err := pp.Translate(input, string(data))
	if err != nil {
		return "", err
	}

	outPath := pp.OutputPath(input)

	existing, err := os.ReadFile(outPath)
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read output: %w", err)
	}

	got := string(existing)
	if got == want {
		return "", nil
	}

	edits := myers.ComputeEdits(span.URIFromPath(outPath), got, want)
	diff := gotextdiff.ToUnified(outPath, outPath+" (expected)", got, edits)

	return strings.TrimRight(fmt.Sprint(diff), "\n") + "\n", nil
}
