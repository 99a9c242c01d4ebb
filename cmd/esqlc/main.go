package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/shibukawa/esqlc"
)

// Context represents the global context for commands
type Context struct {
	Config  string
	Verbose bool
	Quiet   bool
	Logger  *zap.Logger
}

// CLI represents the command-line interface
var CLI struct {
	Config    string       `help:"Configuration file path" default:"esqlc.yaml"`
	Verbose   bool         `help:"Enable verbose output" short:"v"`
	Quiet     bool         `help:"Suppress output" short:"q"`
	Debug     bool         `help:"Enable debug logging"`
	Translate TranslateCmd `cmd:"" help:"Translate embedded SQL sources to C"`
	Check     CheckCmd     `cmd:"" help:"Verify generated C files are up to date"`
	Version   VersionCmd   `cmd:"" help:"Show version information"`
}

// VersionCmd represents the version command
type VersionCmd struct{}

// Run executes the version command
func (cmd *VersionCmd) Run(ctx *Context) error {
	fmt.Println("esqlc v" + esqlc.Version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI)

	logger := zap.NewNop()

	if CLI.Debug {
		var err error

		logger, err = zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
	}

	appCtx := &Context{
		Config:  CLI.Config,
		Verbose: CLI.Verbose,
		Quiet:   CLI.Quiet,
		Logger:  logger,
	}

	err := ctx.Run(appCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
