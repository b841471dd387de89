// Command lambdajobs rewrites the lambda jobs of compiled ECS modules.
//
//	lambdajobs process [--out dir] [--ref module]... module...
//	lambdajobs dump [--method name] module
//	lambdajobs framework [--out dir]
//	lambdajobs demo [-i] [scenario]...
//
// Settings come from lambdajobs.toml in the working directory, or the
// file named by --config; flags override them.
package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errFailed reports that some input had errors already printed in the
// report.
var errFailed = stderrors.New("processing failed")

// app holds the flags and the state built from them before a command
// runs.
type app struct {
	configPath string
	format     string
	color      string
	out        string
	logLevel   string
	verbose    bool

	verify       bool
	keepOriginal bool
	noStructs    bool
	maxChains    int

	cfg *Config
	log *zap.Logger
}

func main() {
	a := &app{}
	err := a.root().Execute()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		if !stderrors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:               "lambdajobs",
		Short:             "Rewrite lambda jobs into job structs",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "config file (default ./"+defaultConfigFile+" when present)")
	f.StringVar(&a.format, "format", formatText, "report format: text, json, yaml or cbor")
	f.StringVar(&a.color, "color", colorAuto, "colour: auto, always or never")
	f.StringVar(&a.logLevel, "log-level", "warn", "log level")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")
	f.BoolVar(&a.verify, "verify", true, "validate rewritten methods")
	f.BoolVar(&a.keepOriginal, "keep-original", false, "keep a $Unprocessed copy of rewritten methods")
	f.BoolVar(&a.noStructs, "no-closure-structs", false, "keep closures as classes")
	f.IntVar(&a.maxChains, "max-chains", 0, "maximum lambda jobs per method")

	root.AddCommand(a.processCmd(), a.dumpCmd(), a.frameworkCmd(), a.demoCmd())
	return root
}

// setup loads the config file and applies the flags the user set.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = a.format
	}
	if flags.Changed("color") {
		cfg.Output.Color = a.color
	}
	if flags.Changed("out") {
		cfg.Output.Dir = a.out
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if flags.Changed("verify") {
		cfg.Pass.Verify = a.verify
	}
	if flags.Changed("keep-original") {
		cfg.Pass.KeepOriginal = a.keepOriginal
	}
	if flags.Changed("no-closure-structs") {
		cfg.Pass.NoStructs = a.noStructs
	}
	if flags.Changed("max-chains") {
		cfg.Pass.MaxChains = a.maxChains
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	log, err := cfg.logger()
	if err != nil {
		return err
	}
	setupColor(cfg.Output.Color)
	a.cfg, a.log = cfg, log
	return nil
}
