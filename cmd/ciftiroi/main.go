package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"ciftiroi/internal/logging"
	"ciftiroi/pkg/config"
	"ciftiroi/pkg/pipeline"
	"ciftiroi/pkg/workbench"
)

// options holds the parsed command line
type options struct {
	input        string
	output       string
	leftSurface  string
	rightSurface string
	atlas        string
	threshold    float64
	distance     float64
	configPath   string
	writeConfig  string
	wbCommand    string
	timeout      time.Duration
	saveInter    bool
	interDir     string
	legacyExt    bool
	verbose      bool
}

// stringFlag registers one string option under several names
func stringFlag(fs *flag.FlagSet, p *string, value, usage string, names ...string) {
	for _, name := range names {
		fs.StringVar(p, name, value, usage)
	}
}

func floatFlag(fs *flag.FlagSet, p *float64, value float64, usage string, names ...string) {
	for _, name := range names {
		fs.Float64Var(p, name, value, usage)
	}
}

func parseFlags(fs *flag.FlagSet, args []string, defaults *config.Config) (*options, map[string]bool, error) {
	opts := &options{}

	stringFlag(fs, &opts.input, "", "Cifti statistical map (STATS.dscalar.nii)", "i", "input")
	stringFlag(fs, &opts.output, "", "Output spreadsheet name (OUTPUT.csv)", "o", "output")
	stringFlag(fs, &opts.leftSurface, "", "Left gifti surface", "l", "left-surface")
	stringFlag(fs, &opts.rightSurface, "", "Right gifti surface", "r", "right-surface")
	stringFlag(fs, &opts.atlas, "", "Cifti atlas file (ATLAS.dlabel.nii)", "a", "atlas")
	floatFlag(fs, &opts.threshold, defaults.Clustering.Threshold, "Cluster threshold", "t", "thresh")
	floatFlag(fs, &opts.distance, defaults.Clustering.Distance, "Minimum distance between clusters", "d", "distance")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.writeConfig, "write-config", "", "Write the default configuration to this file and exit")
	fs.StringVar(&opts.wbCommand, "wb-command", defaults.Workbench.Command, "Surface-processing executable")
	fs.DurationVar(&opts.timeout, "timeout", time.Duration(defaults.Workbench.Timeout), "Time limit per external command (0 disables)")
	fs.BoolVar(&opts.saveInter, "save-intermediary", defaults.Output.SaveIntermediaryResults, "Save per-hemisphere vectors as .npy files")
	fs.StringVar(&opts.interDir, "intermediary-dir", defaults.Output.IntermediaryDir, "Directory to save intermediary results")
	fs.BoolVar(&opts.legacyExt, "legacy-extension-match", defaults.Output.LegacyExtensionMatch, "Rewrite any output path containing .csv/.tsv/.txt")
	fs.BoolVar(&opts.verbose, "verbose", defaults.Output.Verbose, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return opts, set, nil
}

// applyFlags overrides cfg with every flag given on the command line
func applyFlags(cfg *config.Config, opts *options, set map[string]bool) {
	if set["t"] || set["thresh"] {
		cfg.Clustering.Threshold = opts.threshold
	}
	if set["d"] || set["distance"] {
		cfg.Clustering.Distance = opts.distance
	}
	if set["wb-command"] {
		cfg.Workbench.Command = opts.wbCommand
	}
	if set["timeout"] {
		cfg.Workbench.Timeout = config.Duration(opts.timeout)
	}
	if set["save-intermediary"] {
		cfg.Output.SaveIntermediaryResults = opts.saveInter
	}
	if set["intermediary-dir"] {
		cfg.Output.IntermediaryDir = opts.interDir
	}
	if set["legacy-extension-match"] {
		cfg.Output.LegacyExtensionMatch = opts.legacyExt
	}
	if set["verbose"] {
		cfg.Output.Verbose = opts.verbose
	}
}

func missingRequired(opts *options) []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"-input", opts.input},
		{"-output", opts.output},
		{"-left-surface", opts.leftSurface},
		{"-right-surface", opts.rightSurface},
		{"-atlas", opts.atlas},
	}
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

func main() {
	fs := flag.NewFlagSet("ciftiroi", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Finds cifti surface clusters and writes the overlapping ROIs to a CSV file.")
		fmt.Fprintln(fs.Output())
		fs.PrintDefaults()
	}

	opts, set, err := parseFlags(fs, os.Args[1:], config.DefaultConfig())
	if err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if opts.writeConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", opts.writeConfig)
		return
	}

	if missing := missingRequired(opts); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "missing required arguments: %s\n\n", strings.Join(missing, ", "))
		fs.Usage()
		os.Exit(2)
	}

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		cfg, err = config.LoadConfig(opts.configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	applyFlags(cfg, opts, set)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.NewLogger(os.Stderr, cfg.Output.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := workbench.NewWorkspace(cfg.Workbench.TempDir)
	if err != nil {
		log.Fatalf("Failed to prepare workspace: %v", err)
	}

	client := &workbench.Client{
		Binary:        cfg.Workbench.Command,
		Runner:        &workbench.ExecRunner{Timeout: time.Duration(cfg.Workbench.Timeout), Logger: logger},
		Workspace:     ws,
		ClusterColumn: cfg.Clustering.Column,
		AtlasMap:      cfg.Atlas.MapIndex,
		Logger:        logger,
	}

	params := &pipeline.Params{
		InputFile:               opts.input,
		AtlasFile:               opts.atlas,
		OutputFile:              opts.output,
		LeftSurface:             opts.leftSurface,
		RightSurface:            opts.rightSurface,
		Threshold:               cfg.Clustering.Threshold,
		Distance:                cfg.Clustering.Distance,
		LegacyExtensionMatch:    cfg.Output.LegacyExtensionMatch,
		SaveIntermediaryResults: cfg.Output.SaveIntermediaryResults,
		IntermediaryDir:         cfg.Output.IntermediaryDir,
	}

	startTime := time.Now()
	result, err := pipeline.NewPipeline(params, client, client, logger).Process(ctx)
	if cerr := ws.Close(); cerr != nil {
		logger.Warn("failed to remove workspace", "dir", ws.Dir(), "error", cerr)
	}
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}

	if !result.Written {
		fmt.Println("No cluster overlaps an atlas region; no row was written.")
		return
	}
	fmt.Printf("Found %d ROIs in %.2f seconds: %s\n", len(result.ROIs), time.Since(startTime).Seconds(),
		strings.Join(result.ROIs, ", "))
	fmt.Printf("Results appended to: %s\n", result.OutputFile)
}
