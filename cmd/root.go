package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shadho-project/shadho/shadho"
)

var (
	// CLI flags for the search run
	specPath   string // search-space spec file (YAML)
	configPath string // optional driver config file (YAML)
	logLevel   string // log verbosity level
	seed       int64  // master seed for sampling
	timeout    time.Duration
	maxTasks   int    // capacity of the default compute class
	workers    int    // local worker pool size
	allocator  string // compute-class offer policy
	command    string // worker task command
	journal    string // trial journal path
	results    string // results export path
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "shadho",
	Short: "Distributed hyperparameter search harness",
}

// runCmd drives a search using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a hyperparameter search",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if specPath == "" {
			logrus.Fatalf("No search-space spec provided. Exiting.")
		}

		cfg := shadho.DefaultDriverConfig()
		if configPath != "" {
			cfg, err = shadho.LoadDriverConfig(configPath)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
		}

		// Flags override the config file
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = shadho.Duration(timeout)
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if cmd.Flags().Changed("max-tasks") {
			cfg.MaxTasks = maxTasks
		}
		if cmd.Flags().Changed("allocator") {
			cfg.Allocator = allocator
		}
		if cmd.Flags().Changed("command") {
			cfg.Command = command
		}
		if cmd.Flags().Changed("journal") {
			cfg.JournalFile = journal
		}
		if cmd.Flags().Changed("results") {
			cfg.ResultsFile = results
		}

		tree, err := shadho.LoadSpec(specPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		classes, err := shadho.DefaultComputeClasses(tree, cfg.MaxTasks)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		if cfg.Command == "" {
			logrus.Fatalf("No worker command configured (set --command or the config file).")
		}
		objective := shadho.CommandObjective(cfg.Command, cfg.ParamFile, cfg.ResultFile)
		dispatcher := shadho.NewLocalDispatcher(objective, workers)

		driver, err := shadho.NewDriver(cfg, classes, dispatcher)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		if _, err := driver.Run(); err != nil {
			logrus.Fatalf("search aborted: %v", err)
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&specPath, "spec", "", "Search-space spec file (YAML)")
	runCmd.Flags().StringVar(&configPath, "config", "", "Driver config file (YAML)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for sampling")
	runCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "Wall-clock budget for the run")
	runCmd.Flags().IntVar(&maxTasks, "max-tasks", 100, "Max concurrent trials for the default compute class (0 = unbounded)")
	runCmd.Flags().IntVar(&workers, "workers", 4, "Local worker pool size")
	runCmd.Flags().StringVar(&allocator, "allocator", "round-robin", "Compute-class offer policy (round-robin, weighted)")
	runCmd.Flags().StringVar(&command, "command", "", "Worker task command, run per trial")
	runCmd.Flags().StringVar(&journal, "journal", "", "Trial journal path (crash recovery)")
	runCmd.Flags().StringVar(&results, "results", "results.json", "Results export path")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
