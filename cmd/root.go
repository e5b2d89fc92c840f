package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/trace"
)

var (
	// CLI flags for the simulated network segment
	configPath        string        // Optional YAML scenario file
	seed              int64         // Seed for packet sizes, rate estimates and random forwarding
	logLevel          string        // Log verbosity level
	arrivalRate       float64       // Exponential rate parameter of each source
	maxPacketSize     int           // Packets are sized uniformly in [1, max]
	subBuffers        int           // Number of source/sub-buffer pairs
	subBufferCapacity int           // Capacity of each sub-buffer
	centralCapacity   int           // Capacity of the central buffer
	transmissionRate  float64       // Rate threshold separating fast and slow sources
	targetPackets     int           // Number of simulation steps before draining
	policy            string        // Forwarding policy name
	randomizeSources  bool          // Draw per-source rates and sub-buffer capacities
	stepDelay         time.Duration // Pause between steps
	progressEvery     int           // Log progress every N steps (0 disables)
	traceLevel        string        // Decision trace verbosity
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "netsim",
	Short: "Discrete-step simulator for bounded packet buffers and forwarding policies",
}

// runCmd executes the simulation using parameters from CLI flags and the optional scenario file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the buffer simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		startTime := time.Now()
		if err := runSimulation(ctx, cfg, os.Stdout); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Simulation complete in %v.", time.Since(startTime))
	},
}

// validateCmd checks a configuration without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file and flags, reporting every violation",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := resolveConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "configuration OK")
	},
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// resolveConfig starts from DefaultConfig, applies the scenario file if given,
// then every flag the user set explicitly.
func resolveConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		loaded, err := sim.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
		logrus.Debugf("Loaded scenario from %s", configPath)
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("arrival-rate") {
		cfg.ArrivalRate = arrivalRate
	}
	if flags.Changed("max-packet-size") {
		cfg.MaxPacketSize = maxPacketSize
	}
	if flags.Changed("sub-buffers") {
		cfg.SubBufferCount = subBuffers
	}
	if flags.Changed("sub-buffer-capacity") {
		cfg.SubBufferCapacity = subBufferCapacity
	}
	if flags.Changed("central-capacity") {
		cfg.CentralCapacity = centralCapacity
	}
	if flags.Changed("transmission-rate") {
		cfg.TransmissionRate = transmissionRate
	}
	if flags.Changed("packets") {
		cfg.TargetPacketCount = targetPackets
	}
	if flags.Changed("policy") {
		cfg.Policy = policy
	}
	if flags.Changed("randomize-sources") {
		cfg.RandomizeSources = randomizeSources
	}
	return cfg, nil
}

// runSimulation builds the engine, runs it to completion and writes the
// metrics report (and trace summary, if enabled) to out.
func runSimulation(ctx context.Context, cfg sim.Config, out io.Writer) error {
	metrics := sim.NewMetrics(cfg.TargetPacketCount)
	opts := []sim.Option{
		sim.WithObserver(metrics),
		sim.WithStepDelay(stepDelay),
	}
	if progressEvery > 0 {
		opts = append(opts, sim.WithObserver(newProgressLogger(cfg.TargetPacketCount, progressEvery)))
	}
	var st *trace.SimulationTrace
	if trace.TraceLevel(traceLevel) == trace.TraceLevelDecisions {
		st = trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelDecisions})
		opts = append(opts, sim.WithTrace(st))
	}

	engine, err := sim.NewEngine(cfg, opts...)
	if err != nil {
		return err
	}
	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("running simulation: %w", err)
	}

	metrics.Print(out)
	if st != nil {
		printTraceSummary(out, st)
	}
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerConfigFlags(cmd *cobra.Command) {
	defaults := sim.DefaultConfig()
	cmd.Flags().StringVar(&configPath, "config", "", "YAML scenario file (flags override its values)")
	cmd.Flags().Int64Var(&seed, "seed", defaults.Seed, "Seed for packet sizes, rate estimates and random forwarding")
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	cmd.Flags().Float64Var(&arrivalRate, "arrival-rate", defaults.ArrivalRate, "Exponential rate parameter of each source")
	cmd.Flags().IntVar(&maxPacketSize, "max-packet-size", defaults.MaxPacketSize, "Maximum packet size")
	cmd.Flags().IntVar(&subBuffers, "sub-buffers", defaults.SubBufferCount, "Number of sources and sub-buffers")
	cmd.Flags().IntVar(&subBufferCapacity, "sub-buffer-capacity", defaults.SubBufferCapacity, "Capacity of each sub-buffer")
	cmd.Flags().IntVar(&centralCapacity, "central-capacity", defaults.CentralCapacity, "Capacity of the central buffer")
	cmd.Flags().Float64Var(&transmissionRate, "transmission-rate", defaults.TransmissionRate, "Transmission rate of the central buffer")
	cmd.Flags().IntVar(&targetPackets, "packets", defaults.TargetPacketCount, "Number of packets per source (simulation steps)")
	cmd.Flags().StringVar(&policy, "policy", defaults.Policy, fmt.Sprintf("Forwarding policy %v", sim.ValidForwardingPolicyNames()))
	cmd.Flags().BoolVar(&randomizeSources, "randomize-sources", false, "Draw each source rate in [1, arrival-rate] and each sub-buffer capacity in [1, sub-buffer-capacity]")
}

// init sets up CLI flags and subcommands
func init() {
	registerConfigFlags(runCmd)
	runCmd.Flags().DurationVar(&stepDelay, "step-delay", 0, "Pause between simulation steps (e.g. 100ms)")
	runCmd.Flags().IntVar(&progressEvery, "progress-every", 0, "Log progress every N steps (0 disables)")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")

	registerConfigFlags(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
