package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/rzzdr/economic-scenario-generator/config"
	"github.com/rzzdr/economic-scenario-generator/internal/esg"
	"github.com/rzzdr/economic-scenario-generator/pkg/models"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/errors"
)

type simulateOptions struct {
	configPath string
	input      string
	output     string
	paths      int
	years      int
	seed       uint64
	workers    int
	summary    bool
	indent     bool
}

func newSimulateCommand() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate one scenario batch and write the JSON response",
		Long: "Reads a scenario request (s0, a, mu, sigma, corrmatrix and optional N, T, seed)\n" +
			"from --input or stdin, runs it in-process and writes the response.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runSimulate(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to configuration file for simulation defaults")
	f.StringVarP(&opts.input, "input", "i", "-", "Request file, - for stdin")
	f.StringVarP(&opts.output, "output", "o", "-", "Response file, - for stdout")
	f.IntVar(&opts.paths, "paths", 0, "Number of paths, overrides N in the request")
	f.IntVar(&opts.years, "years", 0, "Horizon in years, overrides T in the request")
	f.Uint64Var(&opts.seed, "seed", 0, "Random seed, overrides the request seed")
	f.IntVar(&opts.workers, "workers", -1, "Worker count, 0 for one per CPU (default from config)")
	f.BoolVar(&opts.summary, "summary", false, "Include terminal statistics")
	f.BoolVar(&opts.indent, "indent", false, "Indent the JSON output")

	return cmd
}

func runSimulate(ctx context.Context, cmd *cobra.Command, opts *simulateOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	req, err := readRequest(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("paths") {
		req.Paths = &opts.paths
	}
	if flags.Changed("years") {
		req.Years = &opts.years
	}
	if flags.Changed("seed") {
		req.Seed = &opts.seed
	}
	if opts.summary {
		req.Summary = true
	}

	svcCfg := cfg.ServiceConfig()
	if flags.Changed("workers") {
		svcCfg.Workers = opts.workers
	}
	// The command line has no request size limits
	svcCfg.MaxPaths, svcCfg.MaxYears = 0, 0

	resp, err := esg.NewService(svcCfg).Generate(ctx, req)
	if err != nil {
		for _, d := range errors.DetailsOf(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", d)
		}
		return err
	}

	return writeResponse(cmd.OutOrStdout(), opts.output, resp, opts.indent)
}

func readRequest(stdin io.Reader, path string) (*models.ScenarioRequest, error) {
	r := stdin
	if path != "-" && path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req models.ScenarioRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

func writeResponse(stdout io.Writer, path string, resp *models.ScenarioResponse, indent bool) error {
	w := stdout
	if path != "-" && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(resp)
}
