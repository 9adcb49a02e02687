package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/model"
	"github.com/cellis212/insurance-manager-sub000/internal/rng"
	"github.com/cellis212/insurance-manager-sub000/internal/turn"
)

// RunFile is the JSON input of `turnctl run`.
type RunFile struct {
	Turn         int                   `json:"turn"`
	Seed         uint64                `json:"seed"`          // used as-is when non-zero
	SemesterSeed uint64                `json:"semester_seed"` // otherwise the turn seed derives from this
	Phase        model.EconomicPhase   `json:"phase"`
	Companies    []*model.CompanyState `json:"companies"`
	Decisions    []model.Decision      `json:"decisions"`
}

// newRootCmd creates the root command.
func newRootCmd() *cobra.Command {
	var bundlePath string

	root := &cobra.Command{
		Use:          "turnctl",
		Short:        "Insurance simulation turn tooling",
		Long:         "turnctl validates and dumps parameter bundles and resolves single turns from JSON files.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&bundlePath, "bundle", "", "parameter bundle (YAML); built-in defaults if empty")

	load := func() (*config.Bundle, error) {
		return config.LoadOrDefault(bundlePath)
	}

	root.AddCommand(
		newValidateCmd(load),
		newDumpConfigCmd(load),
		newRunCmd(load),
		newSeedCmd(),
	)
	return root
}

type bundleLoader func() (*config.Bundle, error)

// newValidateCmd creates the validate command.
func newValidateCmd(load bundleLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate a parameter bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load()
			if err != nil {
				return err
			}
			if err := b.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bundle ok: schema v%d, %d states, %d lines, %d tiers, %d phases\n",
				b.SchemaVersion, len(b.States), len(b.Lines), len(b.Tiers), len(b.Economy.Phases))
			return nil
		},
	}
}

// newDumpConfigCmd creates the dump-config command.
func newDumpConfigCmd(load bundleLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-config",
		Short: "Print the effective parameter bundle as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load()
			if err != nil {
				return err
			}
			return config.WriteYAML(cmd.OutOrStdout(), b)
		},
	}
}

// newRunCmd creates the run command.
func newRunCmd(load bundleLoader) *cobra.Command {
	var (
		parallelism int
		budget      time.Duration
		verbose     bool
	)
	cmd := &cobra.Command{
		Use:   "run INPUT.json",
		Short: "Resolve one turn offline and print the output as JSON",
		Long: `Resolve one turn from a JSON file of companies and decisions.
Nothing is persisted. Use "-" to read the input from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := load()
			if err != nil {
				return err
			}
			in, err := readRunFile(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			engine := turn.NewEngine(b,
				turn.WithParallelism(parallelism),
				turn.WithBudget(budget),
				turn.WithLogger(logger),
			)
			out, err := engine.Run(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&parallelism, "parallelism", 0, "goroutines per stage (0 = GOMAXPROCS)")
	cmd.Flags().DurationVar(&budget, "budget", 15*time.Minute, "wall-clock budget for the turn")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log engine progress to stderr")
	return cmd
}

// newSeedCmd creates the seed command.
func newSeedCmd() *cobra.Command {
	var semester uint64
	var n int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Print the seed a turn resolves with",
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("--turn must be at least 1")
			}
			fmt.Fprintln(cmd.OutOrStdout(), rng.TurnSeed(semester, n))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&semester, "semester", 1, "semester seed")
	cmd.Flags().IntVar(&n, "turn", 1, "turn number")
	return cmd
}

func readRunFile(stdin io.Reader, path string) (turn.Input, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return turn.Input{}, err
		}
		defer f.Close()
		r = f
	}

	var rf RunFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rf); err != nil {
		return turn.Input{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if rf.Turn < 1 {
		return turn.Input{}, fmt.Errorf("%s: turn must be at least 1", path)
	}

	seed := rf.Seed
	if seed == 0 {
		seed = rng.TurnSeed(rf.SemesterSeed, rf.Turn)
	}
	in := turn.Input{
		Turn:      rf.Turn,
		Seed:      seed,
		Phase:     rf.Phase,
		Companies: rf.Companies,
		Decisions: make(map[string]model.Decision, len(rf.Decisions)),
	}
	for _, d := range rf.Decisions {
		if _, dup := in.Decisions[d.CompanyID]; dup {
			return turn.Input{}, fmt.Errorf("%s: two decisions for company %s", path, d.CompanyID)
		}
		if d.Turn == 0 {
			d.Turn = rf.Turn
		}
		in.Decisions[d.CompanyID] = d
	}
	return in, nil
}
