package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/gagliardetto/solana-go"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
	"github.com/tokenvest/vesting-actors/actors/serde"
)

var runCmd = &cli.Command{
	Name:        "run",
	Usage:       "run <scenario.yaml>...",
	Description: "execute vesting scenarios against an in-memory host",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "parallel", Value: 1, Usage: "number of scenarios run concurrently"},
		&cli.StringFlag{Name: "program-log-level", Value: "info", Usage: "level of program log lines (debug, info, warn, error)"},
		&cli.BoolFlag{Name: "stats", Usage: "report block store traffic per scenario"},
	},
	Action: runScenariosCmd,
}

var deriveCmd = &cli.Command{
	Name:        "derive",
	Description: "print the grant address, bump and vault for a beneficiary, mint and seed",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "program", Usage: "program id (base58), defaults to the builtin vesting program"},
		&cli.StringFlag{Name: "beneficiary", Required: true},
		&cli.StringFlag{Name: "mint", Required: true},
		&cli.Uint64Flag{Name: "seed"},
	},
	Action: runDeriveCmd,
}

var decodeCmd = &cli.Command{
	Name:        "decode",
	Description: "decode a hex encoded grant record",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "at", Usage: "unix time at which to report the claimable amount"},
	},
	Action: runDecodeCmd,
}

func main() {
	app := &cli.App{
		Name:        "vesting-sim",
		Usage:       "Simulate and inspect token vesting grants",
		Description: "Simulate and inspect token vesting grants",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "level of host logs"},
		},
		Before: func(cctx *cli.Context) error {
			for _, name := range []string{"vm", "vesting-sim"} {
				if err := logging.SetLogLevel(name, cctx.String("log-level")); err != nil {
					return err
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			runCmd,
			deriveCmd,
			decodeCmd,
		},
	}
	sort.Sort(cli.CommandsByName(app.Commands))
	for _, c := range app.Commands {
		sort.Sort(cli.FlagsByName(c.Flags))
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runScenariosCmd(cctx *cli.Context) error {
	paths := cctx.Args().Slice()
	if len(paths) == 0 {
		return xerrors.Errorf("no scenario files given")
	}
	level, err := parseProgramLogLevel(cctx.String("program-log-level"))
	if err != nil {
		return err
	}

	scenarios := make([]*Scenario, len(paths))
	for i, path := range paths {
		if scenarios[i], err = LoadScenario(path); err != nil {
			return err
		}
	}
	defer builtin.ResetActorsLogLevel()
	if err := setProgramLogLevel(level, scenarios); err != nil {
		return err
	}

	reports, err := runAll(cctx.Context, scenarios, cctx.Int("parallel"))
	for _, report := range reports {
		if report == nil {
			continue
		}
		printReport(cctx, report, cctx.Bool("stats"))
	}
	return err
}

// Overrides the log level of the program each scenario runs against.
func setProgramLogLevel(level rtt.LogLevel, scenarios []*Scenario) error {
	for _, sc := range scenarios {
		programID, err := sc.ProgramID()
		if err != nil {
			return xerrors.Errorf("scenario %s: invalid program id %q: %w", sc.Name, sc.Program, err)
		}
		builtin.SetActorsLogLevel(level, vesting.Actor{ID: programID})
	}
	return nil
}

// Runs scenarios with at most parallel running at once. Reports are returned in input order, nil for
// scenarios that did not start.
func runAll(ctx context.Context, scenarios []*Scenario, parallel int) ([]*Report, error) {
	if parallel < 1 {
		parallel = 1
	}
	reports := make([]*Report, len(scenarios))
	sem := make(chan struct{}, parallel)
	g, ctx := errgroup.WithContext(ctx)
	for i, sc := range scenarios {
		i, sc := i, sc
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return reports, g.Wait()
		}
		g.Go(func() error {
			defer func() { <-sem }()
			report, err := Run(ctx, sc)
			reports[i] = report
			return err
		})
	}
	return reports, g.Wait()
}

func printReport(cctx *cli.Context, report *Report, stats bool) {
	w := cctx.App.Writer
	fmt.Fprintf(w, "scenario %s\n", report.Scenario)
	for _, s := range report.Steps {
		fmt.Fprintf(w, "  %s\n", s)
		for _, line := range s.Logs {
			fmt.Fprintf(w, "    | %s\n", line)
		}
	}
	if stats {
		fmt.Fprintf(w, "  receipts=%d blocks=%d reads=%d (%d bytes) writes=%d (%d bytes)\n", report.Receipts,
			report.Stats.Blocks, report.Stats.Reads, report.Stats.ReadBytes, report.Stats.Writes, report.Stats.WriteBytes)
	}
}

func parseProgramLogLevel(s string) (rtt.LogLevel, error) {
	switch strings.ToLower(s) {
	case "debug":
		return rtt.DEBUG, nil
	case "info":
		return rtt.INFO, nil
	case "warn":
		return rtt.WARN, nil
	case "error":
		return rtt.ERROR, nil
	}
	return 0, xerrors.Errorf("unknown log level %q", s)
}

func runDeriveCmd(cctx *cli.Context) error {
	programID := builtin.VestingProgramID
	if p := cctx.String("program"); p != "" {
		var err error
		if programID, err = solana.PublicKeyFromBase58(p); err != nil {
			return xerrors.Errorf("invalid program id: %w", err)
		}
	}
	beneficiary, err := solana.PublicKeyFromBase58(cctx.String("beneficiary"))
	if err != nil {
		return xerrors.Errorf("invalid beneficiary: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(cctx.String("mint"))
	if err != nil {
		return xerrors.Errorf("invalid mint: %w", err)
	}

	grant, bump, err := vesting.FindGrantAddress(programID, beneficiary, mint, cctx.Uint64("seed"))
	if err != nil {
		return err
	}
	vault, err := vesting.FindVaultAddress(grant, mint)
	if err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "grant: %s\nbump: %d\nvault: %s\n", grant, bump, vault)
	return nil
}

func runDecodeCmd(cctx *cli.Context) error {
	b, err := hex.DecodeString(strings.TrimPrefix(cctx.Args().First(), "0x"))
	if err != nil {
		return err
	}
	var st vesting.State
	if err := serde.Deserialize(b, &st); err != nil {
		return err
	}

	w := cctx.App.Writer
	fmt.Fprintf(w, "admin: %s\nbeneficiary: %s\nmint: %s\n", st.Admin, st.Beneficiary, st.Mint)
	fmt.Fprintf(w, "total: %d\nreleased: %d\nlocked: %d\n", st.TotalAmount, st.ReleasedAmount, st.Locked())
	fmt.Fprintf(w, "start: %d\ncliff: %d\nend: %d\nseed: %d\nbump: %d\n", st.StartTime, st.CliffTime, st.EndTime, st.Seed, st.Bump)
	if cctx.IsSet("at") {
		at := cctx.Int64("at")
		fmt.Fprintf(w, "claimable at %d: %d\n", at, vesting.ClaimableAmount(&st, at))
	}
	return nil
}
