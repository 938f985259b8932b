package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/gagliardetto/solana-go"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
	"github.com/tokenvest/vesting-actors/actors/util/adt"
	"github.com/tokenvest/vesting-actors/support/ipld"
	"github.com/tokenvest/vesting-actors/support/vm"
)

var log = logging.Logger("vesting-sim")

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Index int
	At    int64
	Op    string
	Grant string
	Code  exitcode.ExitCode
	// Amount claimable just before a claim step.
	Claimable uint64
	Logs      []string
}

func (r StepResult) String() string {
	s := fmt.Sprintf("t=%d %s %s: %s", r.At, r.Op, r.Grant, CodeName(r.Code))
	if r.Op == OpClaim {
		s += fmt.Sprintf(" (claimable %d)", r.Claimable)
	}
	return s
}

// StoreStats counts block store traffic over a scenario run.
type StoreStats struct {
	Reads, Writes         uint64
	ReadBytes, WriteBytes uint64
	Blocks                int
}

type Report struct {
	Scenario string
	Steps    []StepResult
	Receipts int
	Stats    StoreStats
}

type grantKeys struct {
	spec  *GrantSpec
	grant solana.PublicKey
	vault solana.PublicKey
	bump  uint8
}

type runner struct {
	sc        *Scenario
	v         *vm.VM
	programID solana.PublicKey
	mint      solana.PublicKey
	tokens    map[string]solana.PublicKey
	grants    map[string]*grantKeys
}

// Run executes a scenario against a fresh VM. It fails on the first step whose outcome differs from
// the scenario's expectations.
func Run(ctx context.Context, sc *Scenario) (*Report, error) {
	programID, err := sc.ProgramID()
	if err != nil {
		return nil, err
	}
	bs := ipld.NewBlockStoreInMemory()
	metrics := ipld.NewMetricsBlockStore(bs)
	v, err := vm.NewVM(ctx, adt.WrapBlockStore(ctx, metrics), vesting.Actor{ID: programID})
	if err != nil {
		return nil, err
	}

	r := &runner{
		sc:        sc,
		v:         v,
		programID: programID,
		mint:      MintOf(sc),
		tokens:    map[string]solana.PublicKey{},
		grants:    map[string]*grantKeys{},
	}
	if err := r.setup(); err != nil {
		return nil, xerrors.Errorf("scenario %s setup: %w", sc.Name, err)
	}

	report := &Report{Scenario: sc.Name}
	for i := range sc.Steps {
		result, err := r.step(i, &sc.Steps[i])
		if result != nil {
			report.Steps = append(report.Steps, *result)
		}
		if err != nil {
			return report, xerrors.Errorf("scenario %s step %d: %w", sc.Name, i, err)
		}
	}

	receipts, err := v.Receipts()
	if err != nil {
		return report, err
	}
	report.Receipts = len(receipts)
	report.Stats = StoreStats{
		Reads:      metrics.ReadCount(),
		Writes:     metrics.WriteCount(),
		ReadBytes:  metrics.ReadSize(),
		WriteBytes: metrics.WriteSize(),
		Blocks:     bs.Len(),
	}
	return report, nil
}

func (r *runner) setup() error {
	if err := r.v.CreateMint(r.mint, r.sc.Decimals); err != nil {
		return err
	}
	for _, name := range r.sc.PartyNames() {
		key, err := r.v.CreateAssociatedTokenAccount(Identity(name), r.mint)
		if err != nil {
			return xerrors.Errorf("party %s: %w", name, err)
		}
		if balance := r.sc.Parties[name]; balance > 0 {
			if err := r.v.MintTo(key, balance); err != nil {
				return xerrors.Errorf("party %s: %w", name, err)
			}
		}
		r.tokens[name] = key
	}
	for i := range r.sc.Grants {
		spec := &r.sc.Grants[i]
		grant, bump, err := vesting.FindGrantAddress(r.programID, Identity(spec.Beneficiary), r.mint, spec.Seed)
		if err != nil {
			return xerrors.Errorf("grant %s: %w", spec.Name, err)
		}
		vault, err := r.v.CreateAssociatedTokenAccount(grant, r.mint)
		if err != nil {
			return xerrors.Errorf("vault of grant %s: %w", spec.Name, err)
		}
		r.grants[spec.Name] = &grantKeys{spec: spec, grant: grant, vault: vault, bump: bump}
	}
	return nil
}

func (r *runner) step(i int, s *Step) (*StepResult, error) {
	g := r.grants[s.Grant]
	r.v.SetTime(s.At)
	result := &StepResult{Index: i, At: s.At, Op: s.Op, Grant: s.Grant}

	if s.Op == OpFundVault {
		if err := r.v.MintTo(g.vault, s.Amount); err != nil {
			return result, err
		}
		return result, r.check(s, g)
	}

	if s.Op == OpClaim {
		var st vesting.State
		if err := r.v.GetState(g.grant, &st); err == nil {
			result.Claimable = vesting.ClaimableAmount(&st, s.At)
		}
	}

	ix, err := r.instruction(s, g)
	if err != nil {
		return result, err
	}
	applied := r.v.ApplyInstruction(ix)
	result.Code, result.Logs = applied.Code, applied.Logs
	log.Debugw("applied step", "scenario", r.sc.Name, "step", i, "op", s.Op, "code", applied.Code, "reason", applied.Message)

	expected, _ := ParseCode(s.Expect)
	if applied.Code != expected {
		return result, xerrors.Errorf("%s %s at %d exited %s, expected %s: %s",
			s.Op, s.Grant, s.At, CodeName(applied.Code), CodeName(expected), applied.Message)
	}
	return result, r.check(s, g)
}

func (r *runner) instruction(s *Step, g *grantKeys) (solana.Instruction, error) {
	spec := g.spec
	switch s.Op {
	case OpCreate:
		return vesting.NewCreateVestingInstruction(r.programID, r.signer(s, spec.Admin), Identity(spec.Beneficiary), r.mint, g.grant,
			&vesting.CreateVestingParams{
				Seed:        spec.Seed,
				TotalAmount: spec.Total,
				StartTime:   spec.Start,
				CliffTime:   spec.Cliff,
				EndTime:     spec.End,
				Bump:        g.bump,
			})
	case OpDeposit:
		return vesting.NewDepositInstruction(r.programID, r.signer(s, spec.Admin), r.mint, g.grant, g.vault, r.tokens[r.party(s, spec.Admin)])
	case OpClaim:
		return vesting.NewClaimInstruction(r.programID, r.signer(s, spec.Beneficiary), r.mint, g.grant, g.vault, r.tokens[r.party(s, spec.Beneficiary)])
	}
	return nil, xerrors.Errorf("unknown op %q", s.Op)
}

func (r *runner) party(s *Step, def string) string {
	if s.As != "" {
		return s.As
	}
	return def
}

func (r *runner) signer(s *Step, def string) solana.PublicKey {
	return Identity(r.party(s, def))
}

func (r *runner) check(s *Step, g *grantKeys) error {
	for _, name := range sortedKeys(s.Balances) {
		balance, err := r.v.GetTokenBalance(r.tokens[name])
		if err != nil {
			return err
		}
		if balance != s.Balances[name] {
			return xerrors.Errorf("balance of %s is %d, expected %d", name, balance, s.Balances[name])
		}
	}
	if s.Vault != nil {
		balance, err := r.v.GetTokenBalance(g.vault)
		if err != nil {
			return err
		}
		if balance != *s.Vault {
			return xerrors.Errorf("vault of %s holds %d, expected %d", s.Grant, balance, *s.Vault)
		}
	}
	if s.Released != nil {
		var st vesting.State
		if err := r.v.GetState(g.grant, &st); err != nil {
			return err
		}
		if st.ReleasedAmount != *s.Released {
			return xerrors.Errorf("grant %s released %d, expected %d", s.Grant, st.ReleasedAmount, *s.Released)
		}
		if _, msgs := vesting.CheckStateInvariants(&st, r.programID, g.grant); !msgs.IsEmpty() {
			return xerrors.Errorf("grant %s invariants broken: %v", s.Grant, msgs.Messages())
		}
	}
	return nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
