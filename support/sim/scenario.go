package main

import (
	"os"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"

	"github.com/tokenvest/vesting-actors/actors/builtin"
)

// Step operations.
const (
	OpCreate    = "create"
	OpDeposit   = "deposit"
	OpClaim     = "claim"
	OpFundVault = "fund_vault"
)

// Scenario is a sequence of timed instructions against a fresh VM holding a single mint.
// Parties are named wallets, each with an associated token account holding an initial balance.
type Scenario struct {
	Name     string            `yaml:"name"`
	Program  string            `yaml:"program"`
	Decimals uint8             `yaml:"decimals"`
	Parties  map[string]uint64 `yaml:"parties"`
	Grants   []GrantSpec       `yaml:"grants"`
	Steps    []Step            `yaml:"steps"`
}

type GrantSpec struct {
	Name        string `yaml:"name"`
	Admin       string `yaml:"admin"`
	Beneficiary string `yaml:"beneficiary"`
	Seed        uint64 `yaml:"seed"`
	Total       uint64 `yaml:"total"`
	Start       int64  `yaml:"start"`
	Cliff       int64  `yaml:"cliff"`
	End         int64  `yaml:"end"`
}

type Step struct {
	At    int64  `yaml:"at"`
	Op    string `yaml:"op"`
	Grant string `yaml:"grant"`
	// Signs in place of the grant's admin or beneficiary, using its own token account.
	As string `yaml:"as"`
	// Units minted straight into the vault by fund_vault.
	Amount uint64 `yaml:"amount"`

	// Expected exit code name; empty means success.
	Expect   string            `yaml:"expect"`
	Balances map[string]uint64 `yaml:"balances"`
	Vault    *uint64           `yaml:"vault"`
	Released *uint64           `yaml:"released"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read scenario %s: %w", path, err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, xerrors.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, xerrors.Errorf("failed to parse scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ProgramID returns the program the scenario runs against.
func (sc *Scenario) ProgramID() (solana.PublicKey, error) {
	if sc.Program == "" {
		return builtin.VestingProgramID, nil
	}
	return solana.PublicKeyFromBase58(sc.Program)
}

// PartyNames returns the party names in a stable order.
func (sc *Scenario) PartyNames() []string {
	names := make([]string, 0, len(sc.Parties))
	for name := range sc.Parties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (sc *Scenario) grant(name string) (*GrantSpec, bool) {
	for i := range sc.Grants {
		if sc.Grants[i].Name == name {
			return &sc.Grants[i], true
		}
	}
	return nil, false
}

func (sc *Scenario) validate() error {
	if sc.Name == "" {
		return xerrors.Errorf("scenario has no name")
	}
	if _, err := sc.ProgramID(); err != nil {
		return xerrors.Errorf("invalid program id %q: %w", sc.Program, err)
	}
	party := func(name string) error {
		if _, ok := sc.Parties[name]; !ok {
			return xerrors.Errorf("unknown party %q", name)
		}
		return nil
	}

	seen := map[string]bool{}
	for _, g := range sc.Grants {
		if g.Name == "" || seen[g.Name] {
			return xerrors.Errorf("grant name %q is empty or repeated", g.Name)
		}
		seen[g.Name] = true
		if err := party(g.Admin); err != nil {
			return xerrors.Errorf("grant %s admin: %w", g.Name, err)
		}
		if err := party(g.Beneficiary); err != nil {
			return xerrors.Errorf("grant %s beneficiary: %w", g.Name, err)
		}
		// Schedules are checked by the program itself, but a millisecond timestamp is a typo here.
		if g.End-g.Start > builtin.MaxScheduleDuration {
			return xerrors.Errorf("grant %s runs for %d seconds, longer than %d", g.Name, g.End-g.Start, int64(builtin.MaxScheduleDuration))
		}
	}

	var prev int64
	for i, s := range sc.Steps {
		switch s.Op {
		case OpCreate, OpDeposit, OpClaim, OpFundVault:
		default:
			return xerrors.Errorf("step %d: unknown op %q", i, s.Op)
		}
		if !seen[s.Grant] {
			return xerrors.Errorf("step %d: unknown grant %q", i, s.Grant)
		}
		if s.As != "" {
			if err := party(s.As); err != nil {
				return xerrors.Errorf("step %d: %w", i, err)
			}
		}
		if _, ok := ParseCode(s.Expect); !ok {
			return xerrors.Errorf("step %d: unknown exit code %q", i, s.Expect)
		}
		for name := range s.Balances {
			if err := party(name); err != nil {
				return xerrors.Errorf("step %d balances: %w", i, err)
			}
		}
		if i > 0 && s.At < prev {
			return xerrors.Errorf("step %d at %d goes back in time from %d", i, s.At, prev)
		}
		prev = s.At
	}
	return nil
}

// Identity returns the deterministic wallet of a named party.
func Identity(name string) solana.PublicKey {
	sum := blake2b.Sum256([]byte("party:" + name))
	return solana.PublicKeyFromBytes(sum[:])
}

// MintOf returns the deterministic mint of a scenario.
func MintOf(sc *Scenario) solana.PublicKey {
	sum := blake2b.Sum256([]byte("mint:" + sc.Name))
	return solana.PublicKeyFromBytes(sum[:])
}
