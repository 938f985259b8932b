package vesting

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin"
)

// CreateVestingPayloadSize is the size of the CreateVesting payload following the opcode byte.
const CreateVestingPayloadSize = 41

// Positional account counts per instruction.
const (
	CreateVestingAccounts = 5
	DepositAccounts       = 6
	ClaimAccounts         = 6
)

// Instruction is one of *CreateVestingParams, *DepositParams or *ClaimParams.
type Instruction interface {
	Opcode() builtin.Opcode
	bin.BinaryMarshaler
}

type CreateVestingParams struct {
	Seed        uint64
	TotalAmount uint64
	StartTime   int64
	CliffTime   int64
	EndTime     int64
	Bump        uint8
}

func (p *CreateVestingParams) Opcode() builtin.Opcode { return builtin.MethodsVesting.CreateVesting }

func (p *CreateVestingParams) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	if err = encoder.Encode(p.Seed); err != nil {
		return err
	}
	if err = encoder.Encode(p.TotalAmount); err != nil {
		return err
	}
	if err = encoder.Encode(p.StartTime); err != nil {
		return err
	}
	if err = encoder.Encode(p.CliffTime); err != nil {
		return err
	}
	if err = encoder.Encode(p.EndTime); err != nil {
		return err
	}
	return encoder.Encode(p.Bump)
}

func (p *CreateVestingParams) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if err = decoder.Decode(&p.Seed); err != nil {
		return err
	}
	if err = decoder.Decode(&p.TotalAmount); err != nil {
		return err
	}
	if err = decoder.Decode(&p.StartTime); err != nil {
		return err
	}
	if err = decoder.Decode(&p.CliffTime); err != nil {
		return err
	}
	if err = decoder.Decode(&p.EndTime); err != nil {
		return err
	}
	return decoder.Decode(&p.Bump)
}

// ValidateSchedule checks the amount and the ordering of the schedule boundaries.
func (p *CreateVestingParams) ValidateSchedule() error {
	if p.TotalAmount == 0 {
		return xerrors.Errorf("total amount must be greater than 0: %w", ErrInvalidArgument)
	}
	if !(p.StartTime <= p.CliffTime && p.CliffTime <= p.EndTime && p.StartTime < p.EndTime) {
		return xerrors.Errorf("invalid time range start=%d cliff=%d end=%d, must satisfy start <= cliff <= end and start < end: %w",
			p.StartTime, p.CliffTime, p.EndTime, ErrInvalidArgument)
	}
	return nil
}

type DepositParams struct{}

func (p *DepositParams) Opcode() builtin.Opcode                   { return builtin.MethodsVesting.Deposit }
func (p *DepositParams) MarshalWithEncoder(_ *bin.Encoder) error { return nil }

type ClaimParams struct{}

func (p *ClaimParams) Opcode() builtin.Opcode                   { return builtin.MethodsVesting.Claim }
func (p *ClaimParams) MarshalWithEncoder(_ *bin.Encoder) error { return nil }

// DecodeInstruction parses raw instruction data into its variant.
// Bytes beyond a variant's payload are ignored.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, xerrors.Errorf("empty instruction data: %w", ErrInvalidOpcode)
	}
	payload := data[1:]
	switch builtin.Opcode(data[0]) {
	case builtin.MethodsVesting.CreateVesting:
		if len(payload) < CreateVestingPayloadSize {
			return nil, xerrors.Errorf("create vesting payload is %d bytes, need %d: %w",
				len(payload), CreateVestingPayloadSize, ErrInvalidArgument)
		}
		var params CreateVestingParams
		if err := params.UnmarshalWithDecoder(bin.NewBorshDecoder(payload[:CreateVestingPayloadSize])); err != nil {
			return nil, xerrors.Errorf("failed to decode create vesting payload: %v: %w", err, ErrInvalidArgument)
		}
		return &params, nil
	case builtin.MethodsVesting.Deposit:
		return &DepositParams{}, nil
	case builtin.MethodsVesting.Claim:
		return &ClaimParams{}, nil
	default:
		return nil, xerrors.Errorf("unknown opcode %d: %w", data[0], ErrInvalidOpcode)
	}
}

// EncodeInstruction produces instruction data: the opcode byte followed by the variant's payload.
func EncodeInstruction(ix Instruction) ([]byte, error) {
	buf := bytes.NewBuffer([]byte{byte(ix.Opcode())})
	if err := ix.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, xerrors.Errorf("failed to encode instruction %T: %w", ix, err)
	}
	return buf.Bytes(), nil
}

//
// Address derivation and client-side instruction builders
//

// GrantSeeds returns the seeds, bump included, that reproduce a grant address.
func GrantSeeds(beneficiary, mint solana.PublicKey, seed uint64, bump uint8) [][]byte {
	return append(grantSeedsNoBump(beneficiary, mint, seed), []byte{bump})
}

func grantSeedsNoBump(beneficiary, mint solana.PublicKey, seed uint64) [][]byte {
	seedLE := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedLE, seed)
	return [][]byte{GrantSeedPrefix, beneficiary[:], mint[:], seedLE}
}

// FindGrantAddress searches for the canonical grant address and bump for a beneficiary, mint and seed.
func FindGrantAddress(programID, beneficiary, mint solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(grantSeedsNoBump(beneficiary, mint, seed), programID)
}

// FindVaultAddress returns the vault of a grant: the associated token account of the grant address for the mint.
func FindVaultAddress(grant, mint solana.PublicKey) (solana.PublicKey, error) {
	vault, _, err := solana.FindAssociatedTokenAddress(grant, mint)
	return vault, err
}

func NewCreateVestingInstruction(programID, admin, beneficiary, mint, grant solana.PublicKey, params *CreateVestingParams) (solana.Instruction, error) {
	data, err := EncodeInstruction(params)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(beneficiary),
		solana.Meta(mint),
		solana.Meta(grant).WRITE(),
		solana.Meta(builtin.SystemProgramID),
	}, data), nil
}

func NewDepositInstruction(programID, admin, mint, grant, vault, adminTokenAccount solana.PublicKey) (solana.Instruction, error) {
	data, err := EncodeInstruction(&DepositParams{})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(admin).WRITE().SIGNER(),
		solana.Meta(mint),
		solana.Meta(grant),
		solana.Meta(vault).WRITE(),
		solana.Meta(adminTokenAccount).WRITE(),
		solana.Meta(builtin.TokenProgramID),
	}, data), nil
}

func NewClaimInstruction(programID, beneficiary, mint, grant, vault, beneficiaryTokenAccount solana.PublicKey) (solana.Instruction, error) {
	data, err := EncodeInstruction(&ClaimParams{})
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		solana.Meta(beneficiary).WRITE().SIGNER(),
		solana.Meta(mint),
		solana.Meta(grant).WRITE(),
		solana.Meta(vault).WRITE(),
		solana.Meta(beneficiaryTokenAccount).WRITE(),
		solana.Meta(builtin.TokenProgramID),
	}, data), nil
}
