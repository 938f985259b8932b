package mock

import (
	"github.com/gagliardetto/solana-go"

	"github.com/tokenvest/vesting-actors/actors/runtime"
)

type ProgramAddressFunc func(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error)
type TokenAddressFunc func(wallet, mint solana.PublicKey) (solana.PublicKey, error)

// syscaller derives addresses with solana-go unless a test overrides a function.
type syscaller struct {
	ProgramAddress ProgramAddressFunc
	TokenAddress   TokenAddressFunc
}

// Interface methods
func (s *syscaller) CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	if s.ProgramAddress != nil {
		return s.ProgramAddress(seeds, programID)
	}
	return solana.CreateProgramAddress(seeds, programID)
}

func (s *syscaller) AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	if s.TokenAddress != nil {
		return s.TokenAddress(wallet, mint)
	}
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	return addr, err
}

var _ runtime.Syscalls = &syscaller{}
