package vm

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// AccountRecord is a data account owned by a program.
type AccountRecord struct {
	Owner solana.PublicKey
	Data  []byte
}

func (r *AccountRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.Encode(r.Owner); err != nil {
		return err
	}
	return encoder.Encode(r.Data)
}

func (r *AccountRecord) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := decoder.Decode(&r.Owner); err != nil {
		return err
	}
	return decoder.Decode(&r.Data)
}

// TokenAccountRecord identifies a token holding account. Its balance lives in the balance table.
type TokenAccountRecord struct {
	Mint  solana.PublicKey
	Owner solana.PublicKey
}

func (r *TokenAccountRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.Encode(r.Mint); err != nil {
		return err
	}
	return encoder.Encode(r.Owner)
}

func (r *TokenAccountRecord) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := decoder.Decode(&r.Mint); err != nil {
		return err
	}
	return decoder.Decode(&r.Owner)
}

type MintRecord struct {
	Decimals uint8
	Supply   uint64
}

func (r *MintRecord) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.Encode(r.Decimals); err != nil {
		return err
	}
	return encoder.Encode(r.Supply)
}

func (r *MintRecord) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := decoder.Decode(&r.Decimals); err != nil {
		return err
	}
	return decoder.Decode(&r.Supply)
}

// NoOpcode marks a receipt for an instruction that carried no data.
const NoOpcode = 0xff

// Receipt records the outcome of one applied instruction.
type Receipt struct {
	Program  solana.PublicKey
	Opcode   uint8
	Time     int64
	ExitCode int64
}

func (r *Receipt) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.Encode(r.Program); err != nil {
		return err
	}
	if err := encoder.Encode(r.Opcode); err != nil {
		return err
	}
	if err := encoder.Encode(r.Time); err != nil {
		return err
	}
	return encoder.Encode(r.ExitCode)
}

func (r *Receipt) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	if err := decoder.Decode(&r.Program); err != nil {
		return err
	}
	if err := decoder.Decode(&r.Opcode); err != nil {
		return err
	}
	if err := decoder.Decode(&r.Time); err != nil {
		return err
	}
	return decoder.Decode(&r.ExitCode)
}
