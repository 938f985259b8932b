package serde

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"golang.org/x/xerrors"
)

// Serializes a structure or value to its fixed little-endian layout.
func Serialize(o bin.BinaryMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := o.MarshalWithEncoder(bin.NewBorshEncoder(buf)); err != nil {
		return nil, xerrors.Errorf("failed to serialize %T: %w", o, err)
	}
	return buf.Bytes(), nil
}

// Deserializes a structure or value from its layout, requiring every byte to be consumed.
func Deserialize(data []byte, o bin.BinaryUnmarshaler) error {
	dec := bin.NewBorshDecoder(data)
	if err := o.UnmarshalWithDecoder(dec); err != nil {
		return xerrors.Errorf("failed to deserialize %T: %w", o, err)
	}
	if dec.Remaining() != 0 {
		return xerrors.Errorf("failed to deserialize %T: %d trailing bytes", o, dec.Remaining())
	}
	return nil
}
