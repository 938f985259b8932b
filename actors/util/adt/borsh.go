package adt

import (
	"bytes"
	"io"

	bin "github.com/gagliardetto/binary"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/serde"
)

// Values held in the HAMT and AMT nodes must be CBOR. Program state is borsh, so each value is
// framed as a single CBOR byte string holding its borsh encoding.

type borshMarshaler struct {
	v bin.BinaryMarshaler
}

func (m *borshMarshaler) MarshalCBOR(w io.Writer) error {
	data, err := serde.Serialize(m.v)
	if err != nil {
		return err
	}
	if err := cbg.WriteMajorTypeHeader(w, cbg.MajByteString, uint64(len(data))); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type borshUnmarshaler struct {
	v bin.BinaryUnmarshaler
}

func (u *borshUnmarshaler) UnmarshalCBOR(r io.Reader) error {
	data, err := readBorshFrame(r)
	if err != nil {
		return err
	}
	return serde.Deserialize(data, u.v)
}

func readBorshFrame(r io.Reader) ([]byte, error) {
	maj, extra, err := cbg.CborReadHeader(r)
	if err != nil {
		return nil, err
	}
	if maj != cbg.MajByteString {
		return nil, xerrors.Errorf("expected byte string, got major type %d", maj)
	}
	if extra > cbg.ByteArrayMaxLen {
		return nil, xerrors.Errorf("byte string too long: %d", extra)
	}
	data := make([]byte, extra)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decodes a raw CBOR-framed value, as handed out by HAMT and AMT iteration.
func decodeDeferred(raw []byte, out bin.BinaryUnmarshaler) error {
	return (&borshUnmarshaler{out}).UnmarshalCBOR(bytes.NewReader(raw))
}
