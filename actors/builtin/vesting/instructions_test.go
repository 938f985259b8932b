package vesting_test

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
	tutil "github.com/tokenvest/vesting-actors/support/testing"
)

func TestEncodeInstruction(t *testing.T) {
	params := &vesting.CreateVestingParams{
		Seed:        7,
		TotalAmount: 1000,
		StartTime:   -1,
		CliffTime:   100,
		EndTime:     1000,
		Bump:        253,
	}
	data, err := vesting.EncodeInstruction(params)
	require.NoError(t, err)
	require.Len(t, data, 1+vesting.CreateVestingPayloadSize)

	assert.Equal(t, byte(builtin.MethodsVesting.CreateVesting), data[0])
	assert.Equal(t, uint64(7), binary.LittleEndian.Uint64(data[1:]))
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[9:]))
	assert.Equal(t, uint64(0xffffffffffffffff), binary.LittleEndian.Uint64(data[17:]))
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(data[25:]))
	assert.Equal(t, uint64(1000), binary.LittleEndian.Uint64(data[33:]))
	assert.Equal(t, byte(253), data[41])

	decoded, err := vesting.DecodeInstruction(data)
	require.NoError(t, err)
	assert.Equal(t, params, decoded)

	data, err = vesting.EncodeInstruction(&vesting.DepositParams{})
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, data)

	data, err = vesting.EncodeInstruction(&vesting.ClaimParams{})
	require.NoError(t, err)
	assert.Equal(t, []byte{2}, data)
}

func TestDecodeInstruction(t *testing.T) {
	t.Run("trailing bytes are ignored", func(t *testing.T) {
		data, err := vesting.EncodeInstruction(&vesting.CreateVestingParams{Seed: 1, TotalAmount: 2, EndTime: 3, Bump: 4})
		require.NoError(t, err)
		ix, err := vesting.DecodeInstruction(append(data, 0xaa, 0xbb))
		require.NoError(t, err)
		assert.Equal(t, &vesting.CreateVestingParams{Seed: 1, TotalAmount: 2, EndTime: 3, Bump: 4}, ix)

		ix, err = vesting.DecodeInstruction([]byte{2, 9, 9})
		require.NoError(t, err)
		assert.IsType(t, &vesting.ClaimParams{}, ix)

		ix, err = vesting.DecodeInstruction([]byte{1})
		require.NoError(t, err)
		assert.IsType(t, &vesting.DepositParams{}, ix)
	})

	t.Run("empty data", func(t *testing.T) {
		_, err := vesting.DecodeInstruction(nil)
		assert.True(t, xerrors.Is(err, vesting.ErrInvalidOpcode))
	})

	t.Run("unknown opcode", func(t *testing.T) {
		for _, op := range []byte{3, 0x7f, 0xff} {
			_, err := vesting.DecodeInstruction([]byte{op})
			assert.True(t, xerrors.Is(err, vesting.ErrInvalidOpcode), "opcode %d", op)
		}
	})

	t.Run("short create payload", func(t *testing.T) {
		for _, n := range []int{0, 1, 40} {
			_, err := vesting.DecodeInstruction(append([]byte{0}, make([]byte, n)...))
			assert.True(t, xerrors.Is(err, vesting.ErrInvalidArgument), "payload of %d bytes", n)
		}
	})
}

func TestAddresses(t *testing.T) {
	beneficiary, mint := tutil.NewPubKey("beneficiary"), tutil.NewPubKey("mint")

	grant, bump, err := vesting.FindGrantAddress(builtin.VestingProgramID, beneficiary, mint, 7)
	require.NoError(t, err)
	derived, err := solana.CreateProgramAddress(vesting.GrantSeeds(beneficiary, mint, 7, bump), builtin.VestingProgramID)
	require.NoError(t, err)
	assert.Equal(t, grant, derived)

	seed := make([]byte, 8)
	binary.LittleEndian.PutUint64(seed, 7)
	expected, expectedBump := tutil.NewProgramAddress(t, builtin.VestingProgramID, []byte("vesting"), beneficiary[:], mint[:], seed)
	assert.Equal(t, expected, grant)
	assert.Equal(t, expectedBump, bump)

	other, _, err := vesting.FindGrantAddress(builtin.VestingProgramID, beneficiary, mint, 8)
	require.NoError(t, err)
	assert.NotEqual(t, grant, other)

	vault, err := vesting.FindVaultAddress(grant, mint)
	require.NoError(t, err)
	assert.Equal(t, tutil.NewTokenAddress(t, grant, mint), vault)
}

func TestInstructionBuilders(t *testing.T) {
	keys := tutil.NewPubKeys("key", 6)
	admin, beneficiary, mint, grant, vault, tokens := keys[0], keys[1], keys[2], keys[3], keys[4], keys[5]

	t.Run("create vesting", func(t *testing.T) {
		ix, err := vesting.NewCreateVestingInstruction(builtin.VestingProgramID, admin, beneficiary, mint, grant,
			&vesting.CreateVestingParams{TotalAmount: 1, EndTime: 1})
		require.NoError(t, err)
		assert.Equal(t, builtin.VestingProgramID, ix.ProgramID())
		assertMetas(t, ix.Accounts(),
			meta{admin, true, true},
			meta{beneficiary, false, false},
			meta{mint, false, false},
			meta{grant, false, true},
			meta{builtin.SystemProgramID, false, false},
		)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Len(t, data, 1+vesting.CreateVestingPayloadSize)
	})

	t.Run("deposit", func(t *testing.T) {
		ix, err := vesting.NewDepositInstruction(builtin.VestingProgramID, admin, mint, grant, vault, tokens)
		require.NoError(t, err)
		assertMetas(t, ix.Accounts(),
			meta{admin, true, true},
			meta{mint, false, false},
			meta{grant, false, false},
			meta{vault, false, true},
			meta{tokens, false, true},
			meta{builtin.TokenProgramID, false, false},
		)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, data)
	})

	t.Run("claim", func(t *testing.T) {
		ix, err := vesting.NewClaimInstruction(builtin.VestingProgramID, beneficiary, mint, grant, vault, tokens)
		require.NoError(t, err)
		assertMetas(t, ix.Accounts(),
			meta{beneficiary, true, true},
			meta{mint, false, false},
			meta{grant, false, true},
			meta{vault, false, true},
			meta{tokens, false, true},
			meta{builtin.TokenProgramID, false, false},
		)
		data, err := ix.Data()
		require.NoError(t, err)
		assert.Equal(t, []byte{2}, data)
	})
}

type meta struct {
	key              solana.PublicKey
	signer, writable bool
}

func assertMetas(t *testing.T, actual []*solana.AccountMeta, expected ...meta) {
	require.Len(t, actual, len(expected))
	for i, e := range expected {
		assert.Equal(t, e.key, actual[i].PublicKey, "account %d", i)
		assert.Equal(t, e.signer, actual[i].IsSigner, "account %d signer", i)
		assert.Equal(t, e.writable, actual[i].IsWritable, "account %d writable", i)
	}
}
