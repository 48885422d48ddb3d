package token

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/stablevault/internal/types"
)

func units(n int64) sdkmath.Int {
	return sdkmath.NewIntWithDecimal(n, 18)
}

func TestMintAndBurnWholeBalance(t *testing.T) {
	tk := New()
	require.NoError(t, tk.Mint("alice", units(100)))
	assert.True(t, units(100).Equal(tk.BalanceOf("alice")))
	assert.True(t, units(100).Equal(tk.TotalSupply()))

	require.NoError(t, tk.Burn("alice", units(100)))
	assert.True(t, tk.BalanceOf("alice").IsZero())
	assert.True(t, tk.TotalSupply().IsZero())
	assert.Empty(t, tk.Holders())
}

func TestChangeSupplyKeepsProportions(t *testing.T) {
	tk := New()
	require.NoError(t, tk.Mint("alice", units(300)))
	require.NoError(t, tk.Mint("bob", units(100)))

	require.NoError(t, tk.ChangeSupply(units(440)))

	assert.True(t, units(330).Equal(tk.BalanceOf("alice")), tk.BalanceOf("alice").String())
	assert.True(t, units(110).Equal(tk.BalanceOf("bob")), tk.BalanceOf("bob").String())
	assert.True(t, units(440).Equal(tk.TotalSupply()))
	assert.True(t, tk.Index().GT(Ray()))
}

func TestMintAfterRebaseUsesNewIndex(t *testing.T) {
	tk := New()
	require.NoError(t, tk.Mint("alice", units(100)))
	require.NoError(t, tk.ChangeSupply(units(200)))
	require.NoError(t, tk.Mint("bob", units(50)))

	assert.True(t, units(50).Equal(tk.BalanceOf("bob")))
	assert.True(t, units(200).Equal(tk.BalanceOf("alice")))
	assert.True(t, units(250).Equal(tk.TotalSupply()))
}

func TestBurnErrors(t *testing.T) {
	tk := New()
	require.NoError(t, tk.Mint("alice", units(10)))
	require.ErrorIs(t, tk.Burn("alice", units(11)), types.ErrInsufficientShares)
	require.ErrorIs(t, tk.Burn("alice", sdkmath.ZeroInt()), types.ErrInvalidAmount)
	require.ErrorIs(t, tk.Mint("alice", sdkmath.NewInt(-1)), types.ErrInvalidAmount)

	require.NoError(t, tk.Burn("alice", units(4)))
	assert.True(t, units(6).Equal(tk.BalanceOf("alice")))
	assert.True(t, units(6).Equal(tk.TotalSupply()))
}

func TestChangeSupplyWithoutHolders(t *testing.T) {
	tk := New()
	require.ErrorIs(t, tk.ChangeSupply(units(1)), ErrNoCredits)
	require.ErrorIs(t, tk.ChangeSupply(sdkmath.ZeroInt()), types.ErrInvalidAmount)
}

func TestDeflation(t *testing.T) {
	tk := New()
	require.NoError(t, tk.Mint("alice", units(100)))
	require.NoError(t, tk.ChangeSupply(units(90)))
	assert.True(t, units(90).Equal(tk.BalanceOf("alice")))
	assert.True(t, tk.Index().LT(Ray()))
}
