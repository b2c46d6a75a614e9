package merkle

import (
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafDigest(b byte) ethCommon.Hash {
	return ethCrypto.Keccak256Hash([]byte{b})
}

func TestEmptyTreeRoot(t *testing.T) {
	tree, err := NewTree(nil)
	require.NoError(t, err)
	assert.Equal(t, EmptyTreeRoot(), tree.Root())
	assert.NotEqual(t, ethCommon.Hash{}, tree.Root())
}

func TestMembership(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 16, 33} {
		leaves := make([]ethCommon.Hash, n)
		for i := range leaves {
			leaves[i] = leafDigest(byte(i))
		}
		tree, err := NewTree(leaves)
		require.NoError(t, err)
		root := tree.Root()
		for i := 0; i < n; i++ {
			proof, err := tree.Proof(uint64(i))
			require.NoError(t, err)
			require.Len(t, proof, ProofLen)
			assert.True(t, CheckMembership(leaves[i], uint64(i), root, proof),
				"n=%d index=%d", n, i)
		}
	}
}

func TestMembershipFailures(t *testing.T) {
	leaves := []ethCommon.Hash{leafDigest(1), leafDigest(2), leafDigest(3)}
	tree, err := NewTree(leaves)
	require.NoError(t, err)
	root := tree.Root()
	proof, err := tree.Proof(1)
	require.NoError(t, err)

	// wrong leaf
	assert.False(t, CheckMembership(leafDigest(9), 1, root, proof))
	// wrong index
	assert.False(t, CheckMembership(leaves[1], 0, root, proof))
	// corrupted proof
	corrupted := append([]byte{}, proof...)
	corrupted[0] ^= 0xff
	assert.False(t, CheckMembership(leaves[1], 1, root, corrupted))
	// wrong root
	assert.False(t, CheckMembership(leaves[1], 1, leafDigest(8), proof))
}

func TestProofLengthStrict(t *testing.T) {
	leaves := []ethCommon.Hash{leafDigest(1)}
	tree, err := NewTree(leaves)
	require.NoError(t, err)
	proof, err := tree.Proof(0)
	require.NoError(t, err)

	// truncated and extended proofs must fail, not be repaired
	assert.False(t, CheckMembership(leaves[0], 0, tree.Root(), proof[:ProofLen-32]))
	assert.False(t, CheckMembership(leaves[0], 0, tree.Root(), append(proof, proof[:32]...)))
	assert.False(t, CheckMembership(leaves[0], 0, tree.Root(), nil))
}

func TestTooManyLeaves(t *testing.T) {
	leaves := make([]ethCommon.Hash, MaxLeaves+1)
	_, err := NewTree(leaves)
	require.Error(t, err)
}

func TestSingleLeafAgainstZeroLadder(t *testing.T) {
	// a single leaf hashes against the zero ladder all the way up
	leaf := leafDigest(7)
	tree, err := NewTree([]ethCommon.Hash{leaf})
	require.NoError(t, err)

	computed := leaf
	zero := ethCrypto.Keccak256Hash(make([]byte, 32))
	for i := 0; i < Depth; i++ {
		computed = ethCrypto.Keccak256Hash(computed.Bytes(), zero.Bytes())
		zero = ethCrypto.Keccak256Hash(zero.Bytes(), zero.Bytes())
	}
	assert.Equal(t, computed, tree.Root())
}
