// Package merkle implements the fixed depth inclusion proofs that gate the
// exit game. Trees are always 16 levels deep (65536 leaf slots); absent
// subtrees are stood in for by a precomputed ladder of zero hashes so that
// the canonical root of a block with few (or zero) transactions is well
// defined.
package merkle

import (
	"fmt"

	"plasma-rootchain/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// Depth is the fixed height of every child block tree
const Depth = 16

// MaxLeaves is the leaf capacity of a tree
const MaxLeaves = 1 << Depth

// ProofLen is the exact byte length of a membership proof: one sibling
// digest per level
const ProofLen = Depth * 32

// zeroHashes[i] is the root of an empty subtree of height i
var zeroHashes [Depth + 1]ethCommon.Hash

func init() {
	zeroHashes[0] = ethCrypto.Keccak256Hash(make([]byte, 32))
	for i := 0; i < Depth; i++ {
		zeroHashes[i+1] = ethCrypto.Keccak256Hash(
			zeroHashes[i].Bytes(), zeroHashes[i].Bytes())
	}
}

// EmptyTreeRoot is the canonical root of a tree with no leaves
func EmptyTreeRoot() ethCommon.Hash {
	return zeroHashes[Depth]
}

// CheckMembership verifies that leaf sits at index under root. proof must be
// exactly Depth sibling digests, ordered leaf level first; a proof of any
// other length fails rather than being padded or truncated.
func CheckMembership(leaf ethCommon.Hash, index uint64, root ethCommon.Hash, proof []byte) bool {
	if len(proof) != ProofLen {
		return false
	}
	if index >= MaxLeaves {
		return false
	}
	computed := leaf
	for i := 0; i < Depth; i++ {
		sibling := proof[i*32 : (i+1)*32]
		if index%2 == 0 {
			computed = ethCrypto.Keccak256Hash(computed.Bytes(), sibling)
		} else {
			computed = ethCrypto.Keccak256Hash(sibling, computed.Bytes())
		}
		index /= 2
	}
	return computed == root
}

// Tree is a fixed depth Merkle tree over leaf digests, used to build child
// blocks and their membership proofs
type Tree struct {
	// layers[0] are the occupied leaves; layers[i+1] are the parents of
	// layers[i]. Absent right siblings hash against the zero ladder.
	layers [Depth + 1][]ethCommon.Hash
}

// NewTree builds a tree from the given leaves
func NewTree(leaves []ethCommon.Hash) (*Tree, error) {
	if len(leaves) > MaxLeaves {
		return nil, common.Wrap(fmt.Errorf("too many leaves: %d > %d", len(leaves), MaxLeaves))
	}
	t := &Tree{}
	t.layers[0] = append([]ethCommon.Hash{}, leaves...)
	for i := 0; i < Depth; i++ {
		level := t.layers[i]
		next := make([]ethCommon.Hash, (len(level)+1)/2)
		for j := 0; j < len(next); j++ {
			left := level[2*j]
			right := zeroHashes[i]
			if 2*j+1 < len(level) {
				right = level[2*j+1]
			}
			next[j] = ethCrypto.Keccak256Hash(left.Bytes(), right.Bytes())
		}
		t.layers[i+1] = next
	}
	return t, nil
}

// Root returns the tree root
func (t *Tree) Root() ethCommon.Hash {
	if len(t.layers[Depth]) == 0 {
		return EmptyTreeRoot()
	}
	return t.layers[Depth][0]
}

// Proof returns the membership proof for the leaf at index
func (t *Tree) Proof(index uint64) ([]byte, error) {
	if index >= MaxLeaves {
		return nil, common.Wrap(fmt.Errorf("leaf index %d out of range", index))
	}
	proof := make([]byte, 0, ProofLen)
	for i := 0; i < Depth; i++ {
		sibling := zeroHashes[i]
		var siblingIdx uint64
		if index%2 == 0 {
			siblingIdx = index + 1
		} else {
			siblingIdx = index - 1
		}
		if siblingIdx < uint64(len(t.layers[i])) {
			sibling = t.layers[i][siblingIdx]
		}
		proof = append(proof, sibling.Bytes()...)
		index /= 2
	}
	return proof, nil
}
