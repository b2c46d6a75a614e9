package test

import (
	"crypto/ecdsa"
	"math/big"

	"plasma-rootchain/common"
	"plasma-rootchain/merkle"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// User is a child chain participant with a signing key
type User struct {
	Addr ethCommon.Address
	Key  *ecdsa.PrivateKey
}

// NewUsers returns n users with deterministic keys
func NewUsers(n int) []*User {
	users := make([]*User, n)
	for i := 0; i < n; i++ {
		seed := ethCrypto.Keccak256([]byte{byte(i + 1)})
		key, err := ethCrypto.ToECDSA(seed)
		if err != nil {
			panic(err)
		}
		users[i] = &User{
			Addr: ethCrypto.PubkeyToAddress(key.PublicKey),
			Key:  key,
		}
	}
	return users
}

// Sign signs a digest with the user's key
func (u *User) Sign(digest ethCommon.Hash) []byte {
	sig, err := ethCrypto.Sign(digest.Bytes(), u.Key)
	if err != nil {
		panic(err)
	}
	return sig
}

// DepositTx builds a deposit shaped transaction record: no inputs, output 1
// funded for the owner, output 2 empty
func DepositTx(owner ethCommon.Address, amount *big.Int) *common.Tx {
	return &common.Tx{
		Owner1:  owner,
		Amount1: new(big.Int).Set(amount),
		Amount2: big.NewInt(0),
		Fee:     big.NewInt(0),
	}
}

// SpendTx builds a transaction spending the single input at pos into one
// funded output for newOwner
func SpendTx(pos common.Position, newOwner ethCommon.Address, amount *big.Int) *common.Tx {
	return &common.Tx{
		BlkNum1:  pos.BlkNum,
		TxIndex1: pos.TxIndex,
		OIndex1:  pos.OIndex,
		Owner1:   newOwner,
		Amount1:  new(big.Int).Set(amount),
		Amount2:  big.NewInt(0),
		Fee:      big.NewInt(0),
	}
}

// Encode panics on encoding failure, which cannot happen for the fixed
// record shape
func Encode(tx *common.Tx) []byte {
	txBytes, err := tx.Encode()
	if err != nil {
		panic(err)
	}
	return txBytes
}

// ZeroSigs returns an all zero transaction signature pair, the bundle of a
// deposit shaped transaction
func ZeroSigs() []byte {
	return make([]byte, common.TxSigsLen)
}

// TxSigs returns the two transaction signatures of the bundle: signer1 over
// the digest, and signer2 when the transaction has a second funded input
// (zero filled otherwise)
func TxSigs(txDigest ethCommon.Hash, signer1, signer2 *User) []byte {
	sigs := make([]byte, 0, common.TxSigsLen)
	if signer1 != nil {
		sigs = append(sigs, signer1.Sign(txDigest)...)
	} else {
		sigs = append(sigs, make([]byte, common.SigLen)...)
	}
	if signer2 != nil {
		sigs = append(sigs, signer2.Sign(txDigest)...)
	} else {
		sigs = append(sigs, make([]byte, common.SigLen)...)
	}
	return sigs
}

// ConfirmSigs extends a transaction signature pair with the confirmation
// signatures over keccak(txDigest|root) for each funded input
func ConfirmSigs(txSigs []byte, txDigest, root ethCommon.Hash, signer1, signer2 *User) []byte {
	confDigest := common.ConfirmationDigest(txDigest, root)
	sigs := append([]byte{}, txSigs...)
	if signer1 != nil {
		sigs = append(sigs, signer1.Sign(confDigest)...)
	}
	if signer2 != nil {
		sigs = append(sigs, signer2.Sign(confDigest)...)
	}
	return sigs
}

// ChildBlockBuilder accumulates (txBytes, txSigs) pairs and builds the
// Merkle tree an operator would commit for them
type ChildBlockBuilder struct {
	txs  [][]byte
	sigs [][]byte
}

// Add appends a transaction with its signature pair to the block
func (b *ChildBlockBuilder) Add(txBytes, txSigs []byte) {
	b.txs = append(b.txs, txBytes)
	b.sigs = append(b.sigs, txSigs)
}

// Build returns the tree over the block's leaves
func (b *ChildBlockBuilder) Build() *merkle.Tree {
	leaves := make([]ethCommon.Hash, len(b.txs))
	for i := range b.txs {
		leaf, err := common.MerkleLeaf(common.TxDigest(b.txs[i]), b.sigs[i])
		if err != nil {
			panic(err)
		}
		leaves[i] = leaf
	}
	tree, err := merkle.NewTree(leaves)
	if err != nil {
		panic(err)
	}
	return tree
}

// Proof returns the membership proof for the transaction at index
func (b *ChildBlockBuilder) Proof(index uint64) []byte {
	proof, err := b.Build().Proof(index)
	if err != nil {
		panic(err)
	}
	return proof
}
