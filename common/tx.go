package common

import (
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// Tx is the fixed shape child chain transaction record: two spending inputs
// identified by position, two outputs of (owner, amount) and a fee field.
// The record is interpreted positionally from an RLP list of exactly 11
// fields:
//
//	[blkNum1, txIndex1, oIndex1, blkNum2, txIndex2, oIndex2,
//	 owner1, amount1, owner2, amount2, fee]
//
// A deposit transaction has both input positions zeroed and a single funded
// output.
type Tx struct {
	BlkNum1  uint64
	TxIndex1 uint64
	OIndex1  uint64
	BlkNum2  uint64
	TxIndex2 uint64
	OIndex2  uint64
	Owner1   ethCommon.Address
	Amount1  *big.Int
	Owner2   ethCommon.Address
	Amount2  *big.Int
	Fee      *big.Int
}

// DecodeTx decodes an RLP encoded transaction record. Any arity or field
// shape violation fails with ErrInvalidTxRecord.
func DecodeTx(txBytes []byte) (*Tx, error) {
	var tx Tx
	if err := rlp.DecodeBytes(txBytes, &tx); err != nil {
		return nil, Wrap(fmt.Errorf("%w: %s", ErrInvalidTxRecord, err))
	}
	return &tx, nil
}

// Encode returns the RLP encoding of the transaction record
func (tx *Tx) Encode() ([]byte, error) {
	txBytes, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return nil, Wrap(err)
	}
	return txBytes, nil
}

// TxDigest is the content digest of an encoded transaction record
func TxDigest(txBytes []byte) ethCommon.Hash {
	return ethCrypto.Keccak256Hash(txBytes)
}

// IsDepositShaped reports whether both input positions are zeroed, which is
// required of deposit transactions
func (tx *Tx) IsDepositShaped() bool {
	return tx.BlkNum1 == 0 && tx.TxIndex1 == 0 && tx.OIndex1 == 0 &&
		tx.BlkNum2 == 0 && tx.TxIndex2 == 0 && tx.OIndex2 == 0
}

// ValidateDeposit checks the structural rules of a deposit record against the
// attached value: no spending inputs, output 1 funded with exactly the
// attached value, output 2 empty.
func (tx *Tx) ValidateDeposit(value *big.Int) error {
	if !tx.IsDepositShaped() {
		return Wrap(fmt.Errorf("%w: deposit has nonzero input position", ErrInvalidTxRecord))
	}
	if tx.Amount1 == nil || tx.Amount1.Cmp(value) != 0 {
		return Wrap(ErrValueMismatch)
	}
	if tx.Amount2 == nil || tx.Amount2.Sign() != 0 {
		return Wrap(fmt.Errorf("%w: deposit output 2 must be empty", ErrInvalidTxRecord))
	}
	return nil
}

// Output returns the (owner, amount) pair selected by output index
func (tx *Tx) Output(oIndex uint64) (ethCommon.Address, *big.Int, error) {
	switch oIndex {
	case 0:
		return tx.Owner1, tx.Amount1, nil
	case 1:
		return tx.Owner2, tx.Amount2, nil
	}
	return ethCommon.Address{}, nil, Wrap(fmt.Errorf("%w: output index %d", ErrInvalidTxRecord, oIndex))
}

// InputPosition returns the position referenced by input 0 or 1
func (tx *Tx) InputPosition(index int) Position {
	if index == 0 {
		return Position{BlkNum: tx.BlkNum1, TxIndex: tx.TxIndex1, OIndex: tx.OIndex1}
	}
	return Position{BlkNum: tx.BlkNum2, TxIndex: tx.TxIndex2, OIndex: tx.OIndex2}
}

// MerkleLeaf is the digest committed into the child block tree: the
// transaction digest folded with the two transaction signatures
func MerkleLeaf(txDigest ethCommon.Hash, sigs []byte) (ethCommon.Hash, error) {
	if len(sigs) < TxSigsLen {
		return ethCommon.Hash{}, Wrap(fmt.Errorf("%w: sigs shorter than %d bytes",
			ErrInvalidSignature, TxSigsLen))
	}
	return ethCrypto.Keccak256Hash(txDigest.Bytes(), sigs[:TxSigsLen]), nil
}

// ConfirmationDigest is the digest an input owner signs to confirm the
// inclusion of a transaction under the given block root
func ConfirmationDigest(txDigest, root ethCommon.Hash) ethCommon.Hash {
	return ethCrypto.Keccak256Hash(txDigest.Bytes(), root.Bytes())
}

// ChallengeDigest is the digest the original owner signs to acknowledge the
// spend of an exiting output: the spending transaction digest, its signature
// bundle and the root of the block that included it
func ChallengeDigest(txDigest ethCommon.Hash, sigs []byte, root ethCommon.Hash) ethCommon.Hash {
	return ethCrypto.Keccak256Hash(txDigest.Bytes(), sigs, root.Bytes())
}

// RecoverSigner returns the address that produced sig over digest
func RecoverSigner(digest ethCommon.Hash, sig []byte) (ethCommon.Address, error) {
	if len(sig) != SigLen {
		return ethCommon.Address{}, Wrap(fmt.Errorf("%w: signature length %d",
			ErrInvalidSignature, len(sig)))
	}
	pub, err := ethCrypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return ethCommon.Address{}, Wrap(fmt.Errorf("%w: %s", ErrInvalidSignature, err))
	}
	return ethCrypto.PubkeyToAddress(*pub), nil
}

// CheckSigs verifies the input owner signatures of a transaction against the
// committed root. The bundle layout is sig1|sig2|confSig1|confSig2 with the
// confirmation slots present only for inputs with a nonzero block number.
// Each funded input is valid when the signer of the transaction digest also
// signed the confirmation digest keccak(txDigest|root). Deposit shaped
// transactions (both inputs zero) verify trivially.
func CheckSigs(txDigest, root ethCommon.Hash, blkNum1, blkNum2 uint64, sigs []byte) (bool, error) {
	if len(sigs)%SigLen != 0 || len(sigs) < TxSigsLen || len(sigs) > MaxSigsLen {
		return false, Wrap(fmt.Errorf("%w: sigs length %d", ErrInvalidSignature, len(sigs)))
	}
	confDigest := ConfirmationDigest(txDigest, root)
	if blkNum1 > 0 {
		if len(sigs) < 3*SigLen {
			return false, Wrap(fmt.Errorf("%w: missing confirmation for input 1",
				ErrInvalidSignature))
		}
		txSigner, err := RecoverSigner(txDigest, sigs[:SigLen])
		if err != nil {
			return false, err
		}
		confSigner, err := RecoverSigner(confDigest, sigs[2*SigLen:3*SigLen])
		if err != nil {
			return false, err
		}
		if txSigner != confSigner {
			return false, nil
		}
	}
	if blkNum2 > 0 {
		if len(sigs) < 4*SigLen {
			return false, Wrap(fmt.Errorf("%w: missing confirmation for input 2",
				ErrInvalidSignature))
		}
		txSigner, err := RecoverSigner(txDigest, sigs[SigLen:2*SigLen])
		if err != nil {
			return false, err
		}
		confSigner, err := RecoverSigner(confDigest, sigs[3*SigLen:4*SigLen])
		if err != nil {
			return false, err
		}
		if txSigner != confSigner {
			return false, nil
		}
	}
	return true, nil
}
