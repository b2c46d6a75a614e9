package common

import (
	"errors"
	"math/big"
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, seed byte) (ethCommon.Address, []byte) {
	key, err := ethCrypto.ToECDSA(ethCrypto.Keccak256([]byte{seed}))
	require.NoError(t, err)
	return ethCrypto.PubkeyToAddress(key.PublicKey), ethCrypto.FromECDSA(key)
}

func sign(t *testing.T, digest ethCommon.Hash, keyBytes []byte) []byte {
	key, err := ethCrypto.ToECDSA(keyBytes)
	require.NoError(t, err)
	sig, err := ethCrypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)
	return sig
}

func TestTxRoundTrip(t *testing.T) {
	addr, _ := testKey(t, 1)
	tx := &Tx{
		BlkNum1:  1000,
		TxIndex1: 2,
		OIndex1:  1,
		Owner1:   addr,
		Amount1:  big.NewInt(5000),
		Amount2:  big.NewInt(0),
		Fee:      big.NewInt(0),
	}
	txBytes, err := tx.Encode()
	require.NoError(t, err)

	decoded, err := DecodeTx(txBytes)
	require.NoError(t, err)
	assert.Equal(t, tx.BlkNum1, decoded.BlkNum1)
	assert.Equal(t, tx.TxIndex1, decoded.TxIndex1)
	assert.Equal(t, tx.OIndex1, decoded.OIndex1)
	assert.Equal(t, tx.Owner1, decoded.Owner1)
	assert.Equal(t, tx.Owner2, decoded.Owner2)
	assert.Zero(t, tx.Amount1.Cmp(decoded.Amount1))
	assert.Zero(t, tx.Amount2.Cmp(decoded.Amount2))
	assert.Zero(t, tx.Fee.Cmp(decoded.Fee))

	// the digest is stable across a round trip
	reencoded, err := decoded.Encode()
	require.NoError(t, err)
	assert.Equal(t, TxDigest(txBytes), TxDigest(reencoded))
}

func TestDecodeTxWrongArity(t *testing.T) {
	// a 10 element list must be rejected, not padded
	short, err := rlp.EncodeToBytes([]interface{}{
		uint64(0), uint64(0), uint64(0), uint64(0), uint64(0), uint64(0),
		ethCommon.Address{}, big.NewInt(1), ethCommon.Address{}, big.NewInt(0),
	})
	require.NoError(t, err)
	_, err = DecodeTx(short)
	require.Error(t, err)
	assert.True(t, errors.Is(Unwrap(err), ErrInvalidTxRecord))

	// a 12 element list must be rejected, not truncated
	long, err := rlp.EncodeToBytes([]interface{}{
		uint64(0), uint64(0), uint64(0), uint64(0), uint64(0), uint64(0),
		ethCommon.Address{}, big.NewInt(1), ethCommon.Address{}, big.NewInt(0),
		big.NewInt(0), big.NewInt(0),
	})
	require.NoError(t, err)
	_, err = DecodeTx(long)
	require.Error(t, err)
	assert.True(t, errors.Is(Unwrap(err), ErrInvalidTxRecord))

	_, err = DecodeTx([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestValidateDeposit(t *testing.T) {
	addr, _ := testKey(t, 1)
	tx := &Tx{
		Owner1:  addr,
		Amount1: big.NewInt(5000),
		Amount2: big.NewInt(0),
		Fee:     big.NewInt(0),
	}
	require.NoError(t, tx.ValidateDeposit(big.NewInt(5000)))

	// attached value mismatch
	err := tx.ValidateDeposit(big.NewInt(4999))
	require.Error(t, err)
	assert.True(t, errors.Is(Unwrap(err), ErrValueMismatch))

	// spending input present
	spending := *tx
	spending.BlkNum1 = 1000
	err = spending.ValidateDeposit(big.NewInt(5000))
	require.Error(t, err)
	assert.True(t, errors.Is(Unwrap(err), ErrInvalidTxRecord))

	// second output funded
	twoOut := *tx
	twoOut.Amount2 = big.NewInt(1)
	err = twoOut.ValidateDeposit(big.NewInt(5000))
	require.Error(t, err)
	assert.True(t, errors.Is(Unwrap(err), ErrInvalidTxRecord))
}

func TestOutputSelection(t *testing.T) {
	addr1, _ := testKey(t, 1)
	addr2, _ := testKey(t, 2)
	tx := &Tx{
		Owner1:  addr1,
		Amount1: big.NewInt(3000),
		Owner2:  addr2,
		Amount2: big.NewInt(2000),
		Fee:     big.NewInt(0),
	}
	owner, amount, err := tx.Output(0)
	require.NoError(t, err)
	assert.Equal(t, addr1, owner)
	assert.Equal(t, big.NewInt(3000), amount)

	owner, amount, err = tx.Output(1)
	require.NoError(t, err)
	assert.Equal(t, addr2, owner)
	assert.Equal(t, big.NewInt(2000), amount)

	_, _, err = tx.Output(2)
	require.Error(t, err)
}

func TestMerkleLeaf(t *testing.T) {
	digest := ethCrypto.Keccak256Hash([]byte("tx"))
	sigs := make([]byte, MaxSigsLen)
	for i := range sigs {
		sigs[i] = byte(i)
	}
	leaf, err := MerkleLeaf(digest, sigs)
	require.NoError(t, err)
	// only the two transaction signatures are folded into the leaf
	expected := ethCrypto.Keccak256Hash(digest.Bytes(), sigs[:TxSigsLen])
	assert.Equal(t, expected, leaf)

	_, err = MerkleLeaf(digest, sigs[:TxSigsLen-1])
	require.Error(t, err)
}

func TestRecoverSigner(t *testing.T) {
	addr, key := testKey(t, 3)
	digest := ethCrypto.Keccak256Hash([]byte("payload"))
	sig := sign(t, digest, key)

	signer, err := RecoverSigner(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, signer)

	_, err = RecoverSigner(digest, sig[:SigLen-1])
	require.Error(t, err)
}

func TestCheckSigsDepositShaped(t *testing.T) {
	digest := ethCrypto.Keccak256Hash([]byte("deposit"))
	root := ethCrypto.Keccak256Hash([]byte("root"))
	ok, err := CheckSigs(digest, root, 0, 0, make([]byte, TxSigsLen))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckSigsSingleInput(t *testing.T) {
	_, key := testKey(t, 4)
	txDigest := ethCrypto.Keccak256Hash([]byte("spend"))
	root := ethCrypto.Keccak256Hash([]byte("root"))
	confDigest := ConfirmationDigest(txDigest, root)

	sigs := sign(t, txDigest, key)
	sigs = append(sigs, make([]byte, SigLen)...)
	sigs = append(sigs, sign(t, confDigest, key)...)

	ok, err := CheckSigs(txDigest, root, 1000, 0, sigs)
	require.NoError(t, err)
	assert.True(t, ok)

	// confirmation by a different key does not match
	_, otherKey := testKey(t, 5)
	badSigs := append([]byte{}, sigs[:TxSigsLen]...)
	badSigs = append(badSigs, sign(t, confDigest, otherKey)...)
	ok, err = CheckSigs(txDigest, root, 1000, 0, badSigs)
	require.NoError(t, err)
	assert.False(t, ok)

	// missing confirmation slot
	_, err = CheckSigs(txDigest, root, 1000, 0, sigs[:TxSigsLen])
	require.Error(t, err)
}

func TestCheckSigsTwoInputs(t *testing.T) {
	_, key1 := testKey(t, 6)
	_, key2 := testKey(t, 7)
	txDigest := ethCrypto.Keccak256Hash([]byte("spend2"))
	root := ethCrypto.Keccak256Hash([]byte("root2"))
	confDigest := ConfirmationDigest(txDigest, root)

	sigs := sign(t, txDigest, key1)
	sigs = append(sigs, sign(t, txDigest, key2)...)
	sigs = append(sigs, sign(t, confDigest, key1)...)
	sigs = append(sigs, sign(t, confDigest, key2)...)

	ok, err := CheckSigs(txDigest, root, 1000, 2000, sigs)
	require.NoError(t, err)
	assert.True(t, ok)

	// swap the confirmation signatures: both inputs fail to match
	swapped := append([]byte{}, sigs[:TxSigsLen]...)
	swapped = append(swapped, sigs[3*SigLen:]...)
	swapped = append(swapped, sigs[2*SigLen:3*SigLen]...)
	ok, err = CheckSigs(txDigest, root, 1000, 2000, swapped)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckSigsBadLength(t *testing.T) {
	digest := ethCrypto.Keccak256Hash([]byte("x"))
	root := ethCrypto.Keccak256Hash([]byte("y"))
	_, err := CheckSigs(digest, root, 0, 0, make([]byte, TxSigsLen+1))
	require.Error(t, err)
	_, err = CheckSigs(digest, root, 0, 0, make([]byte, SigLen))
	require.Error(t, err)
	_, err = CheckSigs(digest, root, 0, 0, make([]byte, MaxSigsLen+SigLen))
	require.Error(t, err)
}
