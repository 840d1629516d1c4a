package pocket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // cosmos addresses are defined over ripemd160
)

// KeyPair is an operator key in the encoding the key store persists.
type KeyPair struct {
	Address       string
	PublicKeyHex  string
	PrivateKeyHex string
}

// GenerateKey creates a fresh secp256k1 operator key.
func GenerateKey() (KeyPair, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate private key: %w", err)
	}
	return keyPairFrom(priv)
}

// KeyFromHex rebuilds the key pair of a hex encoded private key.
func KeyFromHex(privateKeyHex string) (KeyPair, error) {
	priv, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return KeyPair{}, err
	}
	return keyPairFrom(priv)
}

func keyPairFrom(priv *secp256k1.PrivateKey) (KeyPair, error) {
	pub := priv.PubKey().SerializeCompressed()
	addr, err := AddressFromPublicKey(pub)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		Address:       addr,
		PublicKeyHex:  hex.EncodeToString(pub),
		PrivateKeyHex: hex.EncodeToString(priv.Serialize()),
	}, nil
}

func parsePrivateKey(privateKeyHex string) (*secp256k1.PrivateKey, error) {
	raw, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(raw) != secp256k1.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", secp256k1.PrivKeyBytesLen, len(raw))
	}
	return secp256k1.PrivKeyFromBytes(raw), nil
}

// AddressFromPublicKey derives the bech32 account address of a compressed public key.
func AddressFromPublicKey(compressed []byte) (string, error) {
	sha := sha256.Sum256(compressed)
	hasher := ripemd160.New()
	hasher.Write(sha[:])
	conv, err := bech32.ConvertBits(hasher.Sum(nil), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert address bits: %w", err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		return "", fmt.Errorf("encode address: %w", err)
	}
	return encoded, nil
}

// signDirect signs sha256(doc) and returns the 64 byte r||s form cosmos expects.
func signDirect(priv *secp256k1.PrivateKey, doc []byte) []byte {
	digest := sha256.Sum256(doc)
	compact := ecdsa.SignCompact(priv, digest[:], true)
	// first byte is the recovery code
	return compact[1:]
}
