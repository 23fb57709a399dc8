// Package srp implements the client side of the SRP-6a variant spoken by the platform password
// manager: SHA-256 throughout, the RFC 5054 3072-bit group with g = 5, and RFC 5054 padding of
// public values.
//
// Every function is a pure computation over byte slices. Protocol state (which round trip we are
// in, what the server sent) lives in the caller.
//
// Notation follows RFC 5054:
//
//	u = H(PAD(A) | PAD(B))
//	k = H(N | PAD(g))
//	x = H(s | H(I | ":" | P))
//	S = (B - k*g^x)^(a + u*x) % N
//	K = H(S)
//	M = H(H(N) XOR H(PAD(g)) | H(I) | s | A | B | K)
package srp

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// PrivateKeyLength is the size of the client's ephemeral secret exponent.
const PrivateKeyLength = 32

var ErrInvalidPublicKey = errors.New("srp: invalid public key")

func digest(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// NewPrivateKey draws a fresh ephemeral exponent from rng.
func NewPrivateKey(rng io.Reader) ([]byte, error) {
	a := make([]byte, PrivateKeyLength)
	if _, err := io.ReadFull(rng, a); err != nil {
		return nil, fmt.Errorf("srp: failed to generate private key: %w", err)
	}
	return a, nil
}

// PublicKey returns g^a mod N as unpadded big-endian bytes.
func PublicKey(privateKey []byte) ([]byte, error) {
	A, err := PowMod(groupGenerator, new(big.Int).SetBytes(privateKey), groupPrime)
	if err != nil {
		return nil, err
	}
	return A.Bytes(), nil
}

// multiplier returns k = H(N | PAD(g)).
func multiplier() ([]byte, error) {
	paddedGenerator, err := pad(groupGenerator.Bytes())
	if err != nil {
		return nil, err
	}
	return digest(groupPrime.Bytes(), paddedGenerator), nil
}

// passwordExponent returns x = H(s | H(I | ":" | P)).
func passwordExponent(identity, password string, salt []byte) []byte {
	return digest(salt, digest([]byte(identity+":"+password)))
}

// SessionKey derives the shared key K from the client's key pair, the server's public value B,
// the identity and password, and the server-issued salt.
//
// A mismatched password is not detected here; it yields a K that the server will reject when it
// checks the client proof.
func SessionKey(clientPublic, clientPrivate, serverPublic []byte, identity, password string, salt []byte) ([]byte, error) {
	paddedClient, err := pad(clientPublic)
	if err != nil {
		return nil, err
	}
	paddedServer, err := pad(serverPublic)
	if err != nil {
		return nil, err
	}
	B := new(big.Int).SetBytes(serverPublic)
	if new(big.Int).Mod(B, groupPrime).Sign() == 0 {
		return nil, ErrInvalidPublicKey
	}

	u := new(big.Int).SetBytes(digest(paddedClient, paddedServer))
	kBytes, err := multiplier()
	if err != nil {
		return nil, err
	}
	k := new(big.Int).SetBytes(kBytes)
	x := new(big.Int).SetBytes(passwordExponent(identity, password, salt))

	gx, err := PowMod(groupGenerator, x, groupPrime)
	if err != nil {
		return nil, err
	}
	base, err := Modm(new(big.Int).Sub(B, new(big.Int).Mul(k, gx)), groupPrime)
	if err != nil {
		return nil, err
	}
	exponent := new(big.Int).Add(new(big.Int).SetBytes(clientPrivate), new(big.Int).Mul(u, x))
	premaster, err := PowMod(base, exponent, groupPrime)
	if err != nil {
		return nil, err
	}
	return digest(premaster.Bytes()), nil
}

// ClientProof computes M, which proves to the server that the client derived the same K.
func ClientProof(identity string, salt, clientPublic, serverPublic, sessionKey []byte) ([]byte, error) {
	paddedGenerator, err := pad(groupGenerator.Bytes())
	if err != nil {
		return nil, err
	}
	hashN := digest(groupPrime.Bytes())
	hashG := digest(paddedGenerator)
	for i := range hashN {
		hashN[i] ^= hashG[i]
	}
	return digest(hashN, digest([]byte(identity)), salt, clientPublic, serverPublic, sessionKey), nil
}
