package authentication

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/protocol"
	"github.com/ipass-go/ipass/pkg/session"
)

const (
	// NonceLength is the GCM nonce size used by the password manager. It is not the standard 12.
	NonceLength = 16
	tagLength   = 16
)

var (
	ErrInvalidKey        = protocol.NewError(protocol.KindCrypto, "envelope key must be 16 bytes", false, false)
	ErrMalformedEnvelope = protocol.NewError(protocol.KindCrypto, "malformed envelope", false, false)
	// ErrDecryptFailed indicates the envelope did not authenticate under the session key. This is
	// the usual symptom of a stale session after the daemon restarted.
	ErrDecryptFailed = protocol.NewError(protocol.KindCrypto, "failed to decrypt envelope", false, false)
)

// Layout selects where the nonce sits relative to the ciphertext.
type Layout int

const (
	// NonceSuffix is base64(ciphertext | tag | nonce). The CLI seals requests this way.
	NonceSuffix Layout = iota
	// NoncePrefix is base64(nonce | ciphertext | tag). The password manager seals responses this
	// way.
	NoncePrefix
)

func (l Layout) String() string {
	switch l {
	case NonceSuffix:
		return "nonce-suffix"
	case NoncePrefix:
		return "nonce-prefix"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Codec seals and opens SDATA envelopes.
type Codec struct {
	gcm cipher.AEAD
	rng io.Reader
}

// NewCodec returns a Codec keyed by a raw AES-128 key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != session.EncryptionKeyLength {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceLength)
	if err != nil {
		return nil, err
	}
	return &Codec{gcm: gcm, rng: rand.Reader}, nil
}

// NewCodecFromRecord returns a Codec keyed by the first 16 bytes of the record's shared key.
func NewCodecFromRecord(record *session.Record) (*Codec, error) {
	key, err := record.EncryptionKey()
	if err != nil {
		return nil, err
	}
	return NewCodec(key)
}

// Seal JSON-encodes v and encrypts it in the request layout.
func (c *Codec) Seal(v interface{}) (string, error) {
	return c.SealWithLayout(v, NonceSuffix)
}

// Open decrypts a response envelope and JSON-decodes the plaintext into v.
func (c *Codec) Open(envelope string, v interface{}) error {
	return c.OpenWithLayout(envelope, NoncePrefix, v)
}

func (c *Codec) SealWithLayout(v interface{}, layout Layout) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, NonceLength)
	if _, err := io.ReadFull(c.rng, nonce); err != nil {
		return "", err
	}
	var sealed []byte
	switch layout {
	case NonceSuffix:
		sealed = c.gcm.Seal(nil, nonce, plaintext, nil)
		sealed = append(sealed, nonce...)
	case NoncePrefix:
		sealed = c.gcm.Seal(nonce, nonce, plaintext, nil)
	default:
		return "", fmt.Errorf("unsupported envelope layout %s", layout)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Codec) OpenWithLayout(envelope string, layout Layout, v interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedEnvelope, err)
	}
	if len(raw) < NonceLength+tagLength {
		return fmt.Errorf("%w: envelope is %d bytes", ErrMalformedEnvelope, len(raw))
	}
	var nonce, ciphertext []byte
	switch layout {
	case NonceSuffix:
		split := len(raw) - NonceLength
		ciphertext, nonce = raw[:split], raw[split:]
	case NoncePrefix:
		nonce, ciphertext = raw[:NonceLength], raw[NonceLength:]
	default:
		return fmt.Errorf("unsupported envelope layout %s", layout)
	}
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrDecryptFailed
	}
	if log.Enabled(log.LevelDebug) {
		log.Debug("Decrypted envelope: %s", plaintext)
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("%w: %s", protocol.ErrBadResponse, err)
	}
	return nil
}
