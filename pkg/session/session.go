package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ipass-go/ipass/pkg/protocol"
)

// EncryptionKeyLength is the number of leading bytes of the shared key used as the AES key.
const EncryptionKeyLength = 16

var (
	// ErrNotAuthenticated indicates that no usable session record exists.
	ErrNotAuthenticated = protocol.NewError(protocol.KindState, "session is not authenticated", false, false)
	// ErrMalformedRecord indicates the stored shared key cannot be decoded or is too short.
	ErrMalformedRecord = protocol.NewError(protocol.KindState, "malformed session record", false, false)
)

// Record is the persisted session state.
type Record struct {
	Username  string `json:"username"`
	SharedKey string `json:"shared_key"`
}

// NewRecord returns a Record for the identity token and shared key produced by a handshake.
func NewRecord(token string, sharedKey []byte) *Record {
	return &Record{Username: token, SharedKey: base64.StdEncoding.EncodeToString(sharedKey)}
}

// Authenticated returns true if r carries a shared key.
func (r *Record) Authenticated() bool {
	return r != nil && r.SharedKey != ""
}

// EncryptionKey returns the AES-128 key derived from r.
func (r *Record) EncryptionKey() ([]byte, error) {
	if !r.Authenticated() {
		return nil, notAuthenticated()
	}
	key, err := base64.StdEncoding.DecodeString(r.SharedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRecord, err)
	}
	if len(key) < EncryptionKeyLength {
		return nil, fmt.Errorf("%w: shared key is %d bytes", ErrMalformedRecord, len(key))
	}
	return key[:EncryptionKeyLength], nil
}

// Import a Record using data in r.
func Import(r io.Reader) (*Record, error) {
	var record Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Export writes a serialized Record to w.
func (r *Record) Export(w io.Writer) error {
	return json.NewEncoder(w).Encode(r)
}

// Store loads and saves the session record.
//
//go:generate mockgen -destination=../../mocks/session.go -package=mocks -mock_names=Store=SessionStore . Store
type Store interface {
	// Load returns the current record. It returns an error wrapping ErrNotAuthenticated if no
	// record exists or the record has no shared key.
	Load() (*Record, error)
	Save(record *Record) error
	// Clear replaces the current record with an unauthenticated one.
	Clear() error
}

// LoadAuthenticated returns the record held by store, or an error if it is not usable for
// encryption.
func LoadAuthenticated(store Store) (*Record, error) {
	record, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !record.Authenticated() {
		return nil, notAuthenticated()
	}
	return record, nil
}

// executable is the program name shown in the authentication hint.
var executable = func() string {
	if len(os.Args) > 0 && os.Args[0] != "" {
		return os.Args[0]
	}
	return "ipass"
}

func notAuthenticated() error {
	return fmt.Errorf("%w, please run `%s auth` to authenticate", ErrNotAuthenticated, executable())
}
