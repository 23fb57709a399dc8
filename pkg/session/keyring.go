package session

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringItemKey identifies the session record within the keyring.
const KeyringItemKey = "session"

// KeyringStore keeps the session record in a system keyring.
type KeyringStore struct {
	kr keyring.Keyring
}

func NewKeyringStore(kr keyring.Keyring) *KeyringStore {
	return &KeyringStore{kr: kr}
}

func (s *KeyringStore) Load() (*Record, error) {
	item, err := s.kr.Get(KeyringItemKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, notAuthenticated()
	}
	if err != nil {
		return nil, fmt.Errorf("could not load session from keyring: %w", err)
	}
	record, err := Import(bytes.NewReader(item.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedRecord, err)
	}
	if !record.Authenticated() {
		return nil, notAuthenticated()
	}
	return record, nil
}

func (s *KeyringStore) Save(record *Record) error {
	var buffer bytes.Buffer
	if err := record.Export(&buffer); err != nil {
		return err
	}
	if err := s.kr.Set(keyring.Item{
		Key:         KeyringItemKey,
		Data:        buffer.Bytes(),
		Label:       "ipass session",
		Description: "Shared key for the password manager session",
	}); err != nil {
		return fmt.Errorf("failed to save session to keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) Clear() error {
	err := s.kr.Remove(KeyringItemKey)
	if err == nil || errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return fmt.Errorf("failed to clear session from keyring: %w", err)
}
