package cli

import (
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringServiceName = "com.ipass.session"
	keyringDirectory   = "~/.ipass/keyring"
)

type backendType struct {
	config *Config
}

func (b backendType) String() string {
	if b.config == nil || len(b.config.Backend.AllowedBackends) == 0 {
		return string(keyring.InvalidBackend)
	}
	return string(b.config.Backend.AllowedBackends[0])
}

func (b backendType) Set(v string) error {
	value := keyring.BackendType(v)
	if b.config == nil {
		return fmt.Errorf("invalid backendType")
	}
	if v == "" {
		return nil
	}
	for _, name := range keyring.AvailableBackends() {
		if name == value {
			b.config.Backend.AllowedBackends = []keyring.BackendType{name}
			return nil
		}
	}
	return fmt.Errorf("unsupported credential storage '%s'", v)
}

func (c *Config) openKeyring() (keyring.Keyring, error) {
	keyring.Debug = c.Debug
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = keyringDirectory
	}
	return keyring.Open(c.Backend)
}
