/*
Package cli facilitates building ipass command-line applications. It defines a [Config] type that
registers common command-line flags (using the Golang flag package) and their environment variable
equivalents.

The session record is stored in a JSON file by default. Setting a keyring type moves it into an
OS-dependent credential store through [keyring]'s platform-agnostic interface.

# Examples

	import flag

	config, err := NewConfig()
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags() // Adds --port, --timeout, --config, etc.
	flag.Parse()
	config.ReadFromEnvironment()      // Fills in missing fields using environment variables

	store, err := config.SessionStore()
	if err != nil {
		panic(err)
	}
	conn, err := config.Dial()
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	client := vault.New(conn, store)

The daemon uses the same Config to find the password manager:

	manifest, path, err := config.Manifest()
*/
package cli

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/connector"
	"github.com/ipass-go/ipass/pkg/connector/udp"
	"github.com/ipass-go/ipass/pkg/relay"
	"github.com/ipass-go/ipass/pkg/session"

	"github.com/99designs/keyring"
)

// Environment variable names used are used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvPort            = "IPASS_PORT"
	EnvTimeout         = "IPASS_TIMEOUT"
	EnvConfigFile      = "IPASS_CONFIG"
	EnvManifestFile    = "IPASS_MANIFEST"
	EnvKeyringType     = "IPASS_KEYRING_TYPE"
	EnvKeyringPassword = "IPASS_KEYRING_PASSWORD"
	EnvKeyringPath     = "IPASS_KEYRING_PATH"
	EnvKeyringDebug    = "IPASS_KEYRING_DEBUG"
)

var ErrKeyNotFound = keyring.ErrKeyNotFound

// Config fields determine how ipass reaches the daemon and where it keeps the session record.
type Config struct {
	Port         int           // Loopback UDP port of the daemon. Zero selects connector.DefaultPort.
	Timeout      time.Duration // Bound on one request/response round trip.
	SessionFile  string        // Path of the session record when no keyring type is set.
	ManifestFile string        // Native-messaging manifest of the password manager.
	Backend      keyring.Config
	BackendType  backendType
	Debug        bool // Enable keyring debug messages

	password *string
}

func NewConfig() (*Config, error) {
	c := Config{
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getPassword
	c.Backend.FilePasswordFunc = c.getPassword

	return &c, nil
}

// RegisterCommandLineFlags adds c's flags to the default flag set.
func (c *Config) RegisterCommandLineFlags() {
	c.RegisterFlags(flag.CommandLine)
}

// RegisterFlags adds c's flags to fs. Subcommands with their own flag sets use this to accept the
// same options as the top-level command.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", 0, fmt.Sprintf("Daemon UDP `port`. Defaults to $%s or %d.", EnvPort, connector.DefaultPort))
	fs.DurationVar(&c.Timeout, "timeout", 0, fmt.Sprintf("Maximum `duration` of one request. Defaults to $%s or %s.", EnvTimeout, connector.DefaultTimeout))
	fs.StringVar(&c.SessionFile, "config", "", fmt.Sprintf("Session record `file`. Defaults to $%s or ~/.ipass/config.json.", EnvConfigFile))
	fs.StringVar(&c.ManifestFile, "manifest", "", fmt.Sprintf("Native-messaging manifest `file` of the password manager. Defaults to $%s.", EnvManifestFile))

	var names []string
	for _, name := range keyring.AvailableBackends() {
		names = append(names, string(name))
	}
	sort.Strings(names)
	fs.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $"+EnvKeyringType+"; if unset, the session is kept in a file.")
	fs.StringVar(&c.Backend.FileDir, "keyring-file-dir", "", "keyring `directory` for file-backed keyring types. Defaults to $"+EnvKeyringPath+" or "+keyringDirectory+".")
	fs.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() (or other initialization method) will prevent the
// environment from overriding explicit command-line parameters and avoid potentially misleading
// debug log messages.
func (c *Config) ReadFromEnvironment() {
	if c.Port == 0 {
		if value, ok := os.LookupEnv(EnvPort); ok {
			if port, err := strconv.Atoi(value); err == nil {
				c.Port = port
				log.Debug("Set port to %d", c.Port)
			} else {
				log.Warning("Ignoring invalid %s '%s'", EnvPort, value)
			}
		}
	}
	if c.Timeout == 0 {
		if value, ok := os.LookupEnv(EnvTimeout); ok {
			if timeout, err := time.ParseDuration(value); err == nil {
				c.Timeout = timeout
				log.Debug("Set timeout to %s", c.Timeout)
			} else {
				log.Warning("Ignoring invalid %s '%s'", EnvTimeout, value)
			}
		}
	}
	if c.SessionFile == "" {
		c.SessionFile = os.Getenv(EnvConfigFile)
		log.Debug("Set session file to '%s'", c.SessionFile)
	}
	if c.ManifestFile == "" {
		c.ManifestFile = os.Getenv(EnvManifestFile)
		log.Debug("Set manifest file to '%s'", c.ManifestFile)
	}
	if c.BackendType.String() == string(keyring.InvalidBackend) {
		if err := c.BackendType.Set(os.Getenv(EnvKeyringType)); err == nil {
			log.Debug("Set keyring type to '%s'", c.BackendType)
		}
	}
	if c.password == nil {
		password := os.Getenv(EnvKeyringPassword)
		c.password = &password
		if len(password) > 0 {
			log.Debug("Set keyring File Password to %s", strings.Repeat("*", len("hunter2")))
		}
	}
	if c.Backend.FileDir == "" {
		c.Backend.FileDir = os.Getenv(EnvKeyringPath)
		log.Debug("Set keyring File Path to '%s'", c.Backend.FileDir)
	}
	if !c.Debug {
		_, c.Debug = os.LookupEnv(EnvKeyringDebug)
		log.Debug("Set keyring Debug Logging to '%v'", c.Debug)
	}
}

// DaemonPort returns the configured port, or connector.DefaultPort.
func (c *Config) DaemonPort() int {
	if c.Port == 0 {
		return connector.DefaultPort
	}
	return c.Port
}

// RequestTimeout returns the configured timeout, or connector.DefaultTimeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.Timeout <= 0 {
		return connector.DefaultTimeout
	}
	return c.Timeout
}

// UsesKeyring returns true if the session record is kept in the system keyring.
func (c *Config) UsesKeyring() bool {
	return c.BackendType.String() != string(keyring.InvalidBackend)
}

// SessionStore returns the store selected by c: the system keyring if a keyring type is set,
// otherwise a JSON file.
func (c *Config) SessionStore() (session.Store, error) {
	if c.UsesKeyring() {
		kr, err := c.openKeyring()
		if err != nil {
			return nil, fmt.Errorf("could not open keyring: %w", err)
		}
		log.Debug("Using %s keyring for session record", c.BackendType)
		return session.NewKeyringStore(kr), nil
	}
	path := c.SessionFile
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	log.Debug("Using session file %s", path)
	return session.NewFileStore(path), nil
}

// Dial opens a connection to the daemon.
func (c *Config) Dial() (*udp.Connection, error) {
	return udp.Dial(c.DaemonPort(), c.RequestTimeout())
}

// Manifest loads the password manager's native-messaging manifest. If no manifest file is
// configured, the platform's default locations are searched.
func (c *Config) Manifest() (*relay.Manifest, string, error) {
	if c.ManifestFile != "" {
		return relay.LoadManifest(c.ManifestFile)
	}
	return relay.LoadManifest(relay.DefaultManifestPaths...)
}
