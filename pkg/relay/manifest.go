package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ipass-go/ipass/internal/log"
	"github.com/ipass-go/ipass/pkg/protocol"
)

// DefaultManifestPaths lists the locations searched for the password manager's native-messaging
// host manifest, in order.
var DefaultManifestPaths = []string{
	"/Library/Application Support/Mozilla/NativeMessagingHosts/com.apple.passwordmanager.json",
	"/Library/Google/Chrome/NativeMessagingHosts/com.apple.passwordmanager.json",
}

// Manifest describes a native-messaging host.
type Manifest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	Path              string   `json:"path"`
	Type              string   `json:"type"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
}

// LoadManifest reads the first manifest in paths that exists. It returns the manifest and the path
// it was read from.
func LoadManifest(paths ...string) (*Manifest, string, error) {
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Debug("No manifest at %s", path)
			continue
		}
		if err != nil {
			return nil, path, err
		}
		var manifest Manifest
		if err := json.Unmarshal(content, &manifest); err != nil {
			return nil, path, fmt.Errorf("could not parse manifest %s: %w", path, err)
		}
		if manifest.Path == "" {
			return nil, path, fmt.Errorf("manifest %s does not name an executable", path)
		}
		log.Debug("Loaded manifest %s (%s)", path, manifest.Name)
		return &manifest, path, nil
	}
	return nil, "", fmt.Errorf("%w: no manifest found in %v", protocol.ErrHostUnavailable, paths)
}
