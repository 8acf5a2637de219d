// Package sshutil provides SSH connectivity for fleet hosts: key selection,
// connection establishment with retry and algorithm fallback, and remote
// command execution in capture or streaming form.
package sshutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// UnspecifiedKey is the hosts-file placeholder meaning no key is configured
// for the host.
const UnspecifiedKey = "#"

// conventionalKeyNames are probed under ~/.ssh, in preference order, when
// neither the host entry nor the command line names a key.
var conventionalKeyNames = []string{"id_ed25519", "id_rsa", "id_ecdsa", "id_dsa"}

// NoKeyFoundError reports that no usable private key could be located.
type NoKeyFoundError struct {
	Dir string
}

func (e *NoKeyFoundError) Error() string {
	return fmt.Sprintf("No SSH keys found in %s and no key specified", e.Dir)
}

// SelectKeys determines which private key files to offer for a host. A key
// path from the hosts file wins; otherwise the run-wide default key; failing
// both, the host's IdentityFile from ~/.ssh/config and the conventional key
// files under ~/.ssh, whichever of them exist. An empty result is an error,
// not a fallback to agent-only auth.
func SelectKeys(host, keyPath, defaultKey string) ([]string, error) {
	if keyPath != "" && keyPath != UnspecifiedKey {
		return []string{expandPath(keyPath)}, nil
	}
	if defaultKey != "" {
		return []string{expandPath(defaultKey)}, nil
	}

	sshDir := filepath.Join(homeDir(), ".ssh")
	seen := make(map[string]bool)
	var keys []string

	if identity := configIdentityFile(host); identity != "" {
		if _, err := os.Stat(identity); err == nil {
			keys = append(keys, identity)
			seen[identity] = true
		}
	}

	for _, name := range conventionalKeyNames {
		path := filepath.Join(sshDir, name)
		if seen[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			keys = append(keys, path)
		}
	}

	if len(keys) == 0 {
		return nil, &NoKeyFoundError{Dir: sshDir}
	}
	return keys, nil
}

// configIdentityFile returns the IdentityFile configured for host in
// ~/.ssh/config, or "" if the config is absent or has no entry.
func configIdentityFile(host string) string {
	f, err := os.Open(filepath.Join(homeDir(), ".ssh", "config"))
	if err != nil {
		return ""
	}
	defer f.Close()

	cfg, err := ssh_config.Decode(f)
	if err != nil {
		return ""
	}
	identity, err := cfg.Get(host, "IdentityFile")
	if err != nil || identity == "" {
		return ""
	}
	return expandPath(identity)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
