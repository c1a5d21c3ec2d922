package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// LoadSSHPrivateKey parses an unencrypted SSH private key file.
func LoadSSHPrivateKey(keyPath string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
	return signer, nil
}

// LoadSSHPrivateKeyWithPassphrase parses an encrypted SSH private key file.
func LoadSSHPrivateKeyWithPassphrase(keyPath, passphrase string) (ssh.Signer, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}
	signer, err := ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to parse SSH key (wrong passphrase?): %w", err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether a private key needs a passphrase. It
// parses without decrypting, so it never blocks on input.
func IsSSHKeyEncrypted(keyPath string) (bool, error) {
	keyData, err := os.ReadFile(keyPath)
	if err != nil {
		return false, fmt.Errorf("failed to read SSH key: %w", err)
	}

	_, err = ssh.ParsePrivateKey(keyData)
	if err == nil {
		return false, nil
	}
	if strings.Contains(err.Error(), "encrypted") ||
		strings.Contains(err.Error(), "passphrase") {
		return true, nil
	}
	return false, fmt.Errorf("invalid SSH key: %w", err)
}

// candidateKeyNames lists key files FindSSHKeys probes for, in preference
// order. The app-specific key wins over general-purpose identities.
var candidateKeyNames = []string{
	"agentloop_ed25519",
	"id_ed25519",
	"id_rsa",
	"id_ecdsa",
	"id_dsa",
}

// FindSSHKeys scans ~/.ssh for private keys usable as credential encryption
// keys, most preferred first. A missing ~/.ssh yields an empty slice, not an
// error.
func FindSSHKeys() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	sshDir := filepath.Join(homeDir, ".ssh")
	if _, err := os.Stat(sshDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	var found []string
	for _, name := range candidateKeyNames {
		path := filepath.Join(sshDir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if looksLikePrivateKey(path) {
			found = append(found, path)
		}
	}
	return found, nil
}

func looksLikePrivateKey(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "BEGIN") && strings.Contains(content, "PRIVATE KEY")
}
