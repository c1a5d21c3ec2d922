package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// SecurityMethod selects how credentials are held at rest.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// CredentialStore holds API keys and tool-server secrets, persisted
// either as a plain TOML file or encrypted with a key derived from an
// SSH key signature. Provider keys are stored under the provider id;
// server secrets under server_<serverID>_<key>.
type CredentialStore struct {
	method      SecurityMethod
	credentials map[string]string
	sshKeyPath  string
	passphrase  string
	encManager  *EncryptionManager
}

func NewCredentialStore(method SecurityMethod, sshKeyPath string) *CredentialStore {
	return &CredentialStore{
		method:      method,
		credentials: make(map[string]string),
		sshKeyPath:  sshKeyPath,
	}
}

// SetPassphrase supplies the passphrase for a protected SSH key.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
	if c.encManager != nil {
		c.encManager.SetPassphrase(passphrase)
	}
}

func (c *CredentialStore) Load(dataDir string) error {
	var (
		creds map[string]string
		err   error
	)

	switch c.method {
	case SecurityPlainText:
		creds, err = loadPlainText(dataDir)
	case SecuritySSHKey:
		creds, err = c.loadEncrypted(dataDir)
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}

	if err != nil {
		return err
	}
	c.credentials = creds
	return nil
}

func (c *CredentialStore) Save(dataDir string) error {
	switch c.method {
	case SecurityPlainText:
		return savePlainText(dataDir, c.credentials)
	case SecuritySSHKey:
		return c.saveEncrypted(dataDir)
	default:
		return fmt.Errorf("unknown security method: %s", c.method)
	}
}

func (c *CredentialStore) Get(providerID string) string {
	return c.credentials[providerID]
}

func (c *CredentialStore) Set(providerID string, apiKey string) error {
	c.credentials[providerID] = apiKey
	return nil
}

func (c *CredentialStore) Delete(providerID string) error {
	delete(c.credentials, providerID)
	return nil
}

func serverCredKey(serverID, key string) string {
	return fmt.Sprintf("server_%s_%s", serverID, key)
}

// GetServer retrieves one tool-server secret.
func (c *CredentialStore) GetServer(serverID, key string) string {
	return c.credentials[serverCredKey(serverID, key)]
}

// SetServer stores one tool-server secret.
func (c *CredentialStore) SetServer(serverID, key, value string) error {
	c.credentials[serverCredKey(serverID, key)] = value
	return nil
}

// DeleteServerAll removes every secret belonging to a tool server.
func (c *CredentialStore) DeleteServerAll(serverID string) error {
	prefix := fmt.Sprintf("server_%s_", serverID)
	for key := range c.credentials {
		if strings.HasPrefix(key, prefix) {
			delete(c.credentials, key)
		}
	}
	return nil
}

// GetEncryptionManager exposes the manager so the OAuth token store
// can share the same encryption key.
func (c *CredentialStore) GetEncryptionManager() *EncryptionManager {
	return c.encManager
}

func (c *CredentialStore) GetMethod() SecurityMethod {
	return c.method
}

// ensureEncryption (re)builds the encryption manager. It runs again
// whenever a passphrase was supplied after the first attempt failed on
// a protected key.
func (c *CredentialStore) ensureEncryption() error {
	if c.encManager != nil && c.passphrase == "" {
		return nil
	}

	c.encManager = NewEncryptionManager(EncryptionSSHKey, c.sshKeyPath)
	c.encManager.SetPassphrase(c.passphrase)
	if err := c.encManager.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	return nil
}

// credentialsTOML is the on-disk shape of the plaintext store.
type credentialsTOML struct {
	Credentials map[string]string `toml:"credentials"`
}

func plainCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.toml")
}

func encryptedCredentialsPath(dataDir string) string {
	return filepath.Join(dataDir, "credentials.enc")
}

func loadPlainText(dataDir string) (map[string]string, error) {
	path := plainCredentialsPath(dataDir)
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	var cf credentialsTOML
	if _, err := toml.DecodeFile(path, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	if cf.Credentials == nil {
		cf.Credentials = make(map[string]string)
	}
	return cf.Credentials, nil
}

func savePlainText(dataDir string, creds map[string]string) error {
	f, err := os.OpenFile(plainCredentialsPath(dataDir), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(credentialsTOML{Credentials: creds}); err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) loadEncrypted(dataDir string) (map[string]string, error) {
	path := encryptedCredentialsPath(dataDir)
	if !FileExists(path) {
		return make(map[string]string), nil
	}

	if err := c.ensureEncryption(); err != nil {
		return nil, err
	}

	ciphertext, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted credentials: %w", err)
	}

	plaintext, err := c.encManager.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds map[string]string
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	return creds, nil
}

func (c *CredentialStore) saveEncrypted(dataDir string) error {
	if err := c.ensureEncryption(); err != nil {
		return err
	}

	plaintext, err := json.MarshalIndent(c.credentials, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	ciphertext, err := c.encManager.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}

	if err := os.WriteFile(encryptedCredentialsPath(dataDir), ciphertext, 0600); err != nil {
		return fmt.Errorf("failed to write encrypted credentials: %w", err)
	}
	return nil
}
