package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	transport "github.com/mark3labs/mcp-go/client/transport"
)

// FileTokenStore persists OAuth tokens for a single server under the data
// directory, encrypted when the credential store is. It satisfies the
// transport TokenStore interface.
type FileTokenStore struct {
	serverID string
	dataDir  string
	security SecurityMethod
	encMgr   *EncryptionManager
	mu       sync.RWMutex
}

func NewFileTokenStore(serverID, dataDir string, security SecurityMethod, encMgr *EncryptionManager) *FileTokenStore {
	return &FileTokenStore{
		serverID: serverID,
		dataDir:  dataDir,
		security: security,
		encMgr:   encMgr,
	}
}

// GetToken loads the stored token, returning transport.ErrNoToken when none
// has been saved yet.
func (s *FileTokenStore) GetToken(ctx context.Context) (*transport.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.tokenPath()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, transport.ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	data, err = s.decode(data)
	if err != nil {
		return nil, err
	}

	var token transport.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}
	return &token, nil
}

// SaveToken writes the token to disk, creating the data directory if needed.
func (s *FileTokenStore) SaveToken(ctx context.Context, token *transport.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	data, err = s.encode(data)
	if err != nil {
		return err
	}

	path := s.tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func (s *FileTokenStore) encode(data []byte) ([]byte, error) {
	switch s.security {
	case SecurityPlainText:
		return data, nil
	case SecuritySSHKey:
		if s.encMgr == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		encrypted, err := s.encMgr.Encrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt token: %w", err)
		}
		return encrypted, nil
	default:
		return nil, fmt.Errorf("unknown security method: %s", s.security)
	}
}

func (s *FileTokenStore) decode(data []byte) ([]byte, error) {
	switch s.security {
	case SecurityPlainText:
		return data, nil
	case SecuritySSHKey:
		if s.encMgr == nil {
			return nil, fmt.Errorf("encryption manager not initialized")
		}
		decrypted, err := s.encMgr.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		return decrypted, nil
	default:
		return nil, fmt.Errorf("unknown security method: %s", s.security)
	}
}

// tokenPath varies the extension so an encrypted blob is never mistaken for
// JSON.
func (s *FileTokenStore) tokenPath() string {
	if s.security == SecuritySSHKey {
		return filepath.Join(s.dataDir, fmt.Sprintf("oauth_token_%s.enc", s.serverID))
	}
	return filepath.Join(s.dataDir, fmt.Sprintf("oauth_token_%s.json", s.serverID))
}
