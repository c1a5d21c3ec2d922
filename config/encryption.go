package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/ssh"
)

// EncryptionMethod selects how persisted data is protected at rest.
type EncryptionMethod string

const (
	EncryptionNone   EncryptionMethod = "none"
	EncryptionSSHKey EncryptionMethod = "ssh_key"
)

// keyDerivationMessage is signed with the user's SSH key to derive the AES
// key. Changing it invalidates every encrypted file on disk.
const keyDerivationMessage = "agentloop-encryption-key-derivation-v1"

// EncryptionManager encrypts arbitrary persisted blobs (credentials, OAuth
// tokens). With EncryptionNone it passes data through unchanged, so callers
// never need to branch on the method.
type EncryptionManager struct {
	method     EncryptionMethod
	sshKeyPath string
	passphrase string
	signer     ssh.Signer
	aesKey     []byte
}

func NewEncryptionManager(method EncryptionMethod, sshKeyPath string) *EncryptionManager {
	return &EncryptionManager{method: method, sshKeyPath: sshKeyPath}
}

// SetPassphrase supplies the passphrase for an encrypted SSH key. Must be
// called before Initialize when the key needs one.
func (e *EncryptionManager) SetPassphrase(passphrase string) {
	e.passphrase = passphrase
}

// Initialize loads the SSH key and derives the AES key. A no-op for
// EncryptionNone.
func (e *EncryptionManager) Initialize() error {
	switch e.method {
	case EncryptionNone:
		return nil
	case EncryptionSSHKey:
		return e.initSSHKey()
	default:
		return fmt.Errorf("unknown encryption method: %s", e.method)
	}
}

func (e *EncryptionManager) initSSHKey() error {
	encrypted, err := IsSSHKeyEncrypted(e.sshKeyPath)
	if err != nil {
		return fmt.Errorf("failed to check SSH key: %w", err)
	}

	if Debug && DebugLog != nil {
		DebugLog.Printf("[EncryptionManager] init: key=%s encrypted=%v", e.sshKeyPath, encrypted)
	}

	if encrypted && e.passphrase == "" {
		return fmt.Errorf("SSH key is encrypted - passphrase required")
	}

	var signer ssh.Signer
	if encrypted {
		signer, err = LoadSSHPrivateKeyWithPassphrase(e.sshKeyPath, e.passphrase)
	} else {
		signer, err = LoadSSHPrivateKey(e.sshKeyPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load SSH key: %w", err)
	}
	e.signer = signer

	// Signing a fixed message gives a deterministic signature, so the same
	// key always derives the same AES key.
	sig, err := signer.Sign(rand.Reader, []byte(keyDerivationMessage))
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	sum := sha256.Sum256(sig.Blob)
	e.aesKey = sum[:]
	return nil
}

// Encrypt seals plaintext with AES-256-GCM, or returns it unchanged under
// EncryptionNone.
func (e *EncryptionManager) Encrypt(plaintext []byte) ([]byte, error) {
	if e.method == EncryptionNone {
		return plaintext, nil
	}
	if e.aesKey == nil {
		return nil, fmt.Errorf("encryption manager not initialized")
	}
	return sealGCM(plaintext, e.aesKey)
}

// Decrypt reverses Encrypt.
func (e *EncryptionManager) Decrypt(ciphertext []byte) ([]byte, error) {
	if e.method == EncryptionNone {
		return ciphertext, nil
	}
	if e.aesKey == nil {
		return nil, fmt.Errorf("encryption manager not initialized")
	}
	return openGCM(ciphertext, e.aesKey)
}

// GetMethod reports the configured encryption method.
func (e *EncryptionManager) GetMethod() EncryptionMethod {
	return e.method
}

// Wire format: nonce || ciphertext+tag.

func sealGCM(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func openGCM(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
