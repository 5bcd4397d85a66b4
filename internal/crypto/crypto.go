// Package crypto encrypts backup artifacts at rest with AES-256-GCM.
//
// The on-disk format is a fixed header (magic, format version, PBKDF2 salt,
// base nonce) followed by length-prefixed sealed frames. Each frame seals one
// plaintext chunk under a nonce derived from the base nonce and the frame
// counter, so frames cannot be reordered or truncated without detection.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size of the salt for key derivation.
	SaltSize = 32
	// KeySize is the size of the AES key (256 bits).
	KeySize = 32
	// NonceSize is the size of the GCM nonce.
	NonceSize = 12
	// Iterations for PBKDF2.
	Iterations = 100000

	// chunkSize is the plaintext frame size.
	chunkSize = 64 * 1024

	magic   = "LVLT-ENC"
	version = 1
)

// ErrNotEncrypted is returned when a file does not carry the encryption header.
var ErrNotEncrypted = errors.New("file is not an encrypted litevault artifact")

// ErrDecrypt is returned when a frame fails authentication, which almost
// always means a wrong password or a tampered artifact.
var ErrDecrypt = errors.New("decryption failed: wrong password or corrupted data")

// DeriveKey derives an encryption key from a password using PBKDF2.
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, Iterations, KeySize, sha256.New)
}

// frameNonce folds the frame counter into the base nonce so every frame is
// sealed under a unique nonce.
func frameNonce(base []byte, counter uint64) []byte {
	nonce := make([]byte, len(base))
	copy(nonce, base)
	for i := 0; i < 8 && i < len(nonce); i++ {
		nonce[len(nonce)-1-i] ^= byte(counter >> (8 * i))
	}
	return nonce
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(DeriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptFile encrypts srcPath into dstPath with the given password.
func EncryptFile(srcPath, dstPath, password string) error {
	src, err := os.Open(srcPath) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(dstPath) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer func() { _ = dst.Close() }()

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	baseNonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, baseNonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	gcm, err := newAEAD(password, salt)
	if err != nil {
		return err
	}

	// Header: magic, version, salt, base nonce.
	for _, part := range [][]byte{[]byte(magic), {version}, salt, baseNonce} {
		if _, err := dst.Write(part); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	buf := make([]byte, chunkSize)
	lenPrefix := make([]byte, 4)
	var counter uint64
	for {
		n, readErr := io.ReadFull(src, buf)
		if readErr != nil && readErr != io.EOF && readErr != io.ErrUnexpectedEOF {
			return fmt.Errorf("failed to read source: %w", readErr)
		}
		if n > 0 {
			sealed := gcm.Seal(nil, frameNonce(baseNonce, counter), buf[:n], nil)
			counter++

			binary.BigEndian.PutUint32(lenPrefix, uint32(len(sealed)))
			if _, err := dst.Write(lenPrefix); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
			if _, err := dst.Write(sealed); err != nil {
				return fmt.Errorf("failed to write frame: %w", err)
			}
		}
		if readErr != nil {
			break
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync destination: %w", err)
	}
	return nil
}

// DecryptFile decrypts srcPath into dstPath with the given password.
func DecryptFile(srcPath, dstPath, password string) error {
	src, err := os.Open(srcPath) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() { _ = src.Close() }()

	header := make([]byte, len(magic)+1+SaltSize+NonceSize)
	if _, err := io.ReadFull(src, header); err != nil {
		return ErrNotEncrypted
	}
	if string(header[:len(magic)]) != magic {
		return ErrNotEncrypted
	}
	if header[len(magic)] != version {
		return fmt.Errorf("unsupported encryption version: %d", header[len(magic)])
	}
	salt := header[len(magic)+1 : len(magic)+1+SaltSize]
	baseNonce := header[len(magic)+1+SaltSize:]

	gcm, err := newAEAD(password, salt)
	if err != nil {
		return err
	}

	dst, err := os.Create(dstPath) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	defer func() { _ = dst.Close() }()

	lenPrefix := make([]byte, 4)
	var counter uint64
	for {
		if _, err := io.ReadFull(src, lenPrefix); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read frame length: %w", err)
		}

		frameLen := binary.BigEndian.Uint32(lenPrefix)
		if frameLen == 0 || frameLen > uint32(chunkSize+gcm.Overhead()) {
			return ErrDecrypt
		}

		sealed := make([]byte, frameLen)
		if _, err := io.ReadFull(src, sealed); err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		plain, err := gcm.Open(nil, frameNonce(baseNonce, counter), sealed, nil)
		if err != nil {
			return ErrDecrypt
		}
		counter++

		if _, err := dst.Write(plain); err != nil {
			return fmt.Errorf("failed to write destination: %w", err)
		}
	}

	if err := dst.Sync(); err != nil {
		return fmt.Errorf("failed to sync destination: %w", err)
	}
	return nil
}

// IsEncryptedFile reports whether the file at path carries the encryption
// header.
func IsEncryptedFile(path string) bool {
	f, err := os.Open(path) // #nosec G304 - controlled backup artifact path
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return string(head) == magic
}
