package handle

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// LoadKey reads a PEM encoded RSA admin key, decrypting it with password
// when it is protected.
func LoadKey(path, password string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading admin key: %w", err)
	}
	return ParseKey(data, password)
}

// ParseKey decodes a PEM encoded RSA admin key.
func ParseKey(pemData []byte, password string) (*rsa.PrivateKey, error) {
	var (
		raw any
		err error
	)
	if password != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(pemData, []byte(password))
	} else {
		raw, err = ssh.ParseRawPrivateKey(pemData)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: key is encrypted and no password was given", ErrInvalidKey)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := raw.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an RSA key", ErrInvalidKey, raw)
	}
	return key, nil
}

// sign produces the HS_PUBKEY challenge answer: an RSA PKCS#1 v1.5
// signature of SHA-256(serverNonce || clientNonce).
func sign(key *rsa.PrivateKey, serverNonce, clientNonce []byte) ([]byte, error) {
	h := sha256.New()
	h.Write(serverNonce)
	h.Write(clientNonce)
	return rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, h.Sum(nil))
}
