// Package identity manages the long-lived pseudonymous client identity used
// to authenticate this installation (not a user account) to the server.
package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/decred/slog"
	"github.com/socialvoid/svclient/internal/jsonfile"
	"github.com/socialvoid/svclient/internal/version"
)

const (
	// DefaultName is the client name reported when none is provided.
	DefaultName = "Socialvoid Go"

	// secretLen is the number of alphanumeric characters in each random
	// secret that gets hashed into the public and private hashes.
	secretLen = 32

	alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	prng = rand.Reader

	// ErrNotFound is returned by Load when the identity file does not
	// exist.
	ErrNotFound = jsonfile.ErrNotFound

	// ErrCorrupt is returned by Load when the identity file cannot be
	// decoded or is missing required fields.
	ErrCorrupt = jsonfile.ErrCorrupt
)

// ClientIdentity identifies a client installation. PublicHash and
// PrivateHash are SHA-256 digests of independently generated secrets.
// PrivateHash is a long-term secret shared with the server when a session is
// created. It must never be logged and no other request carries it: they send
// proofs derived from it instead.
//
// A ClientIdentity is immutable once created.
type ClientIdentity struct {
	PublicHash  string `json:"public_hash"`
	PrivateHash string `json:"private_hash"`
	Name        string `json:"name"`
	Platform    string `json:"platform"`
	Version     string `json:"version"`
}

// String returns the public hash. It is what gets printed when an identity
// is passed to a logger, which keeps the private hash out of logs.
func (id ClientIdentity) String() string {
	return id.PublicHash
}

// GoString also hides the private hash from %#v formatting.
func (id ClientIdentity) GoString() string {
	return fmt.Sprintf("identity.ClientIdentity{PublicHash:%q, Name:%q, Platform:%q, Version:%q}",
		id.PublicHash, id.Name, id.Platform, id.Version)
}

func (id *ClientIdentity) validate() error {
	if len(id.PublicHash) != sha256.Size*2 {
		return fmt.Errorf("%w: invalid public hash length %d", ErrCorrupt,
			len(id.PublicHash))
	}
	if len(id.PrivateHash) != sha256.Size*2 {
		return fmt.Errorf("%w: invalid private hash length %d", ErrCorrupt,
			len(id.PrivateHash))
	}
	if _, err := hex.DecodeString(id.PublicHash); err != nil {
		return fmt.Errorf("%w: public hash is not hex", ErrCorrupt)
	}
	if _, err := hex.DecodeString(id.PrivateHash); err != nil {
		return fmt.Errorf("%w: private hash is not hex", ErrCorrupt)
	}
	return nil
}

// randomSecret returns n alphanumeric characters read from r. Rejection
// sampling keeps the distribution uniform over the alphabet.
func randomSecret(r io.Reader, n int) (string, error) {
	const maxByte = 256 - (256 % len(alphanumeric))
	res := make([]byte, 0, n)
	var buf [64]byte
	for len(res) < n {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= maxByte {
				continue
			}
			res = append(res, alphanumeric[int(b)%len(alphanumeric)])
			if len(res) == n {
				break
			}
		}
	}
	return string(res), nil
}

func randomHash(r io.Reader) (string, error) {
	secret, err := randomSecret(r, secretLen)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(digest[:]), nil
}

// GenerateWithRNG generates a new identity reading its entropy from r.
func GenerateWithRNG(name string, r io.Reader) (*ClientIdentity, error) {
	pub, err := randomHash(r)
	if err != nil {
		return nil, fmt.Errorf("unable to generate public hash: %w", err)
	}
	priv, err := randomHash(r)
	if err != nil {
		return nil, fmt.Errorf("unable to generate private hash: %w", err)
	}
	if name == "" {
		name = DefaultName
	}
	return &ClientIdentity{
		PublicHash:  pub,
		PrivateHash: priv,
		Name:        name,
		Platform:    runtime.GOOS,
		Version:     version.String(),
	}, nil
}

// Generate generates a new identity using crypto/rand. It panics if the
// system's random source fails.
func Generate(name string) *ClientIdentity {
	id, err := GenerateWithRNG(name, prng)
	if err != nil {
		panic(err)
	}
	return id
}

// Save writes the identity to fname. The file is created with owner-only
// permissions.
func (id *ClientIdentity) Save(fname string, log slog.Logger) error {
	return jsonfile.Write(fname, id, log)
}

// Load reads an identity previously written with Save. It returns an error
// wrapping ErrNotFound if the file does not exist and one wrapping
// ErrCorrupt if its contents are malformed.
func Load(fname string) (*ClientIdentity, error) {
	id := new(ClientIdentity)
	if err := jsonfile.Read(fname, id); err != nil {
		if errors.Is(err, jsonfile.ErrNotFound) {
			return nil, fmt.Errorf("identity file %s: %w", fname, err)
		}
		return nil, err
	}
	if err := id.validate(); err != nil {
		return nil, err
	}
	return id, nil
}

// LoadOrGenerate loads the identity stored in fname, generating and saving a
// new one when the file does not exist yet.
func LoadOrGenerate(fname, name string, log slog.Logger) (*ClientIdentity, bool, error) {
	id, err := Load(fname)
	if err == nil {
		return id, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	id, err = GenerateWithRNG(name, prng)
	if err != nil {
		return nil, false, err
	}
	if err := id.Save(fname, log); err != nil {
		return nil, false, fmt.Errorf("unable to save new identity: %w", err)
	}
	return id, true, nil
}
