package message

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

const (
	// IdentitySize is the length of a peer identity (a 32-byte node id).
	IdentitySize = 32
	// SignalNonceSize is the length of the nonce binding signals to one session.
	SignalNonceSize = 16
)

// Identity is a peer's public identity. Its text form is standard base64.
type Identity [IdentitySize]byte

// ParseIdentity decodes the base64 text form of an identity.
func ParseIdentity(s string) (Identity, error) {
	var id Identity
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return id, errors.Wrap(err, "invalid identity encoding")
	}
	if len(b) != IdentitySize {
		return id, errors.Errorf("invalid identity length %d, want %d", len(b), IdentitySize)
	}
	copy(id[:], b)
	return id, nil
}

func (id Identity) String() string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// Short returns the first 8 characters of the text form, used in log labels.
func (id Identity) Short() string {
	return id.String()[:8]
}

// IsZero reports whether id is the all-zero identity.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// SignalNonce ties the Signal messages of one signaling session together.
type SignalNonce [SignalNonceSize]byte

func (n SignalNonce) String() string {
	return base64.StdEncoding.EncodeToString(n[:])
}
