// Package cryptox provides the caller-side password encoding used by the
// admin CLI. The account store itself treats credentials as opaque strings;
// encoding happens before anything reaches it.
package cryptox

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/authstore/internal/common"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16

	encodingPrefix = "argon2id"
)

func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// EncodePassword derives an argon2id hash from the password with a fresh
// random salt and returns it in the "argon2id$<salt>$<key>" form stored as
// the account's encoded password.
func EncodePassword(password []byte) (string, error) {
	if len(password) == 0 {
		return "", fmt.Errorf("%w: empty password", common.ErrInvalidArgument)
	}

	salt := common.GenerateRandByteArray(saltLen)
	key := deriveKey(password, salt)

	return encodingPrefix + "$" + hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

// VerifyPassword re-derives the key from candidate using the encoded salt
// and compares in constant time.
func VerifyPassword(encoded string, candidate []byte) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != encodingPrefix {
		return false, fmt.Errorf("%w: unrecognized password encoding", common.ErrInvalidArgument)
	}

	salt, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: malformed salt", common.ErrInvalidArgument)
	}
	key, err := hex.DecodeString(parts[2])
	if err != nil {
		return false, fmt.Errorf("%w: malformed key", common.ErrInvalidArgument)
	}

	derived := deriveKey(candidate, salt)
	return subtle.ConstantTimeCompare(derived, key) == 1, nil
}
