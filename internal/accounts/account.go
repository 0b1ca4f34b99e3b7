// Package accounts implements the authentication account store: the
// username-keyed records carrying credentials, lockout counters, the
// enable/disable flag, and the one-time recovery token used by password
// reset flows. All state lives in a docstore.Store collaborator; the
// package holds nothing in memory across calls.
package accounts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authstore/internal/common"
)

// Kind is the document kind under which accounts are stored.
const Kind = "authentication-account"

// recoveryTokenField is the document field queried by the secondary-index
// token lookup.
const recoveryTokenField = "recoveryToken"

// Account is the persisted authentication record. EncodedPassword is an
// opaque, already-hashed credential; the store never hashes or verifies.
// RecoveryToken and RecoveryTokenDate are either both present or both
// absent.
type Account struct {
	Username               string     `json:"username"`
	EncodedPassword        string     `json:"encodedPassword"`
	IsActive               bool       `json:"isActive"`
	LoginAttemptsLeft      int        `json:"loginAttemptsLeft"`
	PasswordLastChangeDate time.Time  `json:"passwordLastChangeDate"`
	FirstName              string     `json:"firstName,omitempty"`
	LastName               string     `json:"lastName,omitempty"`
	Authorities            []string   `json:"authorities,omitempty"`
	RecoveryToken          string     `json:"recoveryToken,omitempty"`
	RecoveryTokenDate      *time.Time `json:"recoveryTokenDate,omitempty"`
}

// HasAuthority reports whether the account's authority set contains a.
func (a *Account) HasAuthority(authority string) bool {
	for _, v := range a.Authorities {
		if v == authority {
			return true
		}
	}
	return false
}

// validate checks the structural invariants every stored account must hold.
// A violation on the read path means the backend holds corrupt data.
func (a *Account) validate() error {
	if a.Username == "" {
		return fmt.Errorf("%w: account without username", common.ErrConsistencyViolation)
	}
	if a.LoginAttemptsLeft < 0 {
		return fmt.Errorf("%w: negative login attempts for %q", common.ErrConsistencyViolation, a.Username)
	}
	if (a.RecoveryToken == "") != (a.RecoveryTokenDate == nil) {
		return fmt.Errorf("%w: recovery token and date must be set together for %q", common.ErrConsistencyViolation, a.Username)
	}
	return nil
}

// encodeAccount serializes the account to the document payload.
func encodeAccount(a *Account) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding account %q: %w", a.Username, err)
	}
	return data, nil
}

// decodeAccount deserializes and validates a stored document payload.
func decodeAccount(data []byte) (*Account, error) {
	a := &Account{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("%w: malformed account document: %v", common.ErrConsistencyViolation, err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// TokenLink is the outstanding recovery token pair returned by GetLink.
type TokenLink struct {
	Token string
	Date  time.Time
}

// NewAccount is the input for Store.CreateUser. IsActive always starts
// false and the password change date is stamped by the store; neither is
// caller-controlled.
type NewAccount struct {
	Username          string
	EncodedPassword   string
	LoginAttemptsLeft int
	FirstName         string
	LastName          string
	Authorities       []string
}

func (n *NewAccount) validate() error {
	if n.Username == "" {
		return fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	}
	if n.LoginAttemptsLeft < 0 {
		return fmt.Errorf("%w: negative login attempts", common.ErrInvalidArgument)
	}
	return nil
}
