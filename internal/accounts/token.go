package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authstore/internal/common"
)

// AddLink issues a fresh recovery token for the account and returns it.
// Tokens are store-generated, never caller-supplied: that is the only way
// global uniqueness can actually be guaranteed. The generated value is
// checked against the token index before commit and regenerated on the
// (practically impossible) collision. Any prior outstanding token for the
// account is overwritten.
func (s *Store) AddLink(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	}

	var token string
	for i := 0; i < tokenGenRetries; i++ {
		candidate, err := newRecoveryToken()
		if err != nil {
			return "", fmt.Errorf("generating recovery token: %w", err)
		}

		holders, err := s.docs.QueryByField(ctx, Kind, recoveryTokenField, candidate)
		if err != nil {
			return "", err
		}
		if len(holders) == 0 {
			token = candidate
			break
		}
	}
	if token == "" {
		return "", fmt.Errorf("%w: could not generate a unique recovery token", common.ErrConsistencyViolation)
	}

	err := s.update(ctx, username, func(a *Account) error {
		date := timeNow().UTC()
		a.RecoveryToken = token
		a.RecoveryTokenDate = &date
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug(ctx, "recovery token issued", "username", username)
	return token, nil
}

// RemoveLink clears the account's outstanding recovery token. It reports
// whether a token was actually removed; calling it with no token
// outstanding succeeds as a no-op.
func (s *Store) RemoveLink(ctx context.Context, username string) (bool, error) {
	removed := false
	err := s.update(ctx, username, func(a *Account) error {
		if a.RecoveryToken == "" {
			return errNoChange
		}
		a.RecoveryToken = ""
		a.RecoveryTokenDate = nil
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// GetLink returns the outstanding recovery token pair, or nil when no
// token is outstanding. An absent account is absorbed to nil as well,
// matching the other optional read paths.
func (s *Store) GetLink(ctx context.Context, username string) (*TokenLink, error) {
	account, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if account.RecoveryToken == "" {
		return nil, nil
	}
	return &TokenLink{Token: account.RecoveryToken, Date: *account.RecoveryTokenDate}, nil
}

// ResolveUsernameByToken finds the single account holding the given live
// token. Zero matches yield common.ErrTokenNotFound. More than one match
// means the uniqueness invariant is broken, and the lookup fails with
// common.ErrConsistencyViolation rather than picking a record: returning
// an arbitrary holder would let a stale or colliding token authenticate
// the wrong account.
func (s *Store) ResolveUsernameByToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty token", common.ErrInvalidArgument)
	}

	holders, err := s.docs.QueryByField(ctx, Kind, recoveryTokenField, token)
	if err != nil {
		return "", err
	}

	switch len(holders) {
	case 0:
		return "", common.ErrTokenNotFound
	case 1:
		account, err := decodeAccount(holders[0].Data)
		if err != nil {
			return "", err
		}
		if account.Username != holders[0].Key {
			return "", fmt.Errorf("%w: document for key %q holds account %q",
				common.ErrConsistencyViolation, holders[0].Key, account.Username)
		}
		return account.Username, nil
	default:
		return "", fmt.Errorf("%w: token held by %d accounts", common.ErrConsistencyViolation, len(holders))
	}
}
