package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authstore/internal/common"
	"github.com/dmitrijs2005/authstore/internal/docstore"
	"github.com/dmitrijs2005/authstore/internal/logging"
)

// casRetries bounds the read-modify-write loop. Each retry means another
// writer won the conditional write in between; after this many losses the
// contention is surfaced instead of spinning.
const casRetries = 4

// tokenGenRetries bounds recovery-token regeneration on index collision.
const tokenGenRetries = 3

// Seams for tests.
var (
	timeNow = time.Now

	newRecoveryToken = func() (string, error) {
		s, err := common.MakeRandHexString(16)
		if err != nil {
			return "", err
		}
		return "rt-" + s, nil
	}
)

// Store exposes the account store contract over a generic document store.
// It is stateless between calls and safe for concurrent use; single-record
// atomicity comes from the backend's conditional writes, nothing more.
type Store struct {
	docs   docstore.Store
	logger logging.Logger
}

// NewStore constructs a Store over the given document store.
func NewStore(docs docstore.Store, logger logging.Logger) *Store {
	return &Store{
		docs:   docs,
		logger: logger.With("module", "accounts"),
	}
}

// load fetches and validates one account, returning the document version
// for subsequent conditional writes. The key/username cross-check guards
// against a backend that files a document under the wrong key.
func (s *Store) load(ctx context.Context, username string) (*Account, int64, error) {
	doc, err := s.docs.GetByKey(ctx, Kind, username)
	if err != nil {
		return nil, 0, err
	}
	account, err := decodeAccount(doc.Data)
	if err != nil {
		return nil, 0, err
	}
	if account.Username != username {
		return nil, 0, fmt.Errorf("%w: document for key %q holds account %q",
			common.ErrConsistencyViolation, username, account.Username)
	}
	return account, doc.Version, nil
}

// Get resolves a username to its account record. Absent usernames yield
// common.ErrNotFound; callers on boolean/optional read paths are expected
// to absorb it.
func (s *Store) Get(ctx context.Context, username string) (*Account, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	}
	account, _, err := s.load(ctx, username)
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UserExists reports whether the username has a record.
func (s *Store) UserExists(ctx context.Context, username string) (bool, error) {
	_, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsEnabled reports whether the account exists and is active. An absent
// username is not an error, just false.
func (s *Store) IsEnabled(ctx context.Context, username string) (bool, error) {
	account, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.IsActive, nil
}

// GetEncodedPassword returns the stored opaque credential, or an empty
// string when the account does not exist.
func (s *Store) GetEncodedPassword(ctx context.Context, username string) (string, error) {
	account, err := s.Get(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return account.EncodedPassword, nil
}

// GetPasswordLastChangeDate returns when the password was last set.
func (s *Store) GetPasswordLastChangeDate(ctx context.Context, username string) (time.Time, error) {
	account, err := s.Get(ctx, username)
	if err != nil {
		return time.Time{}, err
	}
	return account.PasswordLastChangeDate, nil
}

// errNoChange is returned by a mutation callback to report that the record
// is already in the desired state, skipping the write entirely.
var errNoChange = errors.New("no change")

// update runs one read-modify-write cycle with a bounded retry loop on
// version conflicts. The mutation callback receives a fresh copy each
// attempt and must set every field it wants persisted; the whole record is
// written back in a single conditional Put.
func (s *Store) update(ctx context.Context, username string, mutate func(*Account) error) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	}

	for i := 0; i < casRetries; i++ {
		account, version, err := s.load(ctx, username)
		if err != nil {
			return err
		}

		if err := mutate(account); err != nil {
			if errors.Is(err, errNoChange) {
				return nil
			}
			return err
		}
		if err := account.validate(); err != nil {
			return err
		}

		data, err := encodeAccount(account)
		if err != nil {
			return err
		}

		_, err = s.docs.Put(ctx, Kind, username, data, version)
		if err == nil {
			return nil
		}
		if errors.Is(err, common.ErrVersionConflict) {
			continue
		}
		return err
	}

	return fmt.Errorf("%w: update of %q lost %d consecutive conditional writes",
		common.ErrVersionConflict, username, casRetries)
}

// SetEnabled marks the account active.
func (s *Store) SetEnabled(ctx context.Context, username string) error {
	return s.setEnabledFlag(ctx, username, true)
}

// SetDisabled marks the account inactive.
func (s *Store) SetDisabled(ctx context.Context, username string) error {
	return s.setEnabledFlag(ctx, username, false)
}

func (s *Store) setEnabledFlag(ctx context.Context, username string, enabled bool) error {
	return s.update(ctx, username, func(a *Account) error {
		if a.IsActive == enabled {
			return errNoChange
		}
		a.IsActive = enabled
		return nil
	})
}

// DecrementAttemptsLeft subtracts one from the login attempt counter,
// flooring at zero. A counter already at zero is left untouched.
func (s *Store) DecrementAttemptsLeft(ctx context.Context, username string) error {
	return s.update(ctx, username, func(a *Account) error {
		if a.LoginAttemptsLeft == 0 {
			return errNoChange
		}
		a.LoginAttemptsLeft--
		return nil
	})
}

// SetAttemptsLeft sets the login attempt counter to an explicit value.
func (s *Store) SetAttemptsLeft(ctx context.Context, username string, attempts int) error {
	if attempts < 0 {
		return fmt.Errorf("%w: negative login attempts: %d", common.ErrInvalidArgument, attempts)
	}
	return s.update(ctx, username, func(a *Account) error {
		a.LoginAttemptsLeft = attempts
		return nil
	})
}

// SetPassword replaces the stored credential, stamps the change date, and
// invalidates any outstanding recovery token. A password change and the
// token clear always land in the same write.
func (s *Store) SetPassword(ctx context.Context, username, newPassword string) error {
	return s.update(ctx, username, func(a *Account) error {
		a.EncodedPassword = newPassword
		a.PasswordLastChangeDate = timeNow().UTC()
		a.RecoveryToken = ""
		a.RecoveryTokenDate = nil
		return nil
	})
}

// SetAuthority adds an authority to the account's set. Adding an authority
// the account already holds is a no-op.
func (s *Store) SetAuthority(ctx context.Context, username, authority string) error {
	if authority == "" {
		return fmt.Errorf("%w: empty authority", common.ErrInvalidArgument)
	}
	return s.update(ctx, username, func(a *Account) error {
		if a.HasAuthority(authority) {
			return errNoChange
		}
		a.Authorities = append(a.Authorities, authority)
		return nil
	})
}

// CreateUser persists a new account. The record starts disabled, with the
// candidate's attempt counter, a fresh password change date, and no
// recovery token. The backend's insert-if-absent primitive makes the
// existence check and the write one atomic step.
func (s *Store) CreateUser(ctx context.Context, candidate NewAccount) (*Account, error) {
	if err := candidate.validate(); err != nil {
		return nil, err
	}

	account := &Account{
		Username:               candidate.Username,
		EncodedPassword:        candidate.EncodedPassword,
		IsActive:               false,
		LoginAttemptsLeft:      candidate.LoginAttemptsLeft,
		PasswordLastChangeDate: timeNow().UTC(),
		FirstName:              candidate.FirstName,
		LastName:               candidate.LastName,
		Authorities:            candidate.Authorities,
	}

	data, err := encodeAccount(account)
	if err != nil {
		return nil, err
	}

	if _, err := s.docs.Put(ctx, Kind, account.Username, data, 0); err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "account created", "username", account.Username)
	return account, nil
}

// DeleteUser removes the account record unconditionally.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	if username == "" {
		return fmt.Errorf("%w: empty username", common.ErrInvalidArgument)
	}
	if err := s.docs.Delete(ctx, Kind, username); err != nil {
		return err
	}
	s.logger.Debug(ctx, "account deleted", "username", username)
	return nil
}
