//go:generate go run go.uber.org/mock/mockgen -source=credential.go -destination=../mocks/mock_credential_store.go -package=mocks
package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"aethermeet/errors"
)

type ICredentialStore interface {
	StoreSecret(code string, secret RoomSecret) error
	GetSecret(code string) (RoomSecret, error)
	DeleteSecret(code string) error
}

// RoomSecret holds the Argon2id hashes protecting a room. Secondary is the
// optional moderator passphrase; when nil the room has a single passphrase.
type RoomSecret struct {
	Primary   string
	Secondary *string
}

type CredentialStore struct {
	db *badger.DB
}

func NewCredentialStore(db *badger.DB) CredentialStore {
	return CredentialStore{db: db}
}

func secretKey(code string) []byte {
	return []byte("secret:" + code)
}

func (c CredentialStore) StoreSecret(code string, secret RoomSecret) error {
	data, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("marshal secret for room %s: %w", code, err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(secretKey(code), data)
	})
}

func (c CredentialStore) GetSecret(code string) (RoomSecret, error) {
	var secret RoomSecret
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(secretKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &secret)
		})
	})
	if goerrors.Is(err, badger.ErrKeyNotFound) {
		return RoomSecret{}, errors.ErrNotFound
	}
	return secret, err
}

func (c CredentialStore) DeleteSecret(code string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(secretKey(code))
	})
}
