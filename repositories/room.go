package repositories

import (
	"encoding/json"
	goerrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"aethermeet/contract"
	"aethermeet/domain"
	"aethermeet/errors"
)

var _ contract.RoomRepository = RoomRepository{}

// RoomRepository persists full room snapshots in BadgerDB under
// "room:{code}". The actor overwrites the whole snapshot after every
// committed operation, so a load always observes a consistent room.
type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

func roomKey(code string) []byte {
	return []byte("room:" + code)
}

func (r RoomRepository) SaveRoom(room *domain.Room) error {
	data, err := json.Marshal(room.Snapshot())
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", room.Code, err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(roomKey(room.Code), data)
	})
}

func (r RoomRepository) LoadRoom(code string) (*domain.Room, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(code))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		if goerrors.Is(err, badger.ErrKeyNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}

	var snapshot domain.RoomSnapshot
	if err = json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", code, err)
	}
	return domain.FromSnapshot(snapshot), nil
}

// Codes lists every persisted room code via a key-only prefix scan.
func (r RoomRepository) Codes() ([]string, error) {
	var codes []string
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte("room:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			codes = append(codes, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return codes, err
}
