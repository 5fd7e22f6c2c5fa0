package db

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bmatsuo/lmdb-go/lmdb"
	"github.com/pkg/errors"
)

var ErrCardNotFound = errors.New("card not found")

// CardRecord is the stored form of a card in the library. Card holds the
// full v3 JSON untouched; PNG holds the original image bytes when the card
// came from one.
type CardRecord struct {
	ID        uint64          `json:"id"`
	Name      string          `json:"name"`
	Format    string          `json:"format"`
	Card      json.RawMessage `json:"card"`
	PNG       []byte          `json:"png,omitempty"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

func SaveCard(record *CardRecord) error {
	now := time.Now().UnixMilli()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	return Env.Update(func(txn *lmdb.Txn) error {
		cards, err := txn.OpenDBI(cardsDB, lmdb.Create)
		if err != nil {
			return fmt.Errorf("failed to open cards DB: %w", err)
		}

		nameIndex, err := txn.OpenDBI(nameIndexDB, lmdb.Create)
		if err != nil {
			return fmt.Errorf("failed to open name_index DB: %w", err)
		}

		recordBytes, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to serialize record: %w", err)
		}

		if err := txn.Put(cards, uint64ToByteArray(record.ID), recordBytes, 0); err != nil {
			return fmt.Errorf("failed to add record to cards DB: %w", err)
		}

		return addToNameIndex(txn, nameIndex, record.Name, record.ID)
	})
}

func GetCard(id uint64) (*CardRecord, error) {
	var record CardRecord

	err := Env.View(func(txn *lmdb.Txn) error {
		cards, err := txn.OpenDBI(cardsDB, 0)
		if err != nil {
			return fmt.Errorf("failed to open cards DB: %w", err)
		}

		data, err := txn.Get(cards, uint64ToByteArray(id))
		if err != nil {
			if lmdb.IsNotFound(err) {
				return ErrCardNotFound
			}
			return fmt.Errorf("failed to get record: %w", err)
		}

		return json.Unmarshal(data, &record)
	})

	if err != nil {
		return nil, err
	}

	return &record, nil
}

func ListCards() ([]*CardRecord, error) {
	var records []*CardRecord

	err := Env.View(func(txn *lmdb.Txn) error {
		cards, err := txn.OpenDBI(cardsDB, 0)
		if err != nil {
			if lmdb.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to open cards DB: %w", err)
		}

		cursor, err := txn.OpenCursor(cards)
		if err != nil {
			return fmt.Errorf("failed to open cursor: %w", err)
		}
		defer cursor.Close()

		for {
			_, data, err := cursor.Get(nil, nil, lmdb.Next)
			if lmdb.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("cursor scan failed: %w", err)
			}

			var record CardRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return fmt.Errorf("failed to deserialize record: %w", err)
			}

			records = append(records, &record)
		}
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

func FindCardsByName(name string) ([]*CardRecord, error) {
	var ids []uint64

	err := Env.View(func(txn *lmdb.Txn) error {
		nameIndex, err := txn.OpenDBI(nameIndexDB, 0)
		if err != nil {
			if lmdb.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to open name_index DB: %w", err)
		}

		indexData, err := txn.Get(nameIndex, []byte(indexKey(name)))
		if err != nil {
			if lmdb.IsNotFound(err) {
				return nil
			}
			return fmt.Errorf("failed to get name index: %w", err)
		}

		return json.Unmarshal(indexData, &ids)
	})

	if err != nil {
		return nil, err
	}

	records := make([]*CardRecord, 0, len(ids))
	for _, id := range ids {
		record, err := GetCard(id)
		if err != nil {
			if errors.Is(err, ErrCardNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, record)
	}

	return records, nil
}

func DeleteCard(id uint64) error {
	return Env.Update(func(txn *lmdb.Txn) error {
		cards, err := txn.OpenDBI(cardsDB, 0)
		if err != nil {
			return fmt.Errorf("failed to open cards DB: %w", err)
		}

		data, err := txn.Get(cards, uint64ToByteArray(id))
		if err != nil {
			if lmdb.IsNotFound(err) {
				return ErrCardNotFound
			}
			return fmt.Errorf("failed to get record: %w", err)
		}

		var record CardRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to deserialize record: %w", err)
		}

		if err := txn.Del(cards, uint64ToByteArray(id), nil); err != nil {
			return fmt.Errorf("failed to delete record from cards DB: %w", err)
		}

		nameIndex, err := txn.OpenDBI(nameIndexDB, 0)
		if err != nil {
			return fmt.Errorf("failed to open name_index DB: %w", err)
		}

		return removeFromNameIndex(txn, nameIndex, record.Name, id)
	})
}

func addToNameIndex(txn *lmdb.Txn, nameIndex lmdb.DBI, name string, id uint64) error {
	key := []byte(indexKey(name))

	indexData, err := txn.Get(nameIndex, key)
	if err != nil {
		if lmdb.IsNotFound(err) {
			indexData = []byte("[]")
		} else {
			return fmt.Errorf("failed to get name index: %w", err)
		}
	}

	var ids []uint64
	if err := json.Unmarshal(indexData, &ids); err != nil {
		return fmt.Errorf("failed to deserialize name index: %w", err)
	}

	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}

	ids = append(ids, id)
	indexBytes, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to serialize updated name index: %w", err)
	}

	if err := txn.Put(nameIndex, key, indexBytes, 0); err != nil {
		return fmt.Errorf("failed to update name index: %w", err)
	}

	return nil
}

func removeFromNameIndex(txn *lmdb.Txn, nameIndex lmdb.DBI, name string, id uint64) error {
	key := []byte(indexKey(name))

	indexData, err := txn.Get(nameIndex, key)
	if err != nil {
		if lmdb.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to get name index: %w", err)
	}

	var ids []uint64
	if err := json.Unmarshal(indexData, &ids); err != nil {
		return fmt.Errorf("failed to deserialize name index: %w", err)
	}

	kept := ids[:0]
	for _, existing := range ids {
		if existing != id {
			kept = append(kept, existing)
		}
	}

	if len(kept) == 0 {
		if err := txn.Del(nameIndex, key, nil); err != nil && !lmdb.IsNotFound(err) {
			return fmt.Errorf("failed to delete name index: %w", err)
		}
		return nil
	}

	indexBytes, err := json.Marshal(kept)
	if err != nil {
		return fmt.Errorf("failed to serialize updated name index: %w", err)
	}

	if err := txn.Put(nameIndex, key, indexBytes, 0); err != nil {
		return fmt.Errorf("failed to update name index: %w", err)
	}

	return nil
}

func indexKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func uint64ToByteArray(id uint64) []byte {
	buffer := make([]byte, 8)
	binary.BigEndian.PutUint64(buffer, id)
	return buffer
}
