package db

import (
	"fmt"
	"log"

	"github.com/bmatsuo/lmdb-go/lmdb"

	"cardforge/modules/env"
)

var Env *lmdb.Env

const (
	cardsDB     = "cards"
	nameIndexDB = "name_index"
)

func Init() {
	var err error
	Env, err = lmdb.NewEnv()
	if err != nil {
		log.Fatal("failed to create LMDB Environment:", err)
	}

	err = Env.SetMaxReaders(1024 * 32)
	if err != nil {
		log.Fatal("failed to set max readers:", err)
	}

	err = Env.SetMaxDBs(64)
	if err != nil {
		log.Fatal("failed to set max DBs:", err)
	}

	err = Env.SetMapSize(1 << 30) // 1GB, cards carry embedded PNGs
	if err != nil {
		log.Fatal("failed to set map size:", err)
	}

	lmdbPath := env.GetEnv("LMDB_PATH", "./cardforge.lmdb")
	err = Env.Open(lmdbPath, lmdb.Create|lmdb.NoSubdir, 0644)
	if err != nil {
		log.Fatal("failed to open LMDB Environment:", err)
	}

	err = Env.Update(func(txn *lmdb.Txn) error {
		_, err := txn.OpenDBI(cardsDB, lmdb.Create)
		if err != nil {
			return fmt.Errorf("failed to create/open cards DB: %w", err)
		}

		_, err = txn.OpenDBI(nameIndexDB, lmdb.Create)
		if err != nil {
			return fmt.Errorf("failed to create/open name_index DB: %w", err)
		}

		return nil
	})

	if err != nil {
		log.Fatal("transaction failed:", err)
	}
}
