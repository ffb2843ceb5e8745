package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/dgraph-io/badger/v4"
)

var (
	ErrDBConnection = errors.New("badger database connection error")
	ErrDBQuery      = errors.New("database query error")
	ErrCreate       = errors.New("create error")
)

const seqBandwidth = 128

type TelemetryRepository interface {
	Append(ctx context.Context, r fl.DataRecord) error
	List(ctx context.Context, offset, limit uint64) ([]fl.DataRecord, uint64, error)
}

type Database struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewDatabase(path string) (*Database, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBConnection, err)
	}

	seq, err := db.GetSequence([]byte("seq:"+recordPrefix), seqBandwidth)
	if err != nil {
		return nil, errors.Join(db.Close(), fmt.Errorf("%w: %w", ErrDBConnection, err))
	}

	return &Database{db: db, seq: seq}, nil
}

func (d *Database) Close() error {
	return errors.Join(d.seq.Release(), d.db.Close())
}

func (d *Database) nextSeq() (uint64, error) {
	return d.seq.Next()
}

func (d *Database) set(key, val []byte) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreate, err)
	}

	return nil
}

func (d *Database) listWithPrefix(ctx context.Context, prefix []byte, offset, limit uint64) ([][]byte, error) {
	var items [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = int(min(limit, 1000))
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var skipped, count uint64
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++

				continue
			}
			if count >= limit {
				break
			}

			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, val)
			count++
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return items, nil
}

func (d *Database) countWithPrefix(prefix []byte) (uint64, error) {
	var count uint64
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDBQuery, err)
	}

	return count, nil
}
