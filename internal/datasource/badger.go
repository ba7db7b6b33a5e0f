package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/hanpama/classgraph/internal/classinfo"
)

const prefixInstance = "i:"

// Badger persists records in a badger database, keyed by class and id.
type Badger struct {
	db  *badger.DB
	u   *classinfo.Universe
	log *slog.Logger
}

// OpenBadger opens the database at path. An empty path keeps everything in
// memory.
func OpenBadger(path string, u *classinfo.Universe, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &Badger{db: db, u: u, log: logger}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func instanceKey(class, id string) []byte {
	return []byte(prefixInstance + class + "\x00" + id)
}

func classPrefix(class string) []byte {
	return []byte(prefixInstance + class + "\x00")
}

// Put stores records, replacing those with the same class and id.
func (b *Badger) Put(ctx context.Context, records ...*classinfo.Record) error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling record %s/%s: %w", r.Class, r.ID, err)
		}
		if err := wb.Set(instanceKey(r.Class, r.ID), data); err != nil {
			return fmt.Errorf("writing record %s/%s: %w", r.Class, r.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flushing records: %w", err)
	}
	b.log.Debug("stored records", "count", len(records))
	return nil
}

func (b *Badger) Delete(class, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(instanceKey(class, id))
	})
}

// classesOf lists the registered classes assignable to class, ordered by
// name.
func (b *Badger) classesOf(class string) []string {
	var out []string
	for _, c := range b.u.Classes() {
		if b.u.IsAssignable(c.Name, class) {
			out = append(out, c.Name)
		}
	}
	return out
}

// AllInstancesOf yields stored records of class and its subclasses, grouped
// by class name and ordered by id. The read transaction stays open while the
// sequence is consumed.
func (b *Badger) AllInstancesOf(ctx context.Context, class string) iter.Seq2[any, error] {
	classes := b.classesOf(class)
	return func(yield func(any, error) bool) {
		stopped := false
		err := b.db.View(func(txn *badger.Txn) error {
			for _, name := range classes {
				opts := badger.DefaultIteratorOptions
				opts.Prefix = classPrefix(name)
				it := txn.NewIterator(opts)
				for it.Rewind(); it.Valid(); it.Next() {
					if err := ctx.Err(); err != nil {
						it.Close()
						return err
					}
					r, err := decodeRecord(it.Item())
					if err != nil {
						it.Close()
						return err
					}
					if !yield(r, nil) {
						stopped = true
						it.Close()
						return nil
					}
				}
				it.Close()
			}
			return nil
		})
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// FindByID looks the id up under class and each of its subclasses.
func (b *Badger) FindByID(ctx context.Context, class, id string) (any, bool, error) {
	var found *classinfo.Record
	err := b.db.View(func(txn *badger.Txn) error {
		for _, name := range b.classesOf(class) {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := txn.Get(instanceKey(name, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			found, err = decodeRecord(item)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if found == nil {
		return nil, false, nil
	}
	return found, true, nil
}

func decodeRecord(item *badger.Item) (*classinfo.Record, error) {
	var r classinfo.Record
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	}); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", item.Key(), err)
	}
	r.Normalize()
	return &r, nil
}
