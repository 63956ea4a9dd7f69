package registry

import (
	"encoding/json"
	"log/slog"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/nodemesh/datashare/models"
)

const nodeKeyPrefix = "node:"

// Store persists registry records. Records are keyed by (node_id, url) —
// the same node_id registered under a different URL is a distinct record.
type Store interface {
	Put(rec models.ShareNodeInformation) error
	List() ([]models.ShareNodeInformation, error)
	Close() error
}

// StoreConfig configures the badger-backed store.
type StoreConfig struct {
	Logger    *slog.Logger
	Directory string
}

type badgerStore struct {
	logger *slog.Logger
	db     *badger.DB
}

// NewStore opens (or creates) the node store in cfg.Directory.
func NewStore(cfg StoreConfig) (Store, error) {
	opts := badger.DefaultOptions(cfg.Directory)
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open node store")
	}
	return &badgerStore{
		logger: cfg.Logger.With("component", "node-store"),
		db:     db,
	}, nil
}

func nodeKey(nodeID, url string) []byte {
	return []byte(nodeKeyPrefix + nodeID + "|" + url)
}

func (s *badgerStore) Put(rec models.ShareNodeInformation) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal node record")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(rec.NodeID, rec.URL), data)
	})
	return errors.Wrap(err, "put node record")
}

func (s *badgerStore) List() ([]models.ShareNodeInformation, error) {
	var out []models.ShareNodeInformation
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(nodeKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec models.ShareNodeInformation
				if err := json.Unmarshal(val, &rec); err != nil {
					return errors.Wrap(err, "unmarshal node record")
				}
				out = append(out, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list node records")
	}
	return out, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
