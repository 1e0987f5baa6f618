// Package boltdb is the embedded ledger engine. A bolt write transaction is
// exclusive for the whole file, which gives every unit of work the
// per-customer serialisation the ledger needs without row locks.
package boltdb

import (
	"encoding/json"
	"fmt"
	"time"

	"creditline-backend/internal/repository"

	bolt "github.com/boltdb/bolt"
)

const (
	bucketCustomers     = "customers"
	bucketTransactions  = "transactions"
	bucketChargebacks   = "chargebacks"
	bucketActivities    = "activities"
	bucketEarnings      = "operator_earnings"
	bucketConversations = "conversations"
	bucketMessages      = "messages"
	bucketViews         = "profile_views"
)

var allBuckets = []string{
	bucketCustomers, bucketTransactions, bucketChargebacks, bucketActivities,
	bucketEarnings, bucketConversations, bucketMessages, bucketViews,
}

type Store struct {
	db *bolt.DB
	repository.CustomerRepository
	repository.TransactionRepository
	repository.ChargebackRepository
	repository.ActivityRepository
	repository.ConversationRepository
	repository.ViewRepository
	repository.LedgerStore
}

// Open opens (or creates) the database file and ensures every bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:                     db,
		CustomerRepository:     &customerRepository{db: db},
		TransactionRepository:  &transactionRepository{db: db},
		ChargebackRepository:   &chargebackRepository{db: db},
		ActivityRepository:     &activityRepository{db: db},
		ConversationRepository: &conversationRepository{db: db},
		ViewRepository:         &viewRepository{db: db},
		LedgerStore:            &ledgerStore{db: db},
	}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func getJSON[T any](tx *bolt.Tx, bucket, id string, notFound error) (*T, error) {
	v := tx.Bucket([]byte(bucket)).Get([]byte(id))
	if v == nil {
		return nil, fmt.Errorf("%w: %s", notFound, id)
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func putJSON(tx *bolt.Tx, bucket, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket([]byte(bucket)).Put([]byte(id), data)
}

// insertJSON is putJSON that refuses to overwrite an existing key.
func insertJSON(tx *bolt.Tx, bucket, id string, v any) error {
	if tx.Bucket([]byte(bucket)).Get([]byte(id)) != nil {
		return fmt.Errorf("%s %s already exists", bucket, id)
	}
	return putJSON(tx, bucket, id, v)
}

// scan decodes every record in a bucket and keeps those accepted by keep.
func scan[T any](tx *bolt.Tx, bucket string, keep func(*T) bool) ([]T, error) {
	var items []T
	err := tx.Bucket([]byte(bucket)).ForEach(func(k, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		if keep == nil || keep(&item) {
			items = append(items, item)
		}
		return nil
	})
	return items, err
}
