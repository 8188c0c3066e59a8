package payment

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	paymentBucketName = "payments"
	caseBucketName    = "cases"
	noteBucketName    = "notes"
)

// DB defines the interface for database operations
type DB interface {
	// SavePayment saves a payment to the database
	SavePayment(payment *Payment) error

	// GetPayment retrieves a payment by ID
	GetPayment(id string) (*Payment, error)

	// ListPayments returns all payments for a case
	ListPayments(caseID string) ([]*Payment, error)

	// DeletePayment removes a payment from the database
	DeletePayment(id string) error

	// SaveCase saves a case to the database
	SaveCase(c *Case) error

	// GetCase retrieves a case by ID
	GetCase(id string) (*Case, error)

	// ListCases returns all cases
	ListCases() ([]*Case, error)

	// DeleteCase removes a case from the database
	DeleteCase(id string) error

	// SaveNote saves a note to the database
	SaveNote(note *Note) error

	// ListNotes returns all notes for a case
	ListNotes(caseID string) ([]*Note, error)

	// DeleteNote removes a note from the database
	DeleteNote(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{paymentBucketName, caseBucketName, noteBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SavePayment saves a payment to the database
func (b *BoltDB) SavePayment(payment *Payment) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucketName))
		data, err := json.Marshal(payment)
		if err != nil {
			return fmt.Errorf("marshaling payment: %w", err)
		}
		return bucket.Put([]byte(payment.ID), data)
	})
}

// GetPayment retrieves a payment by ID
func (b *BoltDB) GetPayment(id string) (*Payment, error) {
	var payment *Payment
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("payment not found: %s", id)
		}
		return json.Unmarshal(data, &payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ListPayments returns all payments for a case, in insertion order
func (b *BoltDB) ListPayments(caseID string) ([]*Payment, error) {
	payments := make([]*Payment, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var payment Payment
			if err := json.Unmarshal(v, &payment); err != nil {
				return fmt.Errorf("unmarshaling payment: %w", err)
			}
			if payment.CaseID == caseID {
				payments = append(payments, &payment)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return payments, nil
}

// DeletePayment removes a payment from the database
func (b *BoltDB) DeletePayment(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(paymentBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveCase saves a case to the database
func (b *BoltDB) SaveCase(c *Case) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(caseBucketName))
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshaling case: %w", err)
		}
		return bucket.Put([]byte(c.ID), data)
	})
}

// GetCase retrieves a case by ID
func (b *BoltDB) GetCase(id string) (*Case, error) {
	var c *Case
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(caseBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("case not found: %s", id)
		}
		return json.Unmarshal(data, &c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListCases returns all cases
func (b *BoltDB) ListCases() ([]*Case, error) {
	cases := make([]*Case, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(caseBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var c Case
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshaling case: %w", err)
			}
			cases = append(cases, &c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return cases, nil
}

// DeleteCase removes a case from the database
func (b *BoltDB) DeleteCase(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(caseBucketName))
		return bucket.Delete([]byte(id))
	})
}

// SaveNote saves a note to the database
func (b *BoltDB) SaveNote(note *Note) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(noteBucketName))
		data, err := json.Marshal(note)
		if err != nil {
			return fmt.Errorf("marshaling note: %w", err)
		}
		return bucket.Put([]byte(note.ID), data)
	})
}

// ListNotes returns all notes for a case, in insertion order
func (b *BoltDB) ListNotes(caseID string) ([]*Note, error) {
	notes := make([]*Note, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(noteBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var note Note
			if err := json.Unmarshal(v, &note); err != nil {
				return fmt.Errorf("unmarshaling note: %w", err)
			}
			if note.CaseID == caseID {
				notes = append(notes, &note)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return notes, nil
}

// DeleteNote removes a note from the database
func (b *BoltDB) DeleteNote(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(noteBucketName))
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
