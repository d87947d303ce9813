package badger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/heartmarshall/persona-registry/internal/domain"
)

// AuditRepo appends audit records to the embedded backend.
type AuditRepo struct {
	db *DB
}

// NewAuditRepo creates a new audit repository.
func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Log appends an audit record. Inside RunInTx it is written atomically with
// the transition it describes.
func (r *AuditRepo) Log(ctx context.Context, record domain.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("audit_record marshal: %w", err)
	}
	err = r.db.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(auditKey(record.CreatedAt, record.ID), data)
	})
	return mapError(err, "audit_record", record.ID)
}

// GetByEntity returns the records of one entity, newest first, limited to
// `limit` records.
func (r *AuditRepo) GetByEntity(ctx context.Context, entityType domain.EntityType, entityID uuid.UUID, limit int) ([]domain.AuditRecord, error) {
	var records []domain.AuditRecord
	err := r.db.view(ctx, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: auditPrefix, Reverse: true, PrefetchValues: true})
		defer it.Close()

		for it.Seek(seekEnd(auditPrefix)); it.ValidForPrefix(auditPrefix) && len(records) < limit; it.Next() {
			var rec domain.AuditRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			if rec.EntityType != entityType || rec.EntityID == nil || *rec.EntityID != entityID {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get audit_records by entity: %w", err)
	}
	return records, nil
}
