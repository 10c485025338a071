package schemas

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"go.etcd.io/bbolt"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
)

// Store persists registered schemas
type Store interface {
	Save(ctx context.Context, schema *ToolSchema) error
	Delete(ctx context.Context, name string) error
	LoadAll(ctx context.Context) ([]*ToolSchema, error)
	Close() error
}

const schemasBucket = "tool_schemas"

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db     *bbolt.DB
	logger zerolog.Logger
}

// NewBoltStore opens (or creates) the schema database at dbPath
func NewBoltStore(dbPath string, logger zerolog.Logger) (*BoltStore, error) {
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, ioError("failed to open schema store", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(schemasBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, ioError("failed to create schemas bucket", err)
	}

	return &BoltStore{
		db:     db,
		logger: logger.With().Str("component", "bolt_schema_store").Logger(),
	}, nil
}

// Save writes schema under its name, replacing any previous value
func (s *BoltStore) Save(_ context.Context, schema *ToolSchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return errors.NewError().
			Code(errors.CodeInternalError).
			Type(errors.ErrTypeInternal).
			Message("failed to marshal schema").
			Cause(err).
			Build()
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(schemasBucket)).Put([]byte(schema.Name), data); err != nil {
			return ioError("failed to store schema", err)
		}
		s.logger.Debug().Str("tool", schema.Name).Msg("Schema stored")
		return nil
	})
}

// Delete removes the schema stored under name. Missing names are not an error.
func (s *BoltStore) Delete(_ context.Context, name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(schemasBucket)).Delete([]byte(name)); err != nil {
			return ioError("failed to delete schema", err)
		}
		s.logger.Debug().Str("tool", name).Msg("Schema deleted")
		return nil
	})
}

// LoadAll returns every stored schema. Undecodable entries are logged and skipped.
func (s *BoltStore) LoadAll(ctx context.Context) ([]*ToolSchema, error) {
	var out []*ToolSchema

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(schemasBucket)).ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var schema ToolSchema
			if err := json.Unmarshal(v, &schema); err != nil {
				s.logger.Warn().Err(err).Str("tool", string(k)).Msg("Failed to unmarshal schema")
				return nil
			}
			out = append(out, &schema)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the BoltDB connection
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func ioError(message string, cause error) *errors.RichError {
	return errors.NewError().
		Code(errors.CodeIOError).
		Type(errors.ErrTypeIO).
		Severity(errors.SeverityHigh).
		Message(message).
		Cause(cause).
		Build()
}
