package toggle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"pickupBoard/internal/auth"
	"pickupBoard/internal/store"
)

var (
	ErrValidationFailed = errors.New("validation failed")
	// ErrWriteConflict marks a batched save that stopped after some chunks
	// were already written. Written chunks are not rolled back.
	ErrWriteConflict = errors.New("batched save partially applied")
)

type Writer interface {
	WriteRows(ctx context.Context, cred auth.Credential, table string, records []store.Record) ([]store.Record, error)
}

type FieldError struct {
	RecordID string `json:"record_id"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// ValidationError lists every offending row of a rejected changeset.
type ValidationError struct {
	Op     string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.RecordID + "." + f.Field + ": " + f.Message
	}
	return fmt.Sprintf("%s: %d invalid rows: %s", e.Op, len(e.Fields), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// SaveError reports a chunk failure. Applied counts records already written.
type SaveError struct {
	Op      string
	Chunk   int
	Applied int
	Total   int
	Err     error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s: chunk %d failed after %d/%d records written: %v", e.Op, e.Chunk+1, e.Applied, e.Total, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

func (e *SaveError) Is(target error) bool {
	return target == ErrWriteConflict && e.Applied > 0
}

// Chunk splits records into consecutive groups of at most size.
func Chunk(records []store.Record, size int) [][]store.Record {
	if size <= 0 {
		size = store.MaxBatchSize
	}
	var out [][]store.Record
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		out = append(out, records[start:end])
	}
	return out
}

type BatchWriter struct {
	w    Writer
	size int
	log  *zerolog.Logger
}

func NewBatchWriter(w Writer, log *zerolog.Logger) *BatchWriter {
	return &BatchWriter{w: w, size: store.MaxBatchSize, log: log}
}

// Save validates every row, then writes the encoded rows chunk by chunk. It
// stops at the first failing chunk and returns the number of records written.
func Save[T any](ctx context.Context, b *BatchWriter, cred auth.Credential, table, op string, rows []T,
	validate func(T) []FieldError, encode func(T) store.Record) (int, error) {
	var invalid []FieldError
	for _, row := range rows {
		invalid = append(invalid, validate(row)...)
	}
	if len(invalid) > 0 {
		b.log.Warn().Str("op", op).Int("invalid", len(invalid)).Msg("changeset rejected before write")
		return 0, &ValidationError{Op: op, Fields: invalid}
	}

	records := make([]store.Record, len(rows))
	for i, row := range rows {
		records[i] = encode(row)
	}

	applied := 0
	for i, chunk := range Chunk(records, b.size) {
		if _, err := b.w.WriteRows(ctx, cred, table, chunk); err != nil {
			b.log.Error().Err(err).
				Str("op", op).
				Int("chunk", i+1).
				Int("applied", applied).
				Int("total", len(records)).
				Msg("batched save failed")
			return applied, &SaveError{Op: op, Chunk: i, Applied: applied, Total: len(records), Err: err}
		}
		applied += len(chunk)
	}

	b.log.Info().Str("op", op).Int("records", applied).Msg("batched save done")
	return applied, nil
}
