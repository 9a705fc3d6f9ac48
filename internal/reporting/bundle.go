package reporting

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/promptqa/prompteval/internal/models"
)

// WriteBundle writes the outcome as zstd-compressed JSON, the archival
// format the publish command uploads. Batch outcomes with large corpora
// compress well; transcripts stay out of the bundle.
func WriteBundle(outcome *models.BatchOutcome, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}
	defer f.Close() //nolint:errcheck

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("initializing zstd writer: %w", err)
	}

	if err := json.NewEncoder(enc).Encode(outcome); err != nil {
		enc.Close() //nolint:errcheck
		return fmt.Errorf("encoding bundle: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flushing bundle: %w", err)
	}
	return f.Close()
}

// ReadBundle loads an outcome from a zstd bundle written by WriteBundle.
func ReadBundle(path string) (*models.BatchOutcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close() //nolint:errcheck

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd reader: %w", err)
	}
	defer dec.Close()

	var outcome models.BatchOutcome
	if err := json.NewDecoder(io.Reader(dec)).Decode(&outcome); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &outcome, nil
}
