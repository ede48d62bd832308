package datastore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/KeerthivasanKvm/novaresolver/internal/config"
	"github.com/KeerthivasanKvm/novaresolver/internal/resolver"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

const defaultBatchSize = 500

// ResolutionRecord is one resolution outcome persisted to Parquet for
// usage statistics and offline analysis.
type ResolutionRecord struct {
	SourceURL   string    `parquet:"source_url,plain_dictionary,utf8" json:"source_url"`
	Destination string    `parquet:"destination,plain_dictionary,utf8" json:"destination"`
	Strategy    string    `parquet:"strategy,plain_dictionary,utf8" json:"strategy"`
	Hops        int32     `parquet:"hops" json:"hops"`
	ElapsedMs   int64     `parquet:"elapsed_ms" json:"elapsed_ms"`
	FromCache   bool      `parquet:"from_cache" json:"from_cache"`
	Success     bool      `parquet:"success" json:"success"`
	Error       string    `parquet:"error,plain_dictionary,utf8" json:"error,omitempty"`
	ResolvedAt  time.Time `parquet:"resolved_at,timestamp" json:"resolved_at"`
}

// HistoryStore buffers resolution records and writes them to Parquet
// files in batches. It satisfies resolver.HistoryRecorder.
type HistoryStore struct {
	config config.StorageConfig
	logger zerolog.Logger

	mu     sync.Mutex
	buffer []ResolutionRecord
}

// NewHistoryStore creates the store and its output directory.
func NewHistoryStore(cfg config.StorageConfig, logger zerolog.Logger) (*HistoryStore, error) {
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("storage output directory is not configured")
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history output directory '%s': %w", cfg.OutputDir, err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &HistoryStore{
		config: cfg,
		logger: logger.With().Str("component", "HistoryStore").Logger(),
	}, nil
}

// Record buffers one resolution outcome; a full buffer triggers a flush.
func (hs *HistoryStore) Record(result resolver.Result, resolutionErr error) {
	record := ResolutionRecord{
		SourceURL:   result.SourceURL,
		Destination: result.Destination,
		Strategy:    result.Strategy,
		Hops:        int32(result.Hops),
		ElapsedMs:   result.Elapsed.Milliseconds(),
		FromCache:   result.FromCache,
		Success:     resolutionErr == nil,
		ResolvedAt:  time.Now(),
	}
	if resolutionErr != nil {
		record.Error = resolutionErr.Error()
	}

	hs.mu.Lock()
	hs.buffer = append(hs.buffer, record)
	full := len(hs.buffer) >= hs.config.BatchSize
	hs.mu.Unlock()

	if full {
		if err := hs.Flush(); err != nil {
			hs.logger.Error().Err(err).Msg("Failed to flush resolution history batch")
		}
	}
}

// Flush writes the buffered records to a new timestamped Parquet file.
func (hs *HistoryStore) Flush() error {
	hs.mu.Lock()
	records := hs.buffer
	hs.buffer = nil
	hs.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	filePath := filepath.Join(hs.config.OutputDir,
		fmt.Sprintf("resolutions_%s.parquet", time.Now().Format("20060102_150405.000")))

	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("opening history file '%s': %w", filePath, err)
	}

	writer := parquet.NewGenericWriter[ResolutionRecord](file, hs.compressionOption())
	if _, err := writer.Write(records); err != nil {
		_ = writer.Close()
		_ = file.Close()
		return fmt.Errorf("writing resolution records to '%s': %w", filePath, err)
	}
	if err := writer.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("closing Parquet writer for '%s': %w", filePath, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing history file '%s': %w", filePath, err)
	}

	hs.logger.Debug().Int("records", len(records)).Str("path", filePath).Msg("Flushed resolution history batch")
	return nil
}

// Close flushes any buffered records.
func (hs *HistoryStore) Close() error {
	return hs.Flush()
}

func (hs *HistoryStore) compressionOption() parquet.WriterOption {
	switch strings.ToLower(hs.config.Compressor) {
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "none", "uncompressed":
		return parquet.Compression(&parquet.Uncompressed)
	case "zstd", "":
		return parquet.Compression(&parquet.Zstd)
	default:
		hs.logger.Warn().Str("codec", hs.config.Compressor).Msg("Unsupported compression codec, defaulting to zstd")
		return parquet.Compression(&parquet.Zstd)
	}
}

// ReadHistoryFile loads every record from one history file.
func ReadHistoryFile(path string) ([]ResolutionRecord, error) {
	records, err := parquet.ReadFile[ResolutionRecord](path)
	if err != nil {
		return nil, fmt.Errorf("reading history file '%s': %w", path, err)
	}
	return records, nil
}
