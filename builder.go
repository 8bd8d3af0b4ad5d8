// Copyright 2025 The cdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package cdb

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cdbio/cdb/internal/datafile"
)

// BuilderOption configures the Builder.
type BuilderOption func(*builderOptions)

type builderOptions struct {
	logger *slog.Logger
}

// WithLogger sets an optional logger for the builder to use for
// progress updates.  If not provided, no logging output will be
// produced.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(opts *builderOptions) {
		opts.logger = logger
	}
}

// Builder constructs a database at a destination path.  Records are
// streamed to a temporary file in the destination's directory, and
// Finalize atomically renames the finished file into place, so readers
// never observe a partially built database.
//
// A Builder must be owned by a single goroutine for its whole
// lifetime.
type Builder struct {
	resultPath string
	dataFile   *os.File
	w          *datafile.Writer
	logger     *slog.Logger
}

// NewBuilder creates a Builder that will commit the database to
// resultPath.  Building should happen once; the finished file is
// immutable.
func NewBuilder(resultPath string, opts ...BuilderOption) (*Builder, error) {
	var options builderOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	resultPath, err := filepath.Abs(resultPath)
	if err != nil {
		return nil, fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(resultPath)
	dataFile, err := os.CreateTemp(dir, "cdb-builder.*.tmp")
	if err != nil {
		return nil, fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	w, err := datafile.NewWriter(dataFile)
	if err != nil {
		_ = dataFile.Close()
		_ = os.Remove(dataFile.Name())
		return nil, fmt.Errorf("datafile.NewWriter: %w", err)
	}
	return &Builder{
		resultPath: resultPath,
		dataFile:   dataFile,
		w:          w,
		logger:     options.logger,
	}, nil
}

// Put adds a key/value pair to the database.  It may be called any
// number of times with the same key; every record is kept.
func (b *Builder) Put(key, value []byte) error {
	return b.w.Put(key, value)
}

// Finalize commits the hash tables and header, makes the file
// read-only, and renames it over the destination path.  The Builder
// cannot be used afterwards.
func (b *Builder) Finalize() error {
	if b.dataFile == nil {
		return datafile.ErrFinished
	}
	if err := b.w.Finish(); err != nil {
		b.discard()
		return fmt.Errorf("datafile.Finish: %w", err)
	}
	if err := b.dataFile.Sync(); err != nil {
		b.discard()
		return fmt.Errorf("f.Sync: %w", err)
	}

	// make the file read-only
	if err := os.Chmod(b.dataFile.Name(), 0444); err != nil {
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(b.dataFile.Name(), b.resultPath); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	_ = b.dataFile.Close()
	b.dataFile = nil

	b.logger.Info("finalized constant database",
		"path", b.resultPath,
		"records", b.w.Count(),
		"bytes", b.w.Size())
	return nil
}

// Abort discards the temporary file without committing anything.  It
// is a no-op after Finalize or a previous Abort.
func (b *Builder) Abort() error {
	if b.dataFile == nil {
		return nil
	}
	b.discard()
	return nil
}

func (b *Builder) discard() {
	name := b.dataFile.Name()
	_ = b.dataFile.Close()
	_ = os.Remove(name)
	b.dataFile = nil
}
