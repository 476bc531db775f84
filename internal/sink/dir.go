// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sink

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/relabs-tech/bikepath_logger/internal/features"
)

// FeaturesFile is the name of the record file in every folder.
const FeaturesFile = "features.csv"

// DefaultImagesPerFolder is the number of images after which a new folder
// is started.
const DefaultImagesPerFolder = 2000

// Dir writes images and records into numbered folders below a root. Each
// folder holds up to imagesPerFolder images and its own features.csv.
type Dir struct {
	mu        sync.Mutex
	root      string
	perFolder int
	logger    *slog.Logger

	folder int
	images int
	file   *os.File
	csv    *csv.Writer
	rows   uint64
}

// NewDir opens a directory sink. Numbering continues after the highest
// folder already present under root.
func NewDir(root string, imagesPerFolder int, logger *slog.Logger) (*Dir, error) {
	if imagesPerFolder <= 0 {
		imagesPerFolder = DefaultImagesPerFolder
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", root, err)
	}
	last, err := lastFolder(root)
	if err != nil {
		return nil, err
	}

	d := &Dir{root: root, perFolder: imagesPerFolder, logger: logger, folder: last}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

func lastFolder(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("read output dir %s: %w", root, err)
	}
	last := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, err := strconv.Atoi(e.Name()); err == nil && n > last {
			last = n
		}
	}
	return last, nil
}

// rotate closes the current folder and opens the next one.
func (d *Dir) rotate() error {
	if err := d.closeFile(); err != nil {
		return err
	}
	d.folder++
	dir := d.folderPath()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", dir, err)
	}

	path := filepath.Join(dir, FeaturesFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	d.file = f
	d.csv = csv.NewWriter(f)
	d.images = 0

	if err := d.writeRow(features.Header()); err != nil {
		return fmt.Errorf("csv write header: %w", err)
	}
	d.logger.Info("sink: new folder", "path", dir)
	return nil
}

func (d *Dir) folderPath() string {
	return filepath.Join(d.root, strconv.Itoa(d.folder))
}

func (d *Dir) writeRow(row []string) error {
	if err := d.csv.Write(row); err != nil {
		return err
	}
	d.csv.Flush()
	return d.csv.Error()
}

// SaveImage writes data as name into the current folder, starting a new
// folder first when the current one is full.
func (d *Dir) SaveImage(name string, data []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return "", fmt.Errorf("save image %s: sink closed", name)
	}
	if d.images >= d.perFolder {
		if err := d.rotate(); err != nil {
			return "", err
		}
	}
	path := filepath.Join(d.folderPath(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image %s: %w", path, err)
	}
	d.images++
	return path, nil
}

// AppendRecord writes r to the current folder's features file and flushes.
func (d *Dir) AppendRecord(r features.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return fmt.Errorf("append record %d: sink closed", r.Sequence)
	}
	if err := d.writeRow(r.Fields()); err != nil {
		return fmt.Errorf("csv write record %d: %w", r.Sequence, err)
	}
	d.rows++
	return nil
}

// Folder returns the path of the folder currently written to.
func (d *Dir) Folder() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.folderPath()
}

// Rows returns the number of records written (excludes headers).
func (d *Dir) Rows() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rows
}

// Close flushes and closes the features file.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeFile()
}

func (d *Dir) closeFile() error {
	if d.file == nil {
		return nil
	}
	d.csv.Flush()
	err := d.csv.Error()
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	d.file = nil
	d.csv = nil
	if err != nil {
		return fmt.Errorf("close features file: %w", err)
	}
	return nil
}
