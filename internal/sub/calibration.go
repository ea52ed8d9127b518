// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sub

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// CalibrationDigits is the size of the persisted record.
const CalibrationDigits = 4

// erasedByte marks a record that was never written.
const erasedByte = 0xFF

var ErrInvalidCalibration = errors.New("calibration must be exactly 4 decimal digits")

// Calibration is a d.ddd multiplier stored as four ASCII digits.
type Calibration [CalibrationDigits]byte

// DefaultCalibration is 1.000.
var DefaultCalibration = Calibration{'1', '0', '0', '0'}

// ParseCalibration accepts "1051" style input. A decimal point is not part
// of the record.
func ParseCalibration(s string) (Calibration, error) {
	var c Calibration
	if len(s) != CalibrationDigits {
		return c, fmt.Errorf("%q: %w", s, ErrInvalidCalibration)
	}
	copy(c[:], s)
	if !c.Valid() {
		return Calibration{}, fmt.Errorf("%q: %w", s, ErrInvalidCalibration)
	}
	return c, nil
}

// Valid reports whether every byte is a decimal digit.
func (c Calibration) Valid() bool {
	for _, b := range c {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// Scaled returns the multiplier times 1000.
func (c Calibration) Scaled() int32 {
	var v int32
	for _, b := range c {
		v = v*10 + int32(b-'0')
	}
	return v
}

func (c Calibration) String() string {
	return fmt.Sprintf("%c.%c%c%c", c[0], c[1], c[2], c[3])
}

// BlobStore persists the raw calibration record.
type BlobStore interface {
	Load() ([]byte, error)
	Save(blob []byte) error
}

// LoadCalibration reads the record. An erased or short record is replaced by
// DefaultCalibration, which is written back immediately.
func LoadCalibration(store BlobStore) (Calibration, error) {
	blob, err := store.Load()
	if err != nil {
		return Calibration{}, fmt.Errorf("load calibration: %w", err)
	}

	if len(blob) < CalibrationDigits || blob[0] == erasedByte {
		return DefaultCalibration, SaveCalibration(store, DefaultCalibration)
	}

	var c Calibration
	copy(c[:], blob)
	if !c.Valid() {
		log.Printf("sub: calibration record %q is corrupt, restoring %s", blob[:CalibrationDigits], DefaultCalibration)
		return DefaultCalibration, SaveCalibration(store, DefaultCalibration)
	}
	return c, nil
}

// SaveCalibration writes c to the store.
func SaveCalibration(store BlobStore, c Calibration) error {
	if !c.Valid() {
		return ErrInvalidCalibration
	}
	if err := store.Save(c[:]); err != nil {
		return fmt.Errorf("save calibration: %w", err)
	}
	return nil
}

func erased() []byte {
	return bytes.Repeat([]byte{erasedByte}, CalibrationDigits)
}

// FileStore keeps the record in a small file. A missing file reads like an
// erased flash sector.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() ([]byte, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return erased(), nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Save replaces the file atomically.
func (s *FileStore) Save(blob []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".calibration-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// MemStore is an in-memory BlobStore used by the simulator.
type MemStore struct {
	mu    sync.Mutex
	blob  []byte
	saves int
}

// NewMemStore starts from blob, or an erased record when blob is nil.
func NewMemStore(blob []byte) *MemStore {
	if blob == nil {
		blob = erased()
	}
	return &MemStore{blob: append([]byte(nil), blob...)}
}

func (m *MemStore) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.blob...), nil
}

func (m *MemStore) Save(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	m.saves++
	return nil
}

// Saves counts successful writes.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
