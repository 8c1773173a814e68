// Package alerts maintains a rolling alerts.json file: the most recent
// detections, newest first, capped at a fixed length.
package alerts

import (
	"errors"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

// MaxAlerts is the number of alerts retained in the rolling file.
const MaxAlerts = 100

// Alert is a single detected-beacon notification.
type Alert struct {
	Timestamp   time.Time `json:"timestamp"`
	Host        string    `json:"host"`
	DisplayHost string    `json:"display_host"`
	PScore      float64   `json:"p_score"`
	FFTPeak     float64   `json:"fft_peak"`
	AutocorrMax float64   `json:"autocorr_max"`
	EntropyNorm float64   `json:"entropy_norm"`
	Samples     int       `json:"samples"`
}

// Store manages a rolling alerts.json file on afs.
type Store struct {
	afs  afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore creates a Store backed by the file at path.
func NewStore(afs afero.Fs, path string) *Store {
	return &Store{afs: afs, path: path}
}

// Append prepends alert to the file, truncating to MaxAlerts, and writes
// the result back atomically (write to a temp file, then rename).
func (s *Store) Append(alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readLocked()
	if err != nil {
		return err
	}

	current = append([]Alert{alert}, current...)
	if len(current) > MaxAlerts {
		current = current[:MaxAlerts]
	}

	return s.writeLocked(current)
}

// List returns the current rolling alert list, newest first.
func (s *Store) List() ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked()
}

func (s *Store) readLocked() ([]Alert, error) {
	data, err := afero.ReadFile(s.afs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	var alerts []Alert
	if err := jsoniter.Unmarshal(data, &alerts); err != nil {
		// a corrupted file is treated the same as a missing one: start fresh
		return nil, nil
	}
	return alerts, nil
}

func (s *Store) writeLocked(alerts []Alert) error {
	data, err := jsoniter.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := afero.WriteFile(s.afs, tmpPath, data, 0o644); err != nil {
		return err
	}
	return s.afs.Rename(tmpPath, s.path)
}
