// Package storage persists a Song to a gzipped JSON file and loads it
// back, with a debounced autosave for hosts that want to save on every
// edit without hammering disk.
package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/collidertracker/internal/trackermodel"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const dataFileName = "song.json.gz"

// Store debounces AutoSave calls for one song directory.
type Store struct {
	mu           sync.Mutex
	dir          string
	timer        *time.Timer
	debounceTime time.Duration
}

// New returns a Store that saves into dir (the song itself lands at
// dir/song.json.gz).
func New(dir string) *Store {
	return &Store{dir: dir, debounceTime: time.Second}
}

// AutoSave schedules a debounced Save: repeated calls within
// debounceTime collapse into a single write, so a host can call this on
// every edit without blocking the edit path on disk I/O.
func (st *Store) AutoSave(song *trackermodel.Song) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(st.debounceTime, func() {
		go func() {
			start := time.Now()
			if err := st.Save(song); err != nil {
				log.Printf("storage: autosave failed: %v", err)
				return
			}
			log.Printf("storage: autosaved %s in %d ms", st.dir, time.Since(start).Milliseconds())
		}()
	})
}

// Save writes song to dir/song.json.gz, creating dir if necessary.
func (st *Store) Save(song *trackermodel.Song) error {
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return fmt.Errorf("storage: create dir %s: %w", st.dir, err)
	}

	data, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("storage: marshal song: %w", err)
	}

	path := filepath.Join(st.dir, dataFileName)
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", tmpPath, err)
	}

	gz := gzip.NewWriter(file)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		file.Close()
		return fmt.Errorf("storage: write gzip data: %w", err)
	}
	if err := gz.Close(); err != nil {
		file.Close()
		return fmt.Errorf("storage: close gzip writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("storage: close %s: %w", tmpPath, err)
	}

	// Rename after a fully-flushed write so a crash mid-save never
	// leaves song.json.gz truncated.
	return os.Rename(tmpPath, path)
}

// Load reads dir/song.json.gz back into a Song.
func Load(dir string) (*trackermodel.Song, error) {
	path := filepath.Join(dir, dataFileName)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("storage: open gzip reader: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("storage: read gzip data: %w", err)
	}

	song := &trackermodel.Song{}
	if err := json.Unmarshal(data, song); err != nil {
		return nil, fmt.Errorf("storage: unmarshal song: %w", err)
	}
	if song.PhraseLibrary == nil {
		song.PhraseLibrary = make(map[string]trackermodel.PhraseLibraryEntry)
	}
	return song, nil
}

// Exists reports whether dir already has a saved song.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, dataFileName))
	return err == nil
}
