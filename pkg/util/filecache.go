// FileCache serves the JSON documents the plugin reads repeatedly (design
// snapshots, export documents) from memory-mapped files.
//
// Entries are keyed by path and revalidated against the file's size and
// modification time on every Get, so an edited or replaced document is
// remapped transparently. When mmap fails the cache falls back to
// os.ReadFile for that file.
package util

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
)

// FileCache provides memory-mapped, revalidating file access.
//
// Thread-safe: Multiple goroutines can call methods concurrently.
type FileCache interface {
	// Get returns the mapped file, loading or remapping it when the file on
	// disk changed since it was cached.
	Get(filePath string) (*MappedFile, error)

	// ReadAll returns a private copy of the file contents. The copy stays
	// valid after Invalidate or Close.
	ReadAll(filePath string) ([]byte, error)

	// Invalidate drops a cached entry so the next Get reloads it.
	Invalidate(filePath string)

	// Size returns number of currently cached files.
	Size() int

	// Stats returns current cache metrics.
	Stats() FileCacheStats

	// Close unmaps all files and releases resources.
	Close() error
}

// FileCacheConfig controls FileCache behavior.
type FileCacheConfig struct {
	// MaxFiles caps the number of cached files. 0 means unlimited.
	MaxFiles int

	// MaxMemoryMB caps the total mapped size. 0 means unlimited.
	MaxMemoryMB int

	// Logger for warnings. If nil, uses slog.Default().
	Logger *slog.Logger
}

// DefaultFileCacheConfig returns limits suitable for a CLI session that
// touches a handful of documents.
func DefaultFileCacheConfig() *FileCacheConfig {
	return &FileCacheConfig{
		MaxFiles:    256,
		MaxMemoryMB: 512,
	}
}

// MappedFile represents a memory-mapped file.
type MappedFile struct {
	Path string

	// Data is the mapped region, or a heap copy for fallback entries.
	// Nil for empty files. Only valid until the entry is invalidated.
	Data mmap.MMap

	// File is nil for fallback entries.
	File *os.File

	Size    int64
	ModTime time.Time

	mapped bool
}

// FileCacheStats tracks cache performance metrics.
type FileCacheStats struct {
	FilesLoaded   int64
	FilesCached   int
	CacheHits     int64
	CacheMisses   int64
	Reloads       int64
	MmapFailures  int64
	TotalMappedMB float64
}

// NewFileCache creates a new FileCache with the given config.
//
// If config is nil, uses DefaultFileCacheConfig().
func NewFileCache(config *FileCacheConfig) FileCache {
	if config == nil {
		config = DefaultFileCacheConfig()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &fileCacheImpl{
		config: config,
		logger: logger,
		cache:  make(map[string]*MappedFile),
	}
}

type fileCacheImpl struct {
	config *FileCacheConfig
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*MappedFile
	stats FileCacheStats
}

func (fc *fileCacheImpl) Get(filePath string) (*MappedFile, error) {
	stat, err := fc.stat(filePath)
	if err != nil {
		return nil, err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.getLocked(filePath, stat)
}

func (fc *fileCacheImpl) ReadAll(filePath string) ([]byte, error) {
	stat, err := fc.stat(filePath)
	if err != nil {
		return nil, err
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	mf, err := fc.getLocked(filePath, stat)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(mf.Data))
	copy(out, mf.Data)
	return out, nil
}

func (fc *fileCacheImpl) stat(filePath string) (os.FileInfo, error) {
	stat, err := os.Stat(filePath)
	if err != nil {
		fc.mu.Lock()
		fc.dropLocked(filePath)
		fc.stats.CacheMisses++
		fc.mu.Unlock()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}
	return stat, nil
}

// getLocked returns the cached entry when it still matches stat, else remaps.
func (fc *fileCacheImpl) getLocked(filePath string, stat os.FileInfo) (*MappedFile, error) {
	if mf, ok := fc.cache[filePath]; ok {
		if mf.Size == stat.Size() && mf.ModTime.Equal(stat.ModTime()) {
			fc.stats.CacheHits++
			return mf, nil
		}
		fc.dropLocked(filePath)
		fc.stats.Reloads++
	} else {
		fc.stats.CacheMisses++
	}

	if err := fc.checkLimitsLocked(stat.Size()); err != nil {
		return nil, err
	}

	mf, err := fc.loadFile(filePath)
	if err != nil {
		return nil, err
	}
	fc.cache[filePath] = mf
	fc.stats.FilesLoaded++
	return mf, nil
}

func (fc *fileCacheImpl) Invalidate(filePath string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.dropLocked(filePath)
}

// checkLimitsLocked verifies that adding a file of newSize bytes stays within limits.
func (fc *fileCacheImpl) checkLimitsLocked(newSize int64) error {
	if fc.config.MaxFiles > 0 && len(fc.cache) >= fc.config.MaxFiles {
		return fmt.Errorf("FileCache limit reached: %d files (limit: %d files)",
			len(fc.cache), fc.config.MaxFiles)
	}
	if fc.config.MaxMemoryMB > 0 {
		currentMB := fc.totalMBLocked()
		newMB := float64(newSize) / (1024 * 1024)
		if currentMB+newMB >= float64(fc.config.MaxMemoryMB) {
			return fmt.Errorf("FileCache memory limit reached: %.2f MB + %.2f MB (limit: %d MB)",
				currentMB, newMB, fc.config.MaxMemoryMB)
		}
	}
	return nil
}

// loadFile opens and mmaps a file, with fallback to os.ReadFile if mmap fails.
func (fc *fileCacheImpl) loadFile(filePath string) (*MappedFile, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", filePath, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file %q: %w", filePath, err)
	}

	// Zero bytes cannot be mapped.
	if stat.Size() == 0 {
		file.Close()
		return &MappedFile{Path: filePath, ModTime: stat.ModTime()}, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		fc.logger.Warn("mmap failed, using fallback", "file", filePath, "size", stat.Size(), "error", err)
		file.Close()
		fc.stats.MmapFailures++

		raw, readErr := os.ReadFile(filePath)
		if readErr != nil {
			return nil, fmt.Errorf("mmap failed and fallback failed for %q: mmap error: %v, read error: %w",
				filePath, err, readErr)
		}
		return &MappedFile{Path: filePath, Data: mmap.MMap(raw), Size: int64(len(raw)), ModTime: stat.ModTime()}, nil
	}

	return &MappedFile{
		Path:    filePath,
		Data:    data,
		File:    file,
		Size:    stat.Size(),
		ModTime: stat.ModTime(),
		mapped:  true,
	}, nil
}

// dropLocked unmaps and forgets one entry.
func (fc *fileCacheImpl) dropLocked(filePath string) error {
	mf, ok := fc.cache[filePath]
	if !ok {
		return nil
	}
	delete(fc.cache, filePath)

	var errs []error
	if mf.mapped && mf.Data != nil {
		if err := mf.Data.Unmap(); err != nil {
			fc.logger.Warn("failed to unmap file", "path", filePath, "error", err)
			errs = append(errs, fmt.Errorf("unmap %q: %w", filePath, err))
		}
	}
	if mf.File != nil {
		if err := mf.File.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", filePath, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%v", errs)
	}
	return nil
}

func (fc *fileCacheImpl) Size() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.cache)
}

func (fc *fileCacheImpl) Stats() FileCacheStats {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	s := fc.stats
	s.FilesCached = len(fc.cache)
	s.TotalMappedMB = fc.totalMBLocked()
	return s
}

func (fc *fileCacheImpl) totalMBLocked() float64 {
	var total int64
	for _, mf := range fc.cache {
		total += mf.Size
	}
	return float64(total) / (1024 * 1024)
}

func (fc *fileCacheImpl) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	var errs []error
	for path := range fc.cache {
		if err := fc.dropLocked(path); err != nil {
			errs = append(errs, err)
		}
	}

	fc.logger.Debug("FileCache closed",
		"files_loaded", fc.stats.FilesLoaded,
		"cache_hits", fc.stats.CacheHits,
		"reloads", fc.stats.Reloads,
		"mmap_failures", fc.stats.MmapFailures)

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
