package catalog

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ScanError is returned when the library root or one of its category
// directories cannot be read.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// BookItem is one publishable file found by the scanner.
type BookItem struct {
	// Key is the normalized identity key.
	Key string
	// Path is the absolute path of the .epub file.
	Path string
	// FileName is the base name of the file, including its extension.
	FileName string
	// Category is the sub-directory the file lives in; empty at the root.
	Category string
	// Size is the file size in bytes, 0 if the file could not be stat'ed.
	Size int64
	// Position is the zero-based index of the item in scan order.
	Position int

	// Title, Author and Intro come from the optional sidecar .txt file.
	// Title falls back to the file stem.
	Title  string
	Author string
	Intro  string
}

// ScanOptions narrows a scan.
type ScanOptions struct {
	// Category restricts the scan to a single category directory.
	Category string
}

type entry struct {
	rel      string
	name     string
	category string
	key      string
}

// Listing is the deterministic result of a directory scan. Items are
// materialized lazily, and Items may be called any number of times.
type Listing struct {
	root    string
	entries []entry
	logger  *zap.Logger

	mu       sync.Mutex
	warnings []string
}

// Scan lists the library under root. Entries are ordered lexicographically
// by their slash-separated path relative to root.
func Scan(root string, opts ScanOptions, logger *zap.Logger) (*Listing, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	l := &Listing{root: abs, logger: logger}

	top, err := os.ReadDir(abs)
	if err != nil {
		return nil, &ScanError{Path: abs, Err: err}
	}

	var found []entry
	for _, de := range top {
		name := de.Name()
		if de.IsDir() {
			if strings.HasPrefix(name, ".") {
				continue
			}
			if opts.Category != "" && name != opts.Category {
				continue
			}
			dir := filepath.Join(abs, name)
			children, err := os.ReadDir(dir)
			if err != nil {
				return nil, &ScanError{Path: dir, Err: err}
			}
			for _, child := range children {
				if child.IsDir() || !IsBookFile(child.Name()) {
					continue
				}
				found = append(found, entry{
					rel:      path.Join(name, child.Name()),
					name:     child.Name(),
					category: name,
				})
			}
			continue
		}
		if opts.Category != "" || !IsBookFile(name) {
			continue
		}
		found = append(found, entry{rel: name, name: name})
	}

	if opts.Category != "" && len(found) == 0 {
		if _, err := os.Stat(filepath.Join(abs, opts.Category)); err != nil {
			return nil, &ScanError{Path: filepath.Join(abs, opts.Category), Err: err}
		}
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].rel < found[j].rel
	})

	seen := make(map[string]string, len(found))
	for _, e := range found {
		e.key = KeyFromFilename(e.name)
		if e.key == "" {
			l.warn("Skipping file with unusable name", zap.String("file", e.rel))
			continue
		}
		if prev, dup := seen[e.key]; dup {
			l.warn("Duplicate identity key in library",
				zap.String("key", e.key),
				zap.String("file", e.rel),
				zap.String("first", prev),
			)
		} else {
			seen[e.key] = e.rel
		}
		l.entries = append(l.entries, e)
	}

	return l, nil
}

// Root returns the absolute library root.
func (l *Listing) Root() string {
	return l.root
}

// Len returns the number of items the listing yields.
func (l *Listing) Len() int {
	return len(l.entries)
}

// Warnings returns the warnings recorded so far.
func (l *Listing) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.warnings))
	copy(out, l.warnings)
	return out
}

// Items returns a fresh iterator over the listing, in scan order.
func (l *Listing) Items() iter.Seq[BookItem] {
	return func(yield func(BookItem) bool) {
		for pos, e := range l.entries {
			if !yield(l.materialize(pos, e)) {
				return
			}
		}
	}
}

func (l *Listing) materialize(pos int, e entry) BookItem {
	full := filepath.Join(l.root, filepath.FromSlash(e.rel))
	item := BookItem{
		Key:      e.key,
		Path:     full,
		FileName: e.name,
		Category: e.category,
		Position: pos,
		Title:    Stem(e.name),
	}

	if info, err := os.Stat(full); err != nil {
		l.warn("Cannot stat book", zap.String("file", e.rel), zap.Error(err))
	} else {
		item.Size = info.Size()
	}

	sidecar := strings.TrimSuffix(full, filepath.Ext(full)) + ".txt"
	if meta, err := readSidecar(sidecar); err == nil {
		if meta.title != "" {
			item.Title = meta.title
		}
		item.Author = meta.author
		item.Intro = meta.intro
	} else if !os.IsNotExist(err) {
		l.warn("Cannot read sidecar metadata", zap.String("file", sidecar), zap.Error(err))
	}

	return item
}

func (l *Listing) warn(msg string, fields ...zap.Field) {
	l.logger.Warn(msg, fields...)
	l.mu.Lock()
	l.warnings = append(l.warnings, msg)
	l.mu.Unlock()
}

type sidecarMeta struct {
	title  string
	author string
	intro  string
}

// readSidecar parses "标题：", "作者：" and "简介：" lines. Intro lines follow
// the "简介：" marker until the next title or author marker.
func readSidecar(p string) (sidecarMeta, error) {
	var meta sidecarMeta
	f, err := os.Open(p)
	if err != nil {
		return meta, err
	}
	defer f.Close()

	var intro []string
	inIntro := false
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case hasMarker(line, "标题"):
			meta.title = markerValue(line, "标题")
			inIntro = false
		case hasMarker(line, "作者"):
			meta.author = markerValue(line, "作者")
			inIntro = false
		case hasMarker(line, "简介"):
			inIntro = true
			if v := markerValue(line, "简介"); v != "" {
				intro = append(intro, v)
			}
		case inIntro && strings.TrimSpace(line) != "":
			intro = append(intro, line)
		}
	}
	if err := sc.Err(); err != nil {
		return meta, err
	}
	meta.intro = strings.Join(intro, "\n")
	return meta, nil
}

func hasMarker(line, marker string) bool {
	return strings.HasPrefix(line, marker+"：") || strings.HasPrefix(line, marker+":")
}

func markerValue(line, marker string) string {
	rest := strings.TrimPrefix(line, marker)
	rest = strings.TrimPrefix(rest, "：")
	rest = strings.TrimPrefix(rest, ":")
	return strings.TrimSpace(rest)
}
