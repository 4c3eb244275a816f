package cycler

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/1broseidon/backdrop/internal/render"
)

type entry struct {
	path string
	key  []byte
}

// listing is the set of images in one directory. It is kept in collation
// order unless random is set, in which case order is irrelevant.
type listing struct {
	dir     string
	random  bool
	entries []entry

	collator *collate.Collator
	buf      collate.Buffer
}

// userCollator returns a collator for the user's locale, falling back to the
// root collation order.
func userCollator() *collate.Collator {
	tag := language.Und
	if name, err := locale.GetLocale(); err == nil && name != "" {
		if parsed, err := language.Parse(name); err == nil {
			tag = parsed
		}
	}
	return collate.New(tag, collate.Numeric)
}

func newListing(dir string, random bool, collator *collate.Collator) *listing {
	return &listing{dir: dir, random: random, collator: collator}
}

// scan fills the listing from its directory. An unreadable directory leaves
// the listing empty.
func (l *listing) scan() error {
	l.entries = nil
	dirents, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}
	for _, de := range dirents {
		if !de.Type().IsRegular() {
			continue
		}
		path := filepath.Join(l.dir, de.Name())
		if !render.IsImage(path) {
			continue
		}
		l.entries = append(l.entries, l.newEntry(path))
	}
	if !l.random {
		slices.SortFunc(l.entries, compareEntries)
	}
	return nil
}

func (l *listing) newEntry(path string) entry {
	l.buf.Reset()
	key := l.collator.KeyFromString(&l.buf, filepath.Base(path))
	return entry{path: path, key: bytes.Clone(key)}
}

func compareEntries(a, b entry) int {
	if c := bytes.Compare(a.key, b.key); c != 0 {
		return c
	}
	return strings.Compare(a.path, b.path)
}

func (l *listing) len() int {
	return len(l.entries)
}

func (l *listing) at(i int) string {
	return l.entries[i].path
}

func (l *listing) index(path string) int {
	for i, e := range l.entries {
		if e.path == path {
			return i
		}
	}
	return -1
}

// insert adds path in collation order, or at the front when random. It
// reports false if path was already present.
func (l *listing) insert(path string) bool {
	if l.index(path) >= 0 {
		return false
	}
	e := l.newEntry(path)
	if l.random {
		l.entries = slices.Insert(l.entries, 0, e)
		return true
	}
	i, _ := slices.BinarySearchFunc(l.entries, e, compareEntries)
	l.entries = slices.Insert(l.entries, i, e)
	return true
}

func (l *listing) remove(path string) bool {
	i := l.index(path)
	if i < 0 {
		return false
	}
	l.entries = slices.Delete(l.entries, i, i+1)
	return true
}

func (l *listing) paths() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.path
	}
	return out
}
