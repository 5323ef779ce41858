package subwatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const (
	latestSnapshot = "latest.txt"
	snapshotCache  = 256
	snapshotTTL    = 30 * time.Minute
)

// Per-domain scan results on disk:
//
//	<root>/<domain>/subs-<YYYY-MM-DD>.txt
//	<root>/<domain>/latest.txt
//
// latest.txt is the baseline for the next scan. Dated files are never
// removed.
type SnapshotStore struct {
	fs    afero.Fs
	root  string
	cache *expirable.LRU[string, snapshotEntry]
	now   func() time.Time
}

// A cached baseline, valid while latest.txt keeps the same mod time and size
type snapshotEntry struct {
	hosts   Hostnames
	modTime time.Time
	size    int64
}

func (e snapshotEntry) matches(fi os.FileInfo) bool {
	return e.modTime.Equal(fi.ModTime()) && e.size == fi.Size()
}

func NewSnapshotStore(fs afero.Fs, root string) *SnapshotStore {
	return &SnapshotStore{
		fs:    fs,
		root:  root,
		cache: expirable.NewLRU[string, snapshotEntry](snapshotCache, nil, snapshotTTL),
		now:   time.Now,
	}
}

func (s *SnapshotStore) dir(domain string) string {
	return filepath.Join(s.root, domain)
}

func (s *SnapshotStore) LatestPath(domain string) string {
	return filepath.Join(s.dir(domain), latestSnapshot)
}

func (s *SnapshotStore) DatedPath(domain string, day time.Time) string {
	return filepath.Join(s.dir(domain), fmt.Sprintf("subs-%s.txt", day.Format(time.DateOnly)))
}

// Hostnames of the latest snapshot, or an empty set when there is none.
// The file is authoritative: a cached set is only used while latest.txt is
// unchanged on disk.
func (s *SnapshotStore) Previous(domain string) (Hostnames, error) {
	fpath := s.LatestPath(domain)

	fi, err := s.fs.Stat(fpath)
	if err != nil {
		s.cache.Remove(domain)
		if os.IsNotExist(err) {
			return make(Hostnames), nil
		}
		return nil, errors.Wrapf(err, "failed to stat previous results for %s", domain)
	}

	if e, ok := s.cache.Get(domain); ok {
		if e.matches(fi) {
			return e.hosts, nil
		}
		s.cache.Remove(domain)
	}

	data, err := afero.ReadFile(s.fs, fpath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(Hostnames), nil
		}
		return nil, errors.Wrapf(err, "failed to read previous results for %s", domain)
	}

	h := make(Hostnames)
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			h.Add(line)
		}
	}
	s.remember(domain, h, fpath)
	return h, nil
}

func (s *SnapshotStore) remember(domain string, h Hostnames, fpath string) {
	fi, err := s.fs.Stat(fpath)
	if err != nil {
		s.cache.Remove(domain)
		return
	}
	s.cache.Add(domain, snapshotEntry{hosts: h, modTime: fi.ModTime(), size: fi.Size()})
}

// Writes the sorted hostnames to today's file and to latest.txt.
// Returns the path of the dated file.
func (s *SnapshotStore) Save(domain string, h Hostnames) (string, error) {
	if err := s.fs.MkdirAll(s.dir(domain), 0755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory for %s", domain)
	}

	content := []byte(encodeSnapshot(h))
	dated := s.DatedPath(domain, s.now())
	for _, fpath := range []string{dated, s.LatestPath(domain)} {
		if err := afero.WriteFile(s.fs, fpath, content, 0644); err != nil {
			// drop the cached baseline, the files may now disagree with it
			s.cache.Remove(domain)
			return "", errors.Wrapf(err, "failed to write %s", fpath)
		}
	}

	s.remember(domain, h, s.LatestPath(domain))
	return dated, nil
}

func encodeSnapshot(h Hostnames) string {
	if h.Len() == 0 {
		return ""
	}
	return strings.Join(h.Sorted(), "\n") + "\n"
}
