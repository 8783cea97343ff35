package results

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/truckhub/core/model"
)

// JSONLStore appends one JSON line per unit to a rotating file. A unit is a
// single write, so readers never see a partial unit. Rewrites of the same
// unit are resolved on read by keeping the latest line.
type JSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewJSONLStore creates a store with rotation limits in megabytes and days.
// Zero limits keep lumberjack's defaults.
func NewJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &JSONLStore{logger: lj, path: path}, nil
}

func (s *JSONLStore) WriteUnit(_ context.Context, u *model.UnitResult) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(b)
	return err
}

// Units reads the rotated backups, oldest first, then the active file.
func (s *JSONLStore) Units(_ context.Context, q Query) ([]*model.UnitResult, error) {
	backups, err := filepath.Glob(backupPattern(s.path))
	if err != nil {
		return nil, err
	}
	// lumberjack timestamps sort lexically
	sort.Strings(backups)
	files := append(backups, s.path)

	latest := make(map[unitID]*model.UnitResult)
	for _, f := range files {
		if err := readUnits(f, func(u *model.UnitResult) {
			if q.Match(u) {
				latest[unitID{u.RunID, u.Key}] = u
			}
		}); err != nil {
			return nil, err
		}
	}
	out := make([]*model.UnitResult, 0, len(latest))
	for _, u := range latest {
		out = append(out, u)
	}
	Sort(out)
	return out, nil
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}

// backupPattern matches lumberjack's name-timestamp.ext backups.
func backupPattern(path string) string {
	ext := filepath.Ext(path)
	base := path[:len(path)-len(ext)]
	return base + "-*" + ext
}

func readUnits(path string, fn func(*model.UnitResult)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1<<20), 64<<20)
	for sc.Scan() {
		var u model.UnitResult
		if err := json.Unmarshal(sc.Bytes(), &u); err != nil {
			continue
		}
		fn(&u)
	}
	return sc.Err()
}
