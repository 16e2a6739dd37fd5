package datastore

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/tphakala/sleepmon/internal/errors"
	"github.com/tphakala/sleepmon/internal/logger"
	"github.com/tphakala/sleepmon/internal/session"
)

// FileStore keeps one JSON document per session in a directory.
type FileStore struct {
	mu  sync.Mutex // serializes name selection in Save
	fs  afero.Fs
	dir string
	loc *time.Location
	log logger.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithLocation sets the zone used to read timestamps from file names.
func WithLocation(loc *time.Location) FileStoreOption {
	return func(s *FileStore) { s.loc = loc }
}

// NewFileStore creates dir when missing.
func NewFileStore(afs afero.Fs, dir string, opts ...FileStoreOption) (*FileStore, error) {
	if afs == nil {
		afs = afero.NewOsFs()
	}
	s := &FileStore{fs: afs, dir: dir, loc: time.Local, log: GetLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if err := afs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileIO).
			Context("dir", dir).
			Context("operation", "create_log_dir").
			Build()
	}
	return s, nil
}

// Dir returns the log directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes rec under a name derived from its timestamps and returns the
// file path. An existing file is never overwritten.
func (s *FileStore) Save(ctx context.Context, rec *session.Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileParsing).
			Context("operation", "encode_record").
			Build()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.freePath(rec.StartTime, rec.EndTime)
	if err != nil {
		return "", err
	}

	tmp, err := afero.TempFile(s.fs, s.dir, ".sleep_log_*.tmp")
	if err != nil {
		return "", errors.FileError(err, s.dir)
	}
	tmpName := tmp.Name()

	_, werr := tmp.Write(append(data, '\n'))
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", errors.FileError(err, tmpName)
	}
	if err := s.fs.Rename(tmpName, path); err != nil {
		_ = s.fs.Remove(tmpName)
		return "", errors.FileError(err, path)
	}

	s.log.Info("session record saved",
		logger.String("path", path),
		logger.Int("motion_events", len(rec.MotionEvents)),
		logger.Int("sound_peaks", len(rec.SoundPeaks)))
	return path, nil
}

func (s *FileStore) freePath(start, end time.Time) (string, error) {
	for n := 0; n < 1000; n++ {
		path := filepath.Join(s.dir, FileName(start, end, n))
		exists, err := afero.Exists(s.fs, path)
		if err != nil {
			return "", errors.FileError(err, path)
		}
		if !exists {
			if n > 0 {
				s.log.Warn("record name taken, using suffix", logger.String("path", path))
			}
			return path, nil
		}
	}
	return "", errors.New(errors.NewStd("no free record file name")).
		Component("datastore").
		Category(errors.CategoryConflict).
		Context("start", start).
		Build()
}

// Load returns the record with the given ID or file name.
func (s *FileStore) Load(ctx context.Context, id string) (*session.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := SessionID(id) + fileExt
	if strings.ContainsAny(id, `/\`) {
		return nil, errors.ValidationError(fmt.Sprintf("invalid session id %q", id))
	}
	if _, ok := ParseFileName(name, s.loc); !ok {
		return nil, errors.ValidationError(fmt.Sprintf("invalid session id %q", id))
	}

	rec, err := s.read(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New(ErrNotFound).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Context("session_id", id).
				Build()
		}
		return nil, err
	}
	return rec, nil
}

// ReadRecord decodes a record file from any path.
func ReadRecord(afs afero.Fs, path string) (*session.Record, error) {
	data, err := afero.ReadFile(afs, path)
	if err != nil {
		return nil, err
	}
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return &rec, nil
}

func (s *FileStore) read(path string) (*session.Record, error) {
	return ReadRecord(s.fs, path)
}

type entry struct {
	name  string
	start time.Time
}

// entries returns record files, most recent start first.
func (s *FileStore) entries() ([]entry, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.FileError(err, s.dir)
	}

	var out []entry
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		p, ok := ParseFileName(fi.Name(), s.loc)
		if !ok {
			continue
		}
		out = append(out, entry{name: fi.Name(), start: p.Start})
	}

	slices.SortFunc(out, func(a, b entry) int {
		if c := b.start.Compare(a.start); c != 0 {
			return c
		}
		return cmp.Compare(b.name, a.name)
	})
	return out, nil
}

// summaries loads entries in order, skipping unreadable files.
func (s *FileStore) summaries(ctx context.Context, es []entry) ([]Summary, error) {
	out := make([]Summary, 0, len(es))
	for _, e := range es {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := s.read(filepath.Join(s.dir, e.name))
		if err != nil {
			s.log.Warn("skipping unreadable session record",
				logger.String("file", e.name),
				logger.Error(err))
			continue
		}
		out = append(out, Summarize(SessionID(e.name), rec))
	}
	return out, nil
}

// List returns all sessions, most recent first.
func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	es, err := s.entries()
	if err != nil {
		return nil, err
	}
	return s.summaries(ctx, es)
}

// Recent returns the n most recent sessions ordered oldest to newest.
// Unreadable files are skipped and do not count towards n.
func (s *FileStore) Recent(ctx context.Context, n int) ([]Summary, error) {
	if n <= 0 {
		return []Summary{}, nil
	}
	es, err := s.entries()
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, n)
	for len(es) > 0 && len(out) < n {
		batch := es[:min(n-len(out), len(es))]
		es = es[len(batch):]
		got, err := s.summaries(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	slices.Reverse(out)
	return out, nil
}

// Latest returns the most recent session.
func (s *FileStore) Latest(ctx context.Context) (*Summary, error) {
	recent, err := s.Recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, errors.New(ErrNotFound).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	}
	return &recent[0], nil
}

// Records calls fn for every readable record, most recent first.
func (s *FileStore) Records(ctx context.Context, fn func(id string, rec *session.Record) error) error {
	es, err := s.entries()
	if err != nil {
		return err
	}
	for _, e := range es {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := s.read(filepath.Join(s.dir, e.name))
		if err != nil {
			s.log.Warn("skipping unreadable session record", logger.String("file", e.name), logger.Error(err))
			continue
		}
		if err := fn(SessionID(e.name), rec); err != nil {
			return err
		}
	}
	return nil
}

func formatHours(h float64) string {
	return fmt.Sprintf("%.2f hours", h)
}
