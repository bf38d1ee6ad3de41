package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/tool-recommender-bot/wuic/nut"
	"github.com/tool-recommender-bot/wuic/pathutil"
)

// FileSystem abstracts origin file access so implementations can be swapped
// for testing (e.g. fstest.MapFS) without touching os.* directly.
type FileSystem interface {
	fs.ReadFileFS
	// Stat returns file info. Mirrors fs.Stat semantics.
	Stat(name string) (fs.FileInfo, error)
}

// osFS implements FileSystem against a base directory. Every name is
// resolved inside the base; names escaping it are rejected.
type osFS struct {
	baseDir string
}

func (f osFS) Open(name string) (fs.File, error) {
	p, err := pathutil.ResolveSafePath(f.baseDir, name)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (f osFS) ReadFile(name string) ([]byte, error) {
	p, err := pathutil.ResolveSafePath(f.baseDir, name)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}

func (f osFS) Stat(name string) (fs.FileInfo, error) {
	p, err := pathutil.ResolveSafePath(f.baseDir, name)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

// Verify interface compliance at compile time.
var _ FileSystem = osFS{}

// DiskConfig configures a filesystem origin.
type DiskConfig struct {
	ID       string
	Root     string
	Strategy VersionStrategy
}

// DiskSource serves assets from a directory tree.
type DiskSource struct {
	id       string
	fsys     FileSystem
	strategy VersionStrategy
	watch    *registry
}

// Verify interface compliance at compile time.
var (
	_ Source   = (*DiskSource)(nil)
	_ Pollable = (*DiskSource)(nil)
)

// NewDisk creates a source rooted at cfg.Root.
func NewDisk(cfg DiskConfig) *DiskSource {
	return NewDiskFS(cfg.ID, osFS{baseDir: cfg.Root}, cfg.Strategy)
}

// NewDiskFS creates a source over an existing filesystem implementation.
func NewDiskFS(id string, fsys FileSystem, strategy VersionStrategy) *DiskSource {
	return &DiskSource{
		id:       id,
		fsys:     fsys,
		strategy: strategy,
		watch:    newRegistry(),
	}
}

// ID implements Source.
func (d *DiskSource) ID() string { return d.id }

// ListNames implements Source.
func (d *DiskSource) ListNames(_ context.Context, pattern string) ([]string, error) {
	names, err := fs.Glob(d.fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", pattern, err)
	}
	return names, nil
}

// Exists implements Source.
func (d *DiskSource) Exists(_ context.Context, name string) (bool, error) {
	_, err := d.fsys.Stat(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Open implements Source.
func (d *DiskSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := d.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

// LastModified implements Source.
func (d *DiskSource) LastModified(_ context.Context, name string) (time.Time, error) {
	info, err := d.fsys.Stat(name)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.ModTime(), nil
}

// Resolve implements Source.
func (d *DiskSource) Resolve(ctx context.Context, name string) (*nut.Nut, error) {
	typ, err := nut.TypeOf(name)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", name, err)
	}
	version, err := d.version(ctx, name)
	if err != nil {
		return nil, err
	}
	n := nut.New(name, typ, version, func(ctx context.Context) (io.ReadCloser, error) {
		return d.Open(ctx, name)
	})
	n.SetSource(d.id)
	return n, nil
}

// version builds the nut's version future. The digest strategy reads the
// content in the background; callers block only when they observe the value.
func (d *DiskSource) version(ctx context.Context, name string) (*nut.Version, error) {
	switch d.strategy {
	case VersionByTimestamp:
		t, err := d.LastModified(ctx, name)
		if err != nil {
			return nil, err
		}
		return nut.TimestampVersion(t), nil
	default:
		return nut.ComputeVersion(func() (int64, error) {
			rc, err := d.Open(context.Background(), name)
			if err != nil {
				return 0, err
			}
			defer rc.Close()
			return nut.DigestReader(rc)
		}), nil
	}
}

// Observe implements Source.
func (d *DiskSource) Observe(name string, l ChangeListener) {
	d.watch.observe(name, l)
}

// Poll implements Pollable using modification times as change stamps.
func (d *DiskSource) Poll(ctx context.Context) error {
	return d.watch.poll(ctx, d.id, d.LastModified)
}
