// Package storage wraps the physical filesystem holding file assets so that
// reference and batch logic never touch the disk directly.
package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/config"
)

const backupTimeFormat = "20060102T150405Z"

// Info describes a stored blob.
type Info struct {
	Path    string
	Size    int64
	ModTime time.Time
	Mode    fs.FileMode
}

// Store is the physical store adapter. All paths are relative to the storage root.
type Store interface {
	Exists(p string) (bool, error)
	Stat(p string) (Info, error)
	CheckAccess(p string) error
	Open(p string) (io.ReadCloser, error)
	Copy(src, dst string) error
	Move(src, dst string, overwrite bool) error
	Remove(p string) error
	Write(p string, r io.Reader) (int64, error)
	EnsureDir(dir string) error
	Backup(p string, at time.Time) (string, error)
	Restore(backup, p string) error
	WriteSnapshot(name string, data []byte, at time.Time) (string, error)
	URL(p string) string
}

// LocalStore is a Store over a directory tree on the local disk.
type LocalStore struct {
	root       string
	backupRoot string
	baseURL    string
}

// NewLocalStore creates the root and backup directories if they do not exist.
func NewLocalStore(root, backupRoot, baseURL string) (*LocalStore, error) {
	for _, dir := range []string{root, backupRoot} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}
	return &LocalStore{
		root:       root,
		backupRoot: backupRoot,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// NewStore is the fx constructor.
func NewStore(cfg *config.Config) (Store, error) {
	return NewLocalStore(cfg.StoragePath, cfg.BackupPath, cfg.StorageURL)
}

func (s *LocalStore) Root() string {
	return s.root
}

func (s *LocalStore) full(p string) (string, error) {
	clean, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStore) URL(p string) string {
	return s.baseURL + "/" + strings.TrimPrefix(p, "/")
}

func (s *LocalStore) Exists(p string) (bool, error) {
	full, err := s.full(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, apperrors.PhysicalIO("stat", p, err)
	}
}

func (s *LocalStore) Stat(p string) (Info, error) {
	full, err := s.full(p)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(full)
	if err != nil {
		return Info{}, apperrors.PhysicalIO("stat", p, err)
	}
	if fi.IsDir() {
		return Info{}, apperrors.PhysicalIO("stat", p, fmt.Errorf("is a directory"))
	}
	return Info{Path: p, Size: fi.Size(), ModTime: fi.ModTime(), Mode: fi.Mode()}, nil
}

// CheckAccess opens the blob for reading.
func (s *LocalStore) CheckAccess(p string) error {
	full, err := s.full(p)
	if err != nil {
		return err
	}
	f, err := os.Open(full)
	if err != nil {
		return apperrors.PhysicalIO("open", p, err)
	}
	return f.Close()
}

func (s *LocalStore) Open(p string) (io.ReadCloser, error) {
	full, err := s.full(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, apperrors.PhysicalIO("open", p, err)
	}
	return f, nil
}

func (s *LocalStore) EnsureDir(dir string) error {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return nil
	}
	full, err := s.full(dir)
	if err != nil {
		return err
	}
	return ensureDir(full)
}

// ensureDir is check-then-create and tolerates a concurrent creator.
func ensureDir(full string) error {
	if err := os.MkdirAll(full, 0o750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			if fi, statErr := os.Stat(full); statErr == nil && fi.IsDir() {
				return nil
			}
		}
		return apperrors.PhysicalIO("mkdir", full, err)
	}
	return nil
}

func (s *LocalStore) Write(p string, r io.Reader) (int64, error) {
	full, err := s.full(p)
	if err != nil {
		return 0, err
	}
	if err := ensureDir(filepath.Dir(full)); err != nil {
		return 0, err
	}
	n, err := writeAtomic(full, r)
	if err != nil {
		return 0, apperrors.PhysicalIO("write", p, err)
	}
	return n, nil
}

func (s *LocalStore) Copy(src, dst string) error {
	srcFull, err := s.full(src)
	if err != nil {
		return err
	}
	dstFull, err := s.full(dst)
	if err != nil {
		return err
	}
	if err := copyFile(srcFull, dstFull); err != nil {
		return apperrors.PhysicalIO("copy", src, err)
	}
	return nil
}

// Move renames src to dst. Without overwrite an existing dst is an error and is never replaced.
func (s *LocalStore) Move(src, dst string, overwrite bool) error {
	srcFull, err := s.full(src)
	if err != nil {
		return err
	}
	dstFull, err := s.full(dst)
	if err != nil {
		return err
	}
	if _, err := os.Stat(srcFull); err != nil {
		return apperrors.PhysicalIO("move", src, err)
	}
	if err := ensureDir(filepath.Dir(dstFull)); err != nil {
		return err
	}

	if overwrite {
		err = os.Rename(srcFull, dstFull)
		if errors.Is(err, syscall.EXDEV) {
			// different devices: copy then remove
			if err = copyFile(srcFull, dstFull); err == nil {
				err = os.Remove(srcFull)
			}
		}
	} else {
		err = moveExclusive(srcFull, dstFull)
	}
	if errors.Is(err, fs.ErrExist) {
		return apperrors.PhysicalIO("move", dst, fs.ErrExist)
	}
	if err != nil {
		return apperrors.PhysicalIO("move", src, err)
	}
	return nil
}

// moveExclusive links src at dst, which fails if dst exists, then unlinks src.
func moveExclusive(srcFull, dstFull string) error {
	err := os.Link(srcFull, dstFull)
	switch {
	case err == nil:
	case errors.Is(err, syscall.EXDEV):
		err = copyExclusive(srcFull, dstFull)
	case errors.Is(err, syscall.EPERM), errors.Is(err, syscall.ENOTSUP):
		// no hard links on this filesystem
		if _, statErr := os.Stat(dstFull); statErr == nil {
			return fs.ErrExist
		}
		return os.Rename(srcFull, dstFull)
	}
	if err != nil {
		return err
	}
	if err := os.Remove(srcFull); err != nil {
		os.Remove(dstFull)
		return err
	}
	return nil
}

// copyExclusive copies src into a temp file next to dst and links it into place.
func copyExclusive(srcFull, dstFull string) error {
	in, err := os.Open(srcFull)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, _, err := writeTemp(dstFull, in)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)
	return os.Link(tmp, dstFull)
}

// Remove deletes the blob. A blob that is already gone is not an error.
func (s *LocalStore) Remove(p string) error {
	full, err := s.full(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperrors.PhysicalIO("remove", p, err)
	}
	return nil
}

// Backup copies p under the backup root with a UTC timestamp suffix and returns the backup location.
func (s *LocalStore) Backup(p string, at time.Time) (string, error) {
	srcFull, err := s.full(p)
	if err != nil {
		return "", err
	}
	clean, _ := NormalizePath(p)
	dst := filepath.Join(s.backupRoot, "files", filepath.FromSlash(clean)+"."+at.UTC().Format(backupTimeFormat))
	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return "", err
	}
	if err := copyFile(srcFull, dst); err != nil {
		return "", apperrors.PhysicalIO("backup", p, err)
	}
	return dst, nil
}

// Restore copies a backup made by Backup over p.
func (s *LocalStore) Restore(backup, p string) error {
	dstFull, err := s.full(p)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(s.backupRoot, backup)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return apperrors.Validation("%s is not inside the backup root", backup)
	}
	if err := copyFile(backup, dstFull); err != nil {
		return apperrors.PhysicalIO("restore", p, err)
	}
	return nil
}

// WriteSnapshot stores a JSON document (e.g. the references of a deleted file) under the backup root.
func (s *LocalStore) WriteSnapshot(name string, data []byte, at time.Time) (string, error) {
	if err := CheckPath(name); err != nil {
		return "", err
	}
	dst := filepath.Join(s.backupRoot, "references", name+"."+at.UTC().Format(backupTimeFormat)+".json")
	if err := ensureDir(filepath.Dir(dst)); err != nil {
		return "", err
	}
	if _, err := writeAtomic(dst, strings.NewReader(string(data))); err != nil {
		return "", apperrors.PhysicalIO("snapshot", name, err)
	}
	return dst, nil
}

// writeAtomic writes to a temp file, fsyncs and renames it into place.
func writeAtomic(full string, r io.Reader) (int64, error) {
	tmp, n, err := writeTemp(full, r)
	if err != nil {
		return 0, err
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return n, nil
}

// writeTemp writes r to a uniquely named, synced temp file in the directory of full.
func writeTemp(full string, r io.Reader) (string, int64, error) {
	f, err := os.CreateTemp(filepath.Dir(full), "."+filepath.Base(full)+".*.tmp")
	if err != nil {
		return "", 0, err
	}
	tmp := f.Name()
	var n int64
	err = f.Chmod(0o644)
	if err == nil {
		n, err = io.Copy(f, r)
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	return tmp, n, nil
}

func copyFile(srcFull, dstFull string) error {
	in, err := os.Open(srcFull)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := ensureDir(filepath.Dir(dstFull)); err != nil {
		return err
	}
	_, err = writeAtomic(dstFull, in)
	return err
}
