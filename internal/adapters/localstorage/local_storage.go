package localstorage

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"files-board/internal/domain"
)

// LocalStorageService executes filesystem actions on paths the gateway has
// already confined to basePath. It does no confinement of its own.
type LocalStorageService struct {
	fs       afero.Fs
	basePath string
	dirPerm  os.FileMode
}

func NewLocalStorageService(fs afero.Fs, basePath string, dirPerm os.FileMode) *LocalStorageService {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalStorageService{
		fs:       fs,
		basePath: filepath.Clean(basePath),
		dirPerm:  dirPerm,
	}
}

func (s *LocalStorageService) Root() string {
	return s.basePath
}

func (s *LocalStorageService) Stat(path string) (os.FileInfo, error) {
	return s.fs.Stat(path)
}

func (s *LocalStorageService) Lstat(path string) (os.FileInfo, error) {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		return info, err
	}
	return s.fs.Stat(path)
}

func (s *LocalStorageService) ReadDirectory(path string) ([]os.FileInfo, error) {
	entries, err := afero.ReadDir(s.fs, path)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteFile записывает файл в хранилище. Parent directories are created with
// dirPerm; a failed copy removes the partial file instead of leaving it behind.
func (s *LocalStorageService) WriteFile(path string, file io.Reader) error {
	if err := s.fs.MkdirAll(filepath.Dir(path), s.dirPerm); err != nil {
		return err
	}

	out, err := s.fs.Create(path)
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, file); err != nil {
		if closeErr := out.Close(); closeErr != nil {
			logrus.Warnf("Failed to close file %s: %v", path, closeErr)
		}
		if removeErr := s.fs.Remove(path); removeErr != nil {
			logrus.Warnf("Failed to remove partial file %s: %v", path, removeErr)
		}
		return err
	}
	return out.Close()
}

func (s *LocalStorageService) Open(path string) (domain.ReadSeekCloser, error) {
	return s.fs.Open(path)
}

func (s *LocalStorageService) Remove(path string) error {
	return s.fs.RemoveAll(path)
}

// Move переименовывает файл или директорий внутри базового хранилища.
// пустой путь отклоняется, чтобы избежать случайную потерю данных.
func (s *LocalStorageService) Move(oldPath, newPath string) error {
	if oldPath == "" || newPath == "" {
		return os.ErrInvalid
	}
	return s.fs.Rename(oldPath, newPath)
}

func (s *LocalStorageService) CreateDirectory(path string) error {
	return s.fs.MkdirAll(path, s.dirPerm)
}
