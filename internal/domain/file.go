package domain

import (
	"io"
	"os"
	"time"
)

// FileData информация о файле или директории.
type FileData struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

// FileContent is an opened regular file ready to be streamed.
// The caller owns Reader and must close it.
type FileContent struct {
	Name    string
	Size    int64
	ModTime time.Time
	Reader  ReadSeekCloser
}

type ReadSeekCloser interface {
	io.ReadSeeker
	io.Closer
}

// FileStorage works on absolute paths that were already confined to the storage root.
type FileStorage interface {
	Root() string
	Stat(path string) (os.FileInfo, error)
	// Lstat does not follow a final symlink. Backends without links may
	// answer it with Stat.
	Lstat(path string) (os.FileInfo, error)
	ReadDirectory(path string) ([]os.FileInfo, error)
	WriteFile(path string, file io.Reader) error
	Open(path string) (ReadSeekCloser, error)
	Remove(path string) error
	Move(oldPath, newPath string) error
	CreateDirectory(path string) error
}

// FileAccess is the gateway the HTTP adapter calls. Every method that takes a
// token authorizes before it touches the filesystem.
type FileAccess interface {
	Login(username, password string) (string, error)
	Upload(token, filename, folder string, file io.Reader) error
	CreateFolder(token, name, folder string) error
	List(token, folder string) ([]FileData, error)
	Delete(token, filename, folder string) error
	Rename(token, oldName, newName, folder string) error
	IssueShareToken(token, filename, folder string) (string, error)
	PublicFetch(capability, filename, folder string) (*FileContent, error)
	PrivateFetch(token, filename, folder string) (*FileContent, error)
	Preview(token, filename, folder string) ([]string, error)
	CreateShortLink(token, targetURL string) (string, error)
	ResolveShortLink(code string) (string, error)
}
