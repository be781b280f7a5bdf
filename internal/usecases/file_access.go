package usecases

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"files-board/internal/config"
	"files-board/internal/domain"
	"files-board/internal/safepath"
)

// previewLineLimit caps the bytes kept per preview line; the rest of an
// oversized line is skipped.
const previewLineLimit = 4096

// FileAccessUseCase authorizes each request, confines its target to the
// storage root, and only then touches the filesystem.
type FileAccessUseCase struct {
	storage      domain.FileStorage
	credentials  domain.CredentialStore
	tokens       domain.TokenIssuer
	links        domain.ShortLinks
	cfg          *config.Config
	validName    *regexp.Regexp
	previewExt   map[string]struct{}
	previewLines int
}

func NewFileAccessUseCase(
	storage domain.FileStorage,
	credentials domain.CredentialStore,
	tokens domain.TokenIssuer,
	links domain.ShortLinks,
	cfg *config.Config,
) (*FileAccessUseCase, error) {
	var validName *regexp.Regexp
	if cfg.File.ValidNameRegex != "" {
		compiled, err := regexp.Compile(cfg.File.ValidNameRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid file.valid_name_regex: %w", err)
		}
		validName = compiled
	}

	previewExt := make(map[string]struct{}, len(cfg.Preview.Extensions))
	for _, ext := range cfg.Preview.Extensions {
		previewExt[strings.ToLower(ext)] = struct{}{}
	}

	previewLines := cfg.Preview.MaxLines
	if previewLines <= 0 {
		previewLines = domain.DefaultPreviewLines
	}

	return &FileAccessUseCase{
		storage:      storage,
		credentials:  credentials,
		tokens:       tokens,
		links:        links,
		cfg:          cfg,
		validName:    validName,
		previewExt:   previewExt,
		previewLines: previewLines,
	}, nil
}

func (uc *FileAccessUseCase) Login(username, password string) (string, error) {
	if !uc.credentials.Verify(username, password) {
		return "", domain.ErrInvalidCredentials
	}
	token, err := uc.tokens.IssueSession(username)
	if err != nil {
		return "", fmt.Errorf("failed to issue session for '%s': %w", username, err)
	}
	return token, nil
}

func (uc *FileAccessUseCase) Upload(token, filename, folder string, file io.Reader) error {
	if _, err := uc.authorize(token); err != nil {
		return err
	}
	if err := uc.validateName(filename); err != nil {
		return err
	}
	target, err := uc.resolve(filename, folder)
	if err != nil {
		return err
	}

	if info, statErr := uc.storage.Stat(target); statErr == nil && info.IsDir() {
		return fmt.Errorf("cannot overwrite folder '%s': %w", filename, domain.ErrAlreadyExists)
	}

	if writeErr := uc.storage.WriteFile(target, file); writeErr != nil {
		return ioFailure("failed to upload file to", target, writeErr)
	}
	return nil
}

func (uc *FileAccessUseCase) CreateFolder(token, name, folder string) error {
	if _, err := uc.authorize(token); err != nil {
		return err
	}
	if err := uc.validateName(name); err != nil {
		return err
	}
	target, err := uc.resolve(name, folder)
	if err != nil {
		return err
	}

	exists, err := uc.exists(target)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("folder '%s': %w", name, domain.ErrAlreadyExists)
	}

	if createErr := uc.storage.CreateDirectory(target); createErr != nil {
		return ioFailure("could not create folder", target, createErr)
	}
	return nil
}

func (uc *FileAccessUseCase) List(token, folder string) ([]domain.FileData, error) {
	if _, err := uc.authorize(token); err != nil {
		return nil, err
	}
	dir, err := uc.resolve(domain.PathEmpty, folder)
	if err != nil {
		return nil, err
	}
	return uc.list(dir)
}

func (uc *FileAccessUseCase) Delete(token, filename, folder string) error {
	if _, err := uc.authorize(token); err != nil {
		return err
	}
	target, err := uc.resolveEntry(filename, folder)
	if err != nil {
		return err
	}

	exists, err := uc.exists(target)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("could not delete '%s': %w", filename, domain.ErrFileNotFound)
	}

	if removeErr := uc.storage.Remove(target); removeErr != nil {
		return ioFailure("could not delete file/folder", target, removeErr)
	}
	return nil
}

// Rename moves oldName to newName inside the same folder. The destination
// must not exist; nothing is touched when any check fails.
func (uc *FileAccessUseCase) Rename(token, oldName, newName, folder string) error {
	if _, err := uc.authorize(token); err != nil {
		return err
	}
	if err := uc.validateName(newName); err != nil {
		return err
	}
	oldPath, err := uc.resolveEntry(oldName, folder)
	if err != nil {
		return err
	}
	newPath, err := uc.resolveEntry(newName, folder)
	if err != nil {
		return err
	}

	oldExists, err := uc.exists(oldPath)
	if err != nil {
		return err
	}
	if !oldExists {
		return fmt.Errorf("could not rename '%s': %w", oldName, domain.ErrFileNotFound)
	}
	newExists, err := uc.exists(newPath)
	if err != nil {
		return err
	}
	if newExists {
		return fmt.Errorf("could not rename '%s' to '%s': %w", oldName, newName, domain.ErrAlreadyExists)
	}
	if safepath.IsWithin(oldPath, newPath) {
		return fmt.Errorf("cannot move '%s' into itself: %w", oldName, domain.ErrInvalidName)
	}

	if moveErr := uc.storage.Move(oldPath, newPath); moveErr != nil {
		return ioFailure("could not rename", oldPath, moveErr)
	}
	return nil
}

// IssueShareToken mints a capability for filename once it is confirmed to be
// a file listed directly in folder.
func (uc *FileAccessUseCase) IssueShareToken(token, filename, folder string) (string, error) {
	if _, err := uc.authorize(token); err != nil {
		return "", err
	}
	if filename == domain.PathEmpty {
		return "", fmt.Errorf("share token needs a filename: %w", domain.ErrFileNotFound)
	}
	dir, err := uc.resolve(domain.PathEmpty, folder)
	if err != nil {
		return "", err
	}
	entries, err := uc.list(dir)
	if err != nil {
		return "", err
	}

	listed := false
	for _, e := range entries {
		if e.Name == filename && !e.IsDir {
			listed = true
			break
		}
	}
	if !listed {
		return "", fmt.Errorf("file '%s' is not in folder '%s': %w", filename, folder, domain.ErrFileNotFound)
	}

	capability, err := uc.tokens.IssueCapability(filename)
	if err != nil {
		return "", fmt.Errorf("failed to issue share token for '%s': %w", filename, err)
	}
	return capability, nil
}

// PublicFetch opens filename for an unauthenticated caller holding a
// capability. The capability names a filename only, so any folder holding a
// file of that name is reachable with it.
func (uc *FileAccessUseCase) PublicFetch(capability, filename, folder string) (*domain.FileContent, error) {
	claim, err := uc.tokens.ParseCapability(capability)
	if err != nil {
		return nil, err
	}
	if claim.Resource != filename {
		return nil, fmt.Errorf("token for '%s' presented for '%s': %w", claim.Resource, filename, domain.ErrTokenScope)
	}
	target, err := uc.resolveEntry(filename, folder)
	if err != nil {
		return nil, err
	}
	return uc.open(target)
}

func (uc *FileAccessUseCase) PrivateFetch(token, filename, folder string) (*domain.FileContent, error) {
	if _, err := uc.authorize(token); err != nil {
		return nil, err
	}
	target, err := uc.resolveEntry(filename, folder)
	if err != nil {
		return nil, err
	}
	return uc.open(target)
}

// Preview returns up to the configured number of leading lines of an
// allow-listed text file, without line terminators.
func (uc *FileAccessUseCase) Preview(token, filename, folder string) ([]string, error) {
	if _, err := uc.authorize(token); err != nil {
		return nil, err
	}
	target, err := uc.resolveEntry(filename, folder)
	if err != nil {
		return nil, err
	}
	if _, ok := uc.previewExt[strings.ToLower(filepath.Ext(filename))]; !ok {
		return nil, fmt.Errorf("preview of '%s': %w", filename, domain.ErrUnsupportedType)
	}

	content, err := uc.open(target)
	if err != nil {
		return nil, err
	}
	defer content.Reader.Close()

	lines := make([]string, 0, uc.previewLines)
	reader := bufio.NewReaderSize(content.Reader, previewLineLimit)
	for len(lines) < uc.previewLines {
		line, err := readPreviewLine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ioFailure("failed to read preview of", target, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// readPreviewLine returns the next line without its terminator, truncated to
// the reader's buffer size. io.EOF means no line was left.
func readPreviewLine(reader *bufio.Reader) (string, error) {
	chunk, isPrefix, err := reader.ReadLine()
	if err != nil {
		return "", err
	}
	line := string(chunk)
	if !isPrefix {
		return line, nil
	}

	for isPrefix {
		_, isPrefix, err = reader.ReadLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.ToValidUTF8(line, ""), nil
}

func (uc *FileAccessUseCase) CreateShortLink(token, targetURL string) (string, error) {
	if _, err := uc.authorize(token); err != nil {
		return "", err
	}
	return uc.links.Create(targetURL)
}

func (uc *FileAccessUseCase) ResolveShortLink(code string) (string, error) {
	return uc.links.Resolve(code)
}

func (uc *FileAccessUseCase) authorize(token string) (string, error) {
	username, err := uc.tokens.ParseSession(token)
	if err != nil {
		return "", fmt.Errorf("session rejected: %w", err)
	}
	return username, nil
}

func (uc *FileAccessUseCase) resolve(filename, folder string) (string, error) {
	target, err := safepath.Resolve(uc.storage.Root(), filename, folder)
	if err != nil {
		return "", err
	}
	if err := safepath.CheckSymlinks(uc.storage.Root(), target, uc.storage.Lstat); err != nil {
		return "", err
	}
	return target, nil
}

// resolveEntry is resolve for operations that must name something inside the
// root, never the root itself.
func (uc *FileAccessUseCase) resolveEntry(filename, folder string) (string, error) {
	if filename == domain.PathEmpty {
		return "", fmt.Errorf("filename is required: %w", domain.ErrInvalidName)
	}
	target, err := uc.resolve(filename, folder)
	if err != nil {
		return "", err
	}
	if target == filepath.Clean(uc.storage.Root()) {
		return "", fmt.Errorf("'%s' refers to the storage root: %w", filename, domain.ErrPathTraversal)
	}
	return target, nil
}

func (uc *FileAccessUseCase) validateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == domain.PathEmpty || trimmed == domain.PathCurrent || trimmed == domain.PathParent {
		return fmt.Errorf("name '%s' is empty or reserved: %w", name, domain.ErrInvalidName)
	}
	if len(name) > uc.cfg.File.MaxNameLength && uc.cfg.File.MaxNameLength > 0 {
		return fmt.Errorf("name '%s' too long (%d > %d): %w",
			name, len(name), uc.cfg.File.MaxNameLength, domain.ErrInvalidName)
	}
	base := filepath.Base(name)
	if uc.validName != nil && !uc.validName.MatchString(base) {
		return fmt.Errorf("base name '%s' is invalid: %w", base, domain.ErrInvalidName)
	}
	return nil
}

func (uc *FileAccessUseCase) exists(path string) (bool, error) {
	if _, err := uc.storage.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, ioFailure("failed to stat", path, err)
	}
	return true, nil
}

func (uc *FileAccessUseCase) list(dir string) ([]domain.FileData, error) {
	info, err := uc.storage.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("could not read directory '%s': %w", dir, domain.ErrFileNotFound)
		}
		return nil, ioFailure("failed to stat", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("'%s' is not a directory: %w", dir, domain.ErrFileNotFound)
	}

	entries, err := uc.storage.ReadDirectory(dir)
	if err != nil {
		return nil, ioFailure("failed to list path", dir, err)
	}

	files := make([]domain.FileData, 0, len(entries))
	for _, fi := range entries {
		files = append(files, domain.FileData{
			Name:  fi.Name(),
			IsDir: fi.IsDir(),
		})
	}
	return files, nil
}

func (uc *FileAccessUseCase) open(path string) (*domain.FileContent, error) {
	info, err := uc.storage.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found at '%s': %w", path, domain.ErrFileNotFound)
		}
		return nil, ioFailure("failed to stat file at", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory: %w", path, domain.ErrFileNotFound)
	}

	reader, err := uc.storage.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found at '%s': %w", path, domain.ErrFileNotFound)
		}
		return nil, ioFailure("failed to open file at", path, err)
	}

	return &domain.FileContent{
		Name:    info.Name(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Reader:  reader,
	}, nil
}

func ioFailure(op, path string, err error) error {
	return fmt.Errorf("%s '%s': %w: %w", op, path, domain.ErrIOFailure, err)
}
