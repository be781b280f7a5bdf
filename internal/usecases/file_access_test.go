package usecases

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"files-board/internal/adapters/localstorage"
	"files-board/internal/adapters/memstore"
	"files-board/internal/auth"
	"files-board/internal/config"
	"files-board/internal/domain"
	"files-board/internal/shortlink"
)

const testRoot = "/storage"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// plainHasher keeps tests fast; bcrypt is covered in the auth package.
type plainHasher struct{}

func (plainHasher) Hash(p string) (string, error) { return "plain:" + p, nil }
func (plainHasher) Verify(p, d string) bool       { return d == "plain:"+p }

type fixture struct {
	uc      *FileAccessUseCase
	fs      afero.Fs
	root    string
	clock   *fakeClock
	session string
}

func testConfig() *config.Config {
	return &config.Config{
		File: config.FileConfig{
			MaxNameLength:  255,
			ValidNameRegex: `^[\w\-. ]+$`,
		},
		Preview: config.PreviewConfig{
			MaxLines:   domain.DefaultPreviewLines,
			Extensions: domain.DefaultPreviewExtensions,
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, afero.NewMemMapFs(), testRoot)
}

func newFixtureOn(t *testing.T, fs afero.Fs, root string) *fixture {
	t.Helper()

	require.NoError(t, fs.MkdirAll(root, 0o755))
	storage := localstorage.NewLocalStorageService(fs, root, 0o755)

	registry, err := auth.NewRegistry(plainHasher{}, []domain.User{{Username: "alice", PasswordHash: "plain:correct"}})
	require.NoError(t, err)

	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens, err := auth.NewTokens(auth.TokenConfig{
		SessionSecret:    []byte("session"),
		CapabilitySecret: []byte("capability"),
		Clock:            clock,
	})
	require.NoError(t, err)

	links, err := shortlink.NewIndex(memstore.NewLinkStore(), shortlink.Options{})
	require.NoError(t, err)

	uc, err := NewFileAccessUseCase(storage, registry, tokens, links, testConfig())
	require.NoError(t, err)
	session, err := uc.Login("alice", "correct")
	require.NoError(t, err)

	return &fixture{uc: uc, fs: fs, root: root, clock: clock, session: session}
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, path, []byte(content), 0o644))
}

func (f *fixture) exists(t *testing.T, path string) bool {
	t.Helper()
	ok, err := afero.Exists(f.fs, path)
	require.NoError(t, err)
	return ok
}

func names(files []domain.FileData) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Name)
	}
	return out
}

func readAll(t *testing.T, content *domain.FileContent) string {
	t.Helper()
	defer content.Reader.Close()
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, err)
	return string(data)
}

func TestFileAccessUseCase_Login(t *testing.T) {
	f := newFixture(t)

	token, err := f.uc.Login("alice", "correct")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = f.uc.Login("alice", "wrong")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))

	_, err = f.uc.Login("nobody", "correct")
	assert.True(t, errors.Is(err, domain.ErrInvalidCredentials))
}

func TestFileAccessUseCase_SessionRequired(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/a.txt", "x")

	capability, err := f.uc.IssueShareToken(f.session, "a.txt", "")
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", capability} {
		assert.Error(t, f.uc.Upload(token, "b.txt", "", strings.NewReader("x")))
		assert.Error(t, f.uc.CreateFolder(token, "dir", ""))
		_, err := f.uc.List(token, "")
		assert.Error(t, err)
		assert.Error(t, f.uc.Delete(token, "a.txt", ""))
		assert.Error(t, f.uc.Rename(token, "a.txt", "c.txt", ""))
		_, err = f.uc.IssueShareToken(token, "a.txt", "")
		assert.Error(t, err)
		_, err = f.uc.PrivateFetch(token, "a.txt", "")
		assert.Error(t, err)
		_, err = f.uc.Preview(token, "a.txt", "")
		assert.Error(t, err)
		_, err = f.uc.CreateShortLink(token, "https://example.com")
		assert.Error(t, err)
	}

	_, err = f.uc.List("", "")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
	_, err = f.uc.List("garbage", "")
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))

	assert.False(t, f.exists(t, testRoot+"/b.txt"))
	assert.False(t, f.exists(t, testRoot+"/dir"))
	assert.True(t, f.exists(t, testRoot+"/a.txt"))
	assert.False(t, f.exists(t, testRoot+"/c.txt"))
}

func TestFileAccessUseCase_SessionExpires(t *testing.T) {
	f := newFixture(t)

	f.clock.Advance(24*time.Hour + 4*time.Minute + 59*time.Second)
	_, err := f.uc.List(f.session, "")
	assert.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	_, err = f.uc.List(f.session, "")
	assert.True(t, errors.Is(err, domain.ErrTokenExpired))
}

func TestFileAccessUseCase_UploadListDelete(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.uc.CreateFolder(f.session, "docs", ""))

	require.NoError(t, f.uc.Upload(f.session, "notes.txt", "docs", strings.NewReader("hello")))

	files, err := f.uc.List(f.session, "docs")
	require.NoError(t, err)
	assert.Contains(t, names(files), "notes.txt")

	root, err := f.uc.List(f.session, "")
	require.NoError(t, err)
	require.Equal(t, []domain.FileData{{Name: "docs", IsDir: true}}, root)

	require.NoError(t, f.uc.Delete(f.session, "notes.txt", "docs"))

	files, err = f.uc.List(f.session, "docs")
	require.NoError(t, err)
	assert.NotContains(t, names(files), "notes.txt")
}

func TestFileAccessUseCase_UploadCreatesMissingFolder(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.uc.Upload(f.session, "a.txt", "new/sub", strings.NewReader("x")))
	assert.True(t, f.exists(t, testRoot+"/new/sub/a.txt"))
}

func TestFileAccessUseCase_UploadRejections(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.MkdirAll(testRoot+"/dir", 0o755))

	tests := []struct {
		name     string
		filename string
		folder   string
		wantErr  error
	}{
		{"traversal filename", "../evil.txt", "", domain.ErrPathTraversal},
		{"traversal folder", "evil.txt", "../../etc", domain.ErrPathTraversal},
		{"absolute folder", "evil.txt", "/etc", domain.ErrPathTraversal},
		{"empty name", "", "", domain.ErrInvalidName},
		{"dot name", "..", "", domain.ErrInvalidName},
		{"invalid characters", "a<b>.txt", "", domain.ErrInvalidName},
		{"too long", strings.Repeat("a", 300), "", domain.ErrInvalidName},
		{"over a folder", "dir", "", domain.ErrAlreadyExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.uc.Upload(f.session, tt.filename, tt.folder, strings.NewReader("evil"))
			assert.True(t, errors.Is(err, tt.wantErr), "expected %v, got %v", tt.wantErr, err)
		})
	}

	assert.False(t, f.exists(t, "/evil.txt"))
	assert.False(t, f.exists(t, "/etc/evil.txt"))
}

func TestFileAccessUseCase_CreateFolder(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.uc.CreateFolder(f.session, "photos", ""))
	info, err := f.fs.Stat(testRoot + "/photos")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	err = f.uc.CreateFolder(f.session, "photos", "")
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	require.NoError(t, f.uc.CreateFolder(f.session, "2026", "photos"))
	assert.True(t, f.exists(t, testRoot+"/photos/2026"))

	err = f.uc.CreateFolder(f.session, "x", "..")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestFileAccessUseCase_List(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/a.txt", "a")
	f.write(t, testRoot+"/sub/b.txt", "b")

	files, err := f.uc.List(f.session, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.FileData{{Name: "a.txt"}, {Name: "sub", IsDir: true}}, files)

	_, err = f.uc.List(f.session, "missing")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.List(f.session, "a.txt")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.List(f.session, "../")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestFileAccessUseCase_Delete(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/dir/x/y.txt", "y")

	err := f.uc.Delete(f.session, "missing.txt", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	err = f.uc.Delete(f.session, "", "")
	assert.True(t, errors.Is(err, domain.ErrInvalidName))

	err = f.uc.Delete(f.session, ".", "")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
	assert.True(t, f.exists(t, testRoot))

	err = f.uc.Delete(f.session, "..", "dir")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
	assert.True(t, f.exists(t, testRoot+"/dir"))

	err = f.uc.Delete(f.session, "../../", "dir")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	require.NoError(t, f.uc.Delete(f.session, "dir", ""))
	assert.False(t, f.exists(t, testRoot+"/dir"))
}

func TestFileAccessUseCase_Rename(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, testRoot+"/docs/old.txt", "content")

		require.NoError(t, f.uc.Rename(f.session, "old.txt", "new.txt", "docs"))
		assert.False(t, f.exists(t, testRoot+"/docs/old.txt"))
		data, err := afero.ReadFile(f.fs, testRoot+"/docs/new.txt")
		require.NoError(t, err)
		assert.Equal(t, "content", string(data))
	})

	t.Run("destination exists", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, testRoot+"/a.txt", "source")
		f.write(t, testRoot+"/b.txt", "dest")

		err := f.uc.Rename(f.session, "a.txt", "b.txt", "")
		assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

		src, err := afero.ReadFile(f.fs, testRoot+"/a.txt")
		require.NoError(t, err)
		assert.Equal(t, "source", string(src))
		dst, err := afero.ReadFile(f.fs, testRoot+"/b.txt")
		require.NoError(t, err)
		assert.Equal(t, "dest", string(dst))
	})

	t.Run("source missing", func(t *testing.T) {
		f := newFixture(t)
		err := f.uc.Rename(f.session, "ghost.txt", "b.txt", "")
		assert.True(t, errors.Is(err, domain.ErrFileNotFound))
	})

	t.Run("traversal destination", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, testRoot+"/a.txt", "source")

		err := f.uc.Rename(f.session, "a.txt", "../../a.txt", "")
		assert.True(t, errors.Is(err, domain.ErrPathTraversal))
		assert.True(t, f.exists(t, testRoot+"/a.txt"))
	})

	t.Run("into itself", func(t *testing.T) {
		f := newFixture(t)
		f.write(t, testRoot+"/dir/a.txt", "x")

		err := f.uc.Rename(f.session, "dir", "dir/inner", "")
		assert.True(t, errors.Is(err, domain.ErrInvalidName))
	})
}

func TestFileAccessUseCase_ShareAndPublicFetch(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/report.pdf", "%PDF")

	capability, err := f.uc.IssueShareToken(f.session, "report.pdf", "")
	require.NoError(t, err)

	f.clock.Advance(14 * time.Minute)
	content, err := f.uc.PublicFetch(capability, "report.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", content.Name)
	assert.Equal(t, int64(4), content.Size)
	assert.Equal(t, "%PDF", readAll(t, content))

	f.clock.Advance(2 * time.Minute)
	_, err = f.uc.PublicFetch(capability, "report.pdf", "")
	assert.True(t, errors.Is(err, domain.ErrTokenExpired))
}

func TestFileAccessUseCase_CapabilityScopedToFilename(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/a.txt", "a")
	f.write(t, testRoot+"/b.txt", "b")

	capability, err := f.uc.IssueShareToken(f.session, "a.txt", "")
	require.NoError(t, err)

	_, err = f.uc.PublicFetch(capability, "b.txt", "")
	assert.True(t, errors.Is(err, domain.ErrTokenScope))

	_, err = f.uc.PublicFetch(f.session, "a.txt", "")
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))

	_, err = f.uc.PublicFetch("", "a.txt", "")
	assert.True(t, errors.Is(err, domain.ErrTokenMissing))
}

// The capability binds a filename, not a folder: a token for docs/a.txt also
// opens other/a.txt. This pins the current scope so a change is deliberate.
func TestFileAccessUseCase_CapabilityIgnoresFolder(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/docs/a.txt", "docs")
	f.write(t, testRoot+"/other/a.txt", "other")

	capability, err := f.uc.IssueShareToken(f.session, "a.txt", "docs")
	require.NoError(t, err)

	content, err := f.uc.PublicFetch(capability, "a.txt", "other")
	require.NoError(t, err)
	assert.Equal(t, "other", readAll(t, content))

	_, err = f.uc.PublicFetch(capability, "a.txt", "../..")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestFileAccessUseCase_IssueShareToken(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/docs/a.txt", "a")

	_, err := f.uc.IssueShareToken(f.session, "missing.txt", "docs")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.IssueShareToken(f.session, "docs", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.IssueShareToken(f.session, "docs/a.txt", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.IssueShareToken(f.session, "", "docs")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.IssueShareToken(f.session, "passwd", "../../etc")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	capability, err := f.uc.IssueShareToken(f.session, "a.txt", "docs")
	require.NoError(t, err)
	assert.NotEmpty(t, capability)
}

func TestFileAccessUseCase_PublicFetchMissingOrDirectory(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/a.txt", "a")
	require.NoError(t, f.fs.MkdirAll(testRoot+"/sub/a.txt", 0o755))

	capability, err := f.uc.IssueShareToken(f.session, "a.txt", "")
	require.NoError(t, err)

	_, err = f.uc.PublicFetch(capability, "a.txt", "sub")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	require.NoError(t, f.fs.Remove(testRoot+"/a.txt"))
	_, err = f.uc.PublicFetch(capability, "a.txt", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))
}

func TestFileAccessUseCase_PrivateFetch(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/docs/a.txt", "private")

	content, err := f.uc.PrivateFetch(f.session, "a.txt", "docs")
	require.NoError(t, err)
	assert.Equal(t, "private", readAll(t, content))

	_, err = f.uc.PrivateFetch(f.session, "missing.txt", "docs")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.PrivateFetch(f.session, "../../etc/passwd", "docs")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))

	_, err = f.uc.PrivateFetch(f.session, "docs", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))
}

func TestFileAccessUseCase_Preview(t *testing.T) {
	f := newFixture(t)

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "line " + string(rune('a'+i))
	}
	f.write(t, testRoot+"/readme.md", strings.Join(lines, "\n")+"\n")
	f.write(t, testRoot+"/short.txt", "one\r\ntwo")
	f.write(t, testRoot+"/script.exe", "MZ")

	preview, err := f.uc.Preview(f.session, "readme.md", "")
	require.NoError(t, err)
	assert.Equal(t, lines[:15], preview)

	preview, err = f.uc.Preview(f.session, "short.txt", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, preview)

	_, err = f.uc.Preview(f.session, "script.exe", "")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedType))

	_, err = f.uc.Preview(f.session, "nothing.exe", "")
	assert.True(t, errors.Is(err, domain.ErrUnsupportedType))

	_, err = f.uc.Preview(f.session, "missing.txt", "")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))

	_, err = f.uc.Preview(f.session, "passwd.txt", "../..")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestFileAccessUseCase_PreviewLongLine(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/huge.txt", strings.Repeat("x", 1<<20)+"\nsecond\n")
	f.write(t, testRoot+"/oneline.txt", strings.Repeat("y", 3*previewLineLimit))

	preview, err := f.uc.Preview(f.session, "huge.txt", "")
	require.NoError(t, err)
	require.Len(t, preview, 2)
	assert.Len(t, preview[0], previewLineLimit)
	assert.Equal(t, "second", preview[1])

	preview, err = f.uc.Preview(f.session, "oneline.txt", "")
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Len(t, preview[0], previewLineLimit)
}

func TestFileAccessUseCase_PreviewCaseInsensitiveExtension(t *testing.T) {
	f := newFixture(t)
	f.write(t, testRoot+"/NOTES.TXT", "upper")

	preview, err := f.uc.Preview(f.session, "NOTES.TXT", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"upper"}, preview)
}

func TestFileAccessUseCase_ShortLinks(t *testing.T) {
	f := newFixture(t)

	code, err := f.uc.CreateShortLink(f.session, "https://files.example.com/public/a.txt?t=abc")
	require.NoError(t, err)

	target, err := f.uc.ResolveShortLink(code)
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.com/public/a.txt?t=abc", target)

	_, err = f.uc.ResolveShortLink("zzzzzz")
	assert.True(t, errors.Is(err, domain.ErrFileNotFound))
}

// mockFileStorage lets tests inject storage failures.
type mockFileStorage struct {
	root string

	statFunc          func(path string) (os.FileInfo, error)
	lstatFunc         func(path string) (os.FileInfo, error)
	readDirectoryFunc func(path string) ([]os.FileInfo, error)
	writeFileFunc     func(path string, file io.Reader) error
	removeFunc        func(path string) error
	moveFunc          func(oldPath, newPath string) error
}

func (m *mockFileStorage) Root() string { return m.root }

func (m *mockFileStorage) Stat(path string) (os.FileInfo, error) {
	if m.statFunc != nil {
		return m.statFunc(path)
	}
	return nil, os.ErrNotExist
}

func (m *mockFileStorage) Lstat(path string) (os.FileInfo, error) {
	if m.lstatFunc != nil {
		return m.lstatFunc(path)
	}
	return nil, os.ErrNotExist
}

func (m *mockFileStorage) ReadDirectory(path string) ([]os.FileInfo, error) {
	if m.readDirectoryFunc != nil {
		return m.readDirectoryFunc(path)
	}
	return nil, nil
}

func (m *mockFileStorage) WriteFile(path string, file io.Reader) error {
	if m.writeFileFunc != nil {
		return m.writeFileFunc(path, file)
	}
	return nil
}

func (m *mockFileStorage) Open(path string) (domain.ReadSeekCloser, error) {
	return nil, os.ErrNotExist
}

func (m *mockFileStorage) Remove(path string) error {
	if m.removeFunc != nil {
		return m.removeFunc(path)
	}
	return nil
}

func (m *mockFileStorage) Move(oldPath, newPath string) error {
	if m.moveFunc != nil {
		return m.moveFunc(oldPath, newPath)
	}
	return nil
}

func (m *mockFileStorage) CreateDirectory(path string) error { return nil }

type mockFileInfo struct {
	name  string
	isDir bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return 0 }
func (m *mockFileInfo) Mode() os.FileMode  { return 0 }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) ModTime() time.Time { return time.Time{} }
func (m *mockFileInfo) Sys() interface{}   { return nil }

func newMockUseCase(t *testing.T, storage *mockFileStorage) (*FileAccessUseCase, string) {
	t.Helper()
	tokens, err := auth.NewTokens(auth.TokenConfig{SessionSecret: []byte("s"), CapabilitySecret: []byte("c")})
	require.NoError(t, err)
	session, err := tokens.IssueSession("alice")
	require.NoError(t, err)
	uc, err := NewFileAccessUseCase(storage, nil, tokens, nil, testConfig())
	require.NoError(t, err)
	return uc, session
}

func TestNewFileAccessUseCase_InvalidNameRegex(t *testing.T) {
	cfg := testConfig()
	cfg.File.ValidNameRegex = "([unclosed"

	uc, err := NewFileAccessUseCase(&mockFileStorage{root: testRoot}, nil, nil, nil, cfg)
	assert.Error(t, err)
	assert.Nil(t, uc)
}

// newSymlinkFixture lays out root/link -> outside on disk, with
// outside/secret.txt the file that must stay unreachable.
func newSymlinkFixture(t *testing.T) (*fixture, string) {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "root")
	outside := filepath.Join(base, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("TOP SECRET"), 0o644))

	f := newFixtureOn(t, afero.NewOsFs(), root)
	require.NoError(t, os.Symlink(filepath.Join("..", "outside"), filepath.Join(root, "link")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(root, "secret.txt")))
	return f, filepath.Join(outside, "secret.txt")
}

func TestFileAccessUseCase_RefusesSymlinks(t *testing.T) {
	f, secret := newSymlinkFixture(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"private fetch through link dir", func() error {
			_, err := f.uc.PrivateFetch(f.session, "secret.txt", "link")
			return err
		}},
		{"private fetch of link file", func() error {
			_, err := f.uc.PrivateFetch(f.session, "secret.txt", "")
			return err
		}},
		{"preview through link dir", func() error {
			_, err := f.uc.Preview(f.session, "secret.txt", "link")
			return err
		}},
		{"delete through link dir", func() error {
			return f.uc.Delete(f.session, "secret.txt", "link")
		}},
		{"delete link dir", func() error {
			return f.uc.Delete(f.session, "link", "")
		}},
		{"list link dir", func() error {
			_, err := f.uc.List(f.session, "link")
			return err
		}},
		{"upload through link dir", func() error {
			return f.uc.Upload(f.session, "planted.txt", "link", strings.NewReader("x"))
		}},
		{"create folder through link dir", func() error {
			return f.uc.CreateFolder(f.session, "sub", "link")
		}},
		{"rename link dir", func() error {
			return f.uc.Rename(f.session, "link", "other", "")
		}},
		{"share through link dir", func() error {
			_, err := f.uc.IssueShareToken(f.session, "secret.txt", "link")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, errors.Is(err, domain.ErrPathTraversal), "got %v", err)
		})
	}

	data, err := os.ReadFile(secret)
	require.NoError(t, err)
	assert.Equal(t, "TOP SECRET", string(data))
	_, err = os.Stat(filepath.Join(filepath.Dir(secret), "planted.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileAccessUseCase_PublicFetchRefusesSymlink(t *testing.T) {
	f, _ := newSymlinkFixture(t)

	capability, err := f.uc.tokens.IssueCapability("secret.txt")
	require.NoError(t, err)

	_, err = f.uc.PublicFetch(capability, "secret.txt", "link")
	assert.True(t, errors.Is(err, domain.ErrPathTraversal))
}

func TestFileAccessUseCase_OsFsRegularFilesStillWork(t *testing.T) {
	f, _ := newSymlinkFixture(t)

	require.NoError(t, f.uc.Upload(f.session, "ok.txt", "docs", strings.NewReader("fine")))
	content, err := f.uc.PrivateFetch(f.session, "ok.txt", "docs")
	require.NoError(t, err)
	assert.Equal(t, "fine", readAll(t, content))
}

func TestFileAccessUseCase_StorageFailures(t *testing.T) {
	boom := errors.New("disk on fire")

	t.Run("upload write error", func(t *testing.T) {
		uc, session := newMockUseCase(t, &mockFileStorage{
			root:          testRoot,
			writeFileFunc: func(string, io.Reader) error { return boom },
		})

		err := uc.Upload(session, "a.txt", "", strings.NewReader("x"))
		assert.True(t, errors.Is(err, domain.ErrIOFailure))
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("writes land under root", func(t *testing.T) {
		var written string
		uc, session := newMockUseCase(t, &mockFileStorage{
			root: testRoot,
			writeFileFunc: func(path string, _ io.Reader) error {
				written = path
				return nil
			},
		})

		require.NoError(t, uc.Upload(session, "a.txt", "docs", strings.NewReader("x")))
		assert.Equal(t, testRoot+"/docs/a.txt", written)
	})

	t.Run("list read error", func(t *testing.T) {
		uc, session := newMockUseCase(t, &mockFileStorage{
			root:              testRoot,
			statFunc:          func(string) (os.FileInfo, error) { return &mockFileInfo{name: "storage", isDir: true}, nil },
			readDirectoryFunc: func(string) ([]os.FileInfo, error) { return nil, boom },
		})

		_, err := uc.List(session, "")
		assert.True(t, errors.Is(err, domain.ErrIOFailure))
	})

	t.Run("stat permission error", func(t *testing.T) {
		uc, session := newMockUseCase(t, &mockFileStorage{
			root:     testRoot,
			statFunc: func(string) (os.FileInfo, error) { return nil, os.ErrPermission },
		})

		err := uc.Delete(session, "a.txt", "")
		assert.True(t, errors.Is(err, domain.ErrIOFailure))
	})

	t.Run("rename move error", func(t *testing.T) {
		uc, session := newMockUseCase(t, &mockFileStorage{
			root: testRoot,
			statFunc: func(path string) (os.FileInfo, error) {
				if strings.HasSuffix(path, "old.txt") {
					return &mockFileInfo{name: "old.txt"}, nil
				}
				return nil, os.ErrNotExist
			},
			moveFunc: func(string, string) error { return boom },
		})

		err := uc.Rename(session, "old.txt", "new.txt", "")
		assert.True(t, errors.Is(err, domain.ErrIOFailure))
	})

	t.Run("delete remove error", func(t *testing.T) {
		uc, session := newMockUseCase(t, &mockFileStorage{
			root:       testRoot,
			statFunc:   func(string) (os.FileInfo, error) { return &mockFileInfo{name: "a.txt"}, nil },
			removeFunc: func(string) error { return boom },
		})

		err := uc.Delete(session, "a.txt", "")
		assert.True(t, errors.Is(err, domain.ErrIOFailure))
	})
}
