package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"

	"noticeboard/internal/common"
	"noticeboard/internal/domain/model"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/spf13/afero"
)

const DefaultMaxFileSize int64 = 5 << 20

var (
	ErrUnsupportedFileType = common.NewError(common.ErrValidation, "File type not allowed, use pdf, jpg, jpeg or png")
	ErrFileTooLarge        = common.NewError(common.ErrValidation, "File exceeds the upload size limit")
	ErrInvalidFilename     = common.NewError(common.ErrBadRequest, "Invalid filename")
)

var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

type Upload struct {
	Filename string
	Size     int64 // declared size; -1 when unknown
	Content  io.Reader
}

type StoredFile struct {
	Filename string
	FileType model.FileType
	Size     int64
}

type FileInfo struct {
	Name    string
	ModTime time.Time
}

// AttachmentStore keeps uploaded bytes in a flat directory. Stored names are
// "{yyyymmddhhmmss}-{8 hex}_{slug}.{ext}"; the random part keeps two uploads of
// the same file within one second from colliding, and files are opened with
// O_EXCL so an existing name is never overwritten.
type AttachmentStore struct {
	fs      afero.Fs
	maxSize int64
	now     func() time.Time
	suffix  func() string
}

func NewAttachmentStore(fs afero.Fs, maxSize int64) *AttachmentStore {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &AttachmentStore{
		fs:      fs,
		maxSize: maxSize,
		now:     time.Now,
		suffix: func() string {
			return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		},
	}
}

// NewOSAttachmentStore roots the store at dir on the local disk.
func NewOSAttachmentStore(dir string, maxSize int64) (*AttachmentStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return NewAttachmentStore(afero.NewBasePathFs(afero.NewOsFs(), dir), maxSize), nil
}

func (s *AttachmentStore) MaxSize() int64 {
	return s.maxSize
}

// Validate checks the extension allow-list and the declared size. It runs
// before anything is written anywhere.
func (s *AttachmentStore) Validate(filename string, size int64) (string, error) {
	ext := Extension(filename)
	if _, ok := allowedExtensions[ext]; !ok {
		return "", ErrUnsupportedFileType
	}
	if size > s.maxSize {
		return "", ErrFileTooLarge
	}
	return ext, nil
}

// Inspect runs every check that can reject an upload: extension, declared
// size and sniffed content. The returned upload replays the bytes consumed
// while sniffing.
func (s *AttachmentStore) Inspect(up Upload) (Upload, error) {
	ext, err := s.Validate(up.Filename, up.Size)
	if err != nil {
		return up, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(up.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return up, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if !contentMatches(ext, head) {
		return up, ErrUnsupportedFileType
	}

	up.Content = io.MultiReader(bytes.NewReader(head), up.Content)
	return up, nil
}

func (s *AttachmentStore) Save(up Upload) (*StoredFile, error) {
	up, err := s.Inspect(up)
	if err != nil {
		return nil, err
	}
	ext := Extension(up.Filename)

	name := s.storedName(up.Filename, ext)
	f, err := s.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w: %v", name, common.ErrDependency, err)
	}

	written, err := io.Copy(f, io.LimitReader(up.Content, s.maxSize+1))
	closeErr := f.Close()
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close %s: %w: %v", name, common.ErrDependency, closeErr)
	}
	if err != nil {
		_ = s.fs.Remove(name)
		if errors.Is(err, ErrFileTooLarge) || errors.Is(err, common.ErrDependency) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to write %s: %w: %v", name, common.ErrDependency, err)
	}

	return &StoredFile{Filename: name, FileType: FileTypeFor(ext), Size: written}, nil
}

// Delete is idempotent: a file that is already gone counts as deleted.
func (s *AttachmentStore) Delete(name string) error {
	if err := checkStoredName(name); err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w: %v", name, common.ErrDependency, err)
	}
	return nil
}

func (s *AttachmentStore) Open(name string) (afero.File, error) {
	if err := checkStoredName(name); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("attachment %s: %w", name, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w: %v", name, common.ErrDependency, err)
	}
	return f, nil
}

// List returns the regular files currently held by the store.
func (s *AttachmentStore) List() ([]FileInfo, error) {
	entries, err := afero.ReadDir(s.fs, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w: %v", common.ErrDependency, err)
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, FileInfo{Name: e.Name(), ModTime: e.ModTime()})
	}
	return files, nil
}

func (s *AttachmentStore) storedName(original, ext string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return fmt.Sprintf("%s-%s_%s.%s", s.now().Format("20060102150405"), s.suffix(), SanitizeBaseName(base), ext)
}

// SanitizeBaseName strips path separators and anything that is not a safe
// filename character.
func SanitizeBaseName(base string) string {
	clean := slug.Make(base)
	if clean == "" {
		return "attachment"
	}
	return clean
}

func Extension(filename string) string {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func FileTypeFor(ext string) model.FileType {
	if ext == "pdf" {
		return model.FileTypePDF
	}
	return model.FileTypeImage
}

func contentMatches(ext string, head []byte) bool {
	if len(head) == 0 {
		return false
	}
	mt := mimetype.Detect(head)
	if ext == "pdf" {
		return mt.Is("application/pdf")
	}
	return mt.Is("image/jpeg") || mt.Is("image/png")
}

func checkStoredName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return ErrInvalidFilename
	}
	return nil
}
