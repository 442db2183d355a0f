package upload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// MaxFileSize caps uploads at 5 MiB.
const MaxFileSize = 5 << 20

// Category identifies the kind of asset being uploaded and the media
// subdirectory it lands in.
type Category string

const (
	CategoryBugAttachment  Category = "bug_attachment"
	CategoryProfilePicture Category = "profile_picture"
	CategoryProjectLogo    Category = "project_logo"
)

var ErrUnknownCategory = errors.New("unknown upload type")

func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryBugAttachment, CategoryProfilePicture, CategoryProjectLogo:
		return Category(s), nil
	default:
		return "", ErrUnknownCategory
	}
}

// Subdir returns the media-root subdirectory for the category.
func (c Category) Subdir() string {
	switch c {
	case CategoryBugAttachment:
		return "bug_attachments"
	case CategoryProfilePicture:
		return "profile_pictures"
	case CategoryProjectLogo:
		return "project_logos"
	}
	return ""
}

// AllowsContentType enforces the per-category allow-list. Bug attachments
// accept only PNG and GIF, the other categories accept any image type.
func (c Category) AllowsContentType(contentType string) bool {
	switch c {
	case CategoryBugAttachment:
		return contentType == "image/png" || contentType == "image/gif"
	default:
		return len(contentType) > 6 && contentType[:6] == "image/"
	}
}

// Storage writes uploaded files under a media root, one subdirectory per
// category. Filenames are uuid-qualified so concurrent uploads of the same
// original name never collide.
type Storage struct {
	root string
}

func NewStorage(root string) *Storage {
	return &Storage{root: root}
}

// Save streams src to disk and returns the stored filename and the
// media-relative path. The original filename is kept as a suffix for
// readability.
func (s *Storage) Save(category Category, originalName string, src io.Reader) (filename, relPath string, err error) {
	dir := filepath.Join(s.root, category.Subdir())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("creating media directory: %w", err)
	}

	filename = uuid.NewString() + "_" + filepath.Base(originalName)
	relPath = category.Subdir() + "/" + filename

	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", "", fmt.Errorf("creating file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", "", fmt.Errorf("writing file: %w", err)
	}
	return filename, relPath, nil
}
