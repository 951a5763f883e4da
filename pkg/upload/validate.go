package upload

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/vango-dev/tumorscope/internal/errors"
)

// MaxFileSize is the largest accepted file, 16 MiB.
const MaxFileSize int64 = 16 << 20

// Error codes returned by Validate.
const (
	CodeInvalidType = "V001"
	CodeTooLarge    = "V002"
)

// AcceptedTypes lists the MIME types a selection may have.
var AcceptedTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"application/dicom",
}

// AcceptAttr is the value for the file input's accept attribute.
const AcceptAttr = "image/jpeg,image/jpg,image/png,application/dicom,.dcm"

// FileInfo is the metadata of a file before its content is read.
type FileInfo struct {
	Name string
	Type string
	Size int64

	// Ref is the client's handle for the file. It does not take part in
	// validation; the controller echoes it back so the client uploads the
	// right file.
	Ref uint64
}

// Validate checks type first, then size against MaxFileSize.
func Validate(info FileInfo) error {
	return ValidateWithLimit(info, MaxFileSize)
}

// ValidateWithLimit is Validate with a custom size limit.
func ValidateWithLimit(info FileInfo, limit int64) error {
	if !AcceptedType(info.Type) && !HasDICOMSuffix(info.Name) {
		return errors.New(CodeInvalidType).
			WithDetail(fmt.Sprintf("name=%q type=%q", info.Name, info.Type))
	}
	if info.Size > limit {
		return errors.New(CodeTooLarge).
			WithDetail(fmt.Sprintf("size=%d limit=%d", info.Size, limit))
	}
	return nil
}

// AcceptedType reports whether contentType is in AcceptedTypes. Parameters
// such as "; charset" are ignored.
func AcceptedType(contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	for _, t := range AcceptedTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// HasDICOMSuffix reports whether name ends in .dcm, case-insensitively.
func HasDICOMSuffix(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".dcm")
}

// allowedExtensions are the extensions the classification endpoint accepts.
var allowedExtensions = map[string]bool{
	"png":   true,
	"jpg":   true,
	"jpeg":  true,
	"dcm":   true,
	"dicom": true,
}

// AllowedExtension reports whether the classification endpoint accepts a
// file with this name. The name must have an extension.
func AllowedExtension(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(name[i+1:])]
}

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
	repeatUnder = regexp.MustCompile(`_+`)
	validID     = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]*$`)
)

// SanitizeFilename reduces a client filename to a safe ASCII name. Path
// components are dropped, whitespace becomes underscores and anything
// outside [A-Za-z0-9_.-] is removed. Returns "upload" if nothing is left.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	name = repeatUnder.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "upload"
	}
	return name
}

// ArchiveID names an archived upload "<unix seconds>_<sanitized name>".
func ArchiveID(now time.Time, filename string) string {
	return fmt.Sprintf("%d_%s", now.Unix(), SanitizeFilename(filename))
}

// ValidID reports whether id is safe to use as a file or object name.
func ValidID(id string) bool {
	return len(id) <= 255 && validID.MatchString(id) &&
		!strings.Contains(id, "..") && !strings.HasSuffix(id, metaSuffix)
}
