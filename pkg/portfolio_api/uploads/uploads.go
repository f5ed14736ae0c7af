// Package uploads stores multipart files under a fixed upload root and hands
// back relative URL references for persistence on content records.
package uploads

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
	"golang.org/x/image/draw"

	problem "github.com/scholarfolio/portfolio-api/pkg/portfolio_api/helpers/problem"
)

const (
	// MaxUploadSize caps a single multipart file.
	MaxUploadSize = 5 << 20 // 5MB

	// URLPrefix is the public path uploaded files are served under.
	URLPrefix = "/uploads"

	maxImageWidth = 1200
	jpegQuality   = 85
)

// Adapter writes uploaded files below Root and returns /uploads/<name>
// references.
type Adapter struct {
	Root string
}

func NewAdapter(root string) (*Adapter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return &Adapter{Root: root}, nil
}

// SaveImage decodes the uploaded image, downscales it to maxImageWidth when
// wider, re-encodes as JPEG and stores it. Returns the URL reference.
func (a *Adapter) SaveImage(file *multipart.FileHeader) (string, error) {
	if file.Size > MaxUploadSize {
		return "", problem.NewBadRequest("image", "file too large (max 5MB)")
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", problem.NewBadRequest("image", "not a valid image: "+err.Error())
	}

	bounds := img.Bounds()
	if w := bounds.Dx(); w > maxImageWidth {
		h := bounds.Dy() * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}

	name := generateFilename(".jpg")
	if err := os.WriteFile(filepath.Join(a.Root, name), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return URLPrefix + "/" + name, nil
}

// SaveFile stores the uploaded file verbatim, keeping its extension. Returns
// the URL reference and the declared content type.
func (a *Adapter) SaveFile(file *multipart.FileHeader) (string, string, error) {
	if file.Size > MaxUploadSize {
		return "", "", problem.NewBadRequest("file", "file too large (max 5MB)")
	}
	src, err := file.Open()
	if err != nil {
		return "", "", err
	}
	defer src.Close()

	name := generateFilename(strings.ToLower(filepath.Ext(file.Filename)))
	dst, err := os.Create(filepath.Join(a.Root, name))
	if err != nil {
		return "", "", fmt.Errorf("create upload: %w", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", "", fmt.Errorf("write upload: %w", err)
	}
	return URLPrefix + "/" + name, file.Header.Get("Content-Type"), nil
}

// Remove unlinks the file behind a URL reference. Best-effort cleanup: the
// caller decides whether to log the returned error, it never blocks the
// primary operation.
func (a *Adapter) Remove(ref string) error {
	path, ok := a.Resolve(ref)
	if !ok {
		return fmt.Errorf("not an upload reference: %s", ref)
	}
	return os.Remove(path)
}

// Resolve maps a URL reference back to a path inside the upload root.
// References pointing outside the root are rejected.
func (a *Adapter) Resolve(ref string) (string, bool) {
	name := strings.TrimPrefix(ref, URLPrefix+"/")
	if name == ref || name == "" {
		return "", false
	}
	name = filepath.Clean(name)
	if name == "." || strings.Contains(name, "..") || strings.ContainsRune(name, os.PathSeparator) {
		return "", false
	}
	return filepath.Join(a.Root, name), true
}

// generateFilename builds a collision-resistant name: millisecond timestamp
// plus a short random suffix plus the original extension.
func generateFilename(ext string) string {
	suffix, err := shortid.Generate()
	if err != nil {
		suffix = uuid.NewString()[:8]
	}
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), suffix, ext)
}
