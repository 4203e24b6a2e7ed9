// Package media validates, transcodes and stores uploaded files.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"path"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"github.com/alphazero/academy/core"
)

const (
	MaxImageSize    = 10 << 20
	MaxDocumentSize = 20 << 20
	// MaxImagePixels caps the decoded size of an image, whatever its compressed size.
	MaxImagePixels = 40_000_000

	webpQuality = 80
	webpType    = "image/webp"
	documentDir = "materials"
)

var (
	// errors
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file is too large")
	ErrEmptyFile       = errors.New("file is empty")
	ErrUnknownKind     = errors.New("unknown image kind")
)

// Image kinds and the box they are downscaled to fit.
const (
	KindAvatar    = "avatars"
	KindThumbnail = "thumbnails"
	KindContent   = "content"
)

type bounds struct{ w, h int }

var kindBounds = map[string]bounds{
	KindAvatar:    {512, 512},
	KindThumbnail: {1280, 720},
	KindContent:   {1600, 1600},
}

var imageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/x-ole-storage",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type Service struct {
	storage     core.FileStorage
	trashPrefix string
	now         func() time.Time
}

func NewService(storage core.FileStorage, conf *core.Config) *Service {
	return &Service{
		storage:     storage,
		trashPrefix: conf.Storage.ReaperPrefix,
		now:         time.Now,
	}
}

func (svc *Service) newKey(dir, ext string) string {
	return fmt.Sprintf("%s/%s-%s%s", dir, svc.now().UTC().Format("20060102"), uuid.NewString(), ext)
}

// readLimited reads r entirely, failing when it holds more than max bytes.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > max {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	return data, nil
}

func detect(data []byte, allowed []string) (string, bool) {
	mt := mimetype.Detect(data)
	for ; mt != nil; mt = mt.Parent() {
		for _, a := range allowed {
			if mt.Is(a) {
				return a, true
			}
		}
	}
	return "", false
}

// UploadImage stores r as a WebP image of the given kind, downscaled to fit the kind's box.
func (svc *Service) UploadImage(ctx context.Context, kind string, r io.Reader) (Upload, error) {
	box, ok := kindBounds[kind]
	if !ok {
		return Upload{}, ErrUnknownKind
	}
	data, err := readLimited(r, MaxImageSize)
	if err != nil {
		return Upload{}, err
	}
	ct, ok := detect(data, imageTypes)
	if !ok {
		return Upload{}, ErrUnsupportedType
	}
	cfg, err := decodeConfig(ct, data)
	if err != nil {
		return Upload{}, errors.Wrap(ErrUnsupportedType, err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return Upload{}, core.NewFieldError("file", fmt.Sprintf("image must not exceed %d megapixels", MaxImagePixels/1_000_000))
	}
	img, err := decodeImage(ct, data)
	if err != nil {
		return Upload{}, errors.Wrap(ErrUnsupportedType, err.Error())
	}
	img = Downscale(img, box.w, box.h)

	buf := new(bytes.Buffer)
	if err = webp.Encode(buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return Upload{}, errors.Wrap(err, "encoding webp")
	}
	up := Upload{
		Key:         svc.newKey(kind, ".webp"),
		ContentType: webpType,
		Size:        int64(buf.Len()),
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
	}
	if err = svc.storage.Put(ctx, up.Key, up.ContentType, buf); err != nil {
		return Upload{}, err
	}
	up.URL = svc.storage.URL(up.Key)
	return up, nil
}

// UploadDocument stores a PDF or Word document unchanged under materials/.
func (svc *Service) UploadDocument(ctx context.Context, filename string, r io.Reader) (Upload, error) {
	data, err := readLimited(r, MaxDocumentSize)
	if err != nil {
		return Upload{}, err
	}
	ct, ok := detect(data, documentTypes)
	if !ok {
		return Upload{}, ErrUnsupportedType
	}
	var ext string
	switch ct {
	case "application/pdf":
		ext = ".pdf"
	case "application/msword":
		ext = ".doc"
	case "application/x-ole-storage":
		// generic OLE container, trusted as a Word document only by its name
		if strings.ToLower(path.Ext(filename)) != ".doc" {
			return Upload{}, ErrUnsupportedType
		}
		ct, ext = "application/msword", ".doc"
	default:
		ext = ".docx"
	}
	up := Upload{
		Key:         svc.newKey(documentDir, ext),
		ContentType: ct,
		Size:        int64(len(data)),
	}
	if err = svc.storage.Put(ctx, up.Key, ct, bytes.NewReader(data)); err != nil {
		return Upload{}, err
	}
	up.URL = svc.storage.URL(up.Key)
	return up, nil
}

// KeyFromURL returns the storage key behind a URL served by the storage, if any.
func (svc *Service) KeyFromURL(rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	base := svc.storage.URL("")
	if strings.HasPrefix(rawURL, base) {
		key := strings.TrimPrefix(rawURL, base)
		return key, key != ""
	}
	return "", false
}

// Discard moves the object behind rawURL to the trash prefix, where the reaper purges it.
// URLs not served by the storage are ignored.
func (svc *Service) Discard(ctx context.Context, rawURL string) error {
	key, ok := svc.KeyFromURL(rawURL)
	if !ok || strings.HasPrefix(key, svc.trashPrefix) {
		return nil
	}
	return svc.storage.Move(ctx, key, svc.trashPrefix+key)
}

// decodeConfig reads the dimensions of an image without decoding its pixels.
func decodeConfig(contentType string, data []byte) (image.Config, error) {
	r := bytes.NewReader(data)
	switch contentType {
	case "image/jpeg":
		return jpeg.DecodeConfig(r)
	case "image/png":
		return png.DecodeConfig(r)
	case "image/webp":
		return webp.DecodeConfig(r)
	case "image/gif":
		return gif.DecodeConfig(r)
	}
	return image.Config{}, errors.Errorf("cannot decode %s", contentType)
}

func decodeImage(contentType string, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch contentType {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/webp":
		return webp.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	}
	return nil, errors.Errorf("cannot decode %s", contentType)
}

// Downscale shrinks src to fit a maxW×maxH box keeping its aspect ratio. Smaller images are
// returned unchanged.
func Downscale(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxW && h <= maxH {
		return src
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Max(1, math.Round(float64(w)*scale)))
	nh := int(math.Max(1, math.Round(float64(h)*scale)))
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
