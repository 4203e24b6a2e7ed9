package media

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
	"github.com/alphazero/academy/storage/objectstore"
)

func newTestService(t *testing.T) (*Service, *objectstore.LocalStorage) {
	t.Helper()
	store, err := objectstore.NewLocalStorage(t.TempDir(), "http://cdn.test/media")
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(store, &core.Config{Storage: core.StorageConfig{ReaperPrefix: "tmp/"}})
	svc.now = func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// pngHeader returns a 1x1 PNG whose header declares w×h pixels.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngBytes(t, 1, 1)
	// signature (8), IHDR length (4), "IHDR" (4), width (4), height (4), ..., CRC at 29
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDownscale(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		maxW, maxH   int
		wantW, wantH int
	}{
		{"fits", 300, 200, 512, 512, 300, 200},
		{"square", 2048, 2048, 512, 512, 512, 512},
		{"landscape into thumbnail", 3840, 2160, 1280, 720, 1280, 720},
		{"portrait into thumbnail", 1000, 2000, 1280, 720, 360, 720},
		{"wide avatar", 2000, 500, 512, 512, 512, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downscale(image.NewRGBA(image.Rect(0, 0, tt.w, tt.h)), tt.maxW, tt.maxH).Bounds()
			if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
				t.Errorf("Downscale() = %dx%d; want %dx%d", got.Dx(), got.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestService_UploadImage(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	up, err := svc.UploadImage(ctx, KindAvatar, bytes.NewReader(pngBytes(t, 1024, 768)))
	if err != nil {
		t.Fatalf("UploadImage() error: %v", err)
	}
	if !strings.HasPrefix(up.Key, "avatars/20240309-") || !strings.HasSuffix(up.Key, ".webp") {
		t.Errorf("Key = %q", up.Key)
	}
	if up.URL != "http://cdn.test/media/"+up.Key {
		t.Errorf("URL = %q", up.URL)
	}
	if up.ContentType != "image/webp" || up.Width != 512 || up.Height != 384 {
		t.Errorf("Upload = %+v; want a 512x384 webp", up)
	}
	objs, _ := store.List(ctx, "avatars/")
	if len(objs) != 1 {
		t.Errorf("stored objects = %d; want 1", len(objs))
	}

	if _, err = svc.UploadImage(ctx, "banners", bytes.NewReader(pngBytes(t, 10, 10))); err != ErrUnknownKind {
		t.Errorf("unknown kind: error = %v; want %v", err, ErrUnknownKind)
	}
	if _, err = svc.UploadImage(ctx, KindAvatar, strings.NewReader("%PDF-1.4 not an image")); err != ErrUnsupportedType {
		t.Errorf("pdf as image: error = %v; want %v", err, ErrUnsupportedType)
	}
	if _, err = svc.UploadImage(ctx, KindAvatar, strings.NewReader("")); err != ErrEmptyFile {
		t.Errorf("empty: error = %v; want %v", err, ErrEmptyFile)
	}
}

func TestService_UploadImage_pixelCap(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	bomb := pngHeader(t, 30000, 30000)
	if len(bomb) > 1024 {
		t.Fatalf("header image is %d bytes", len(bomb))
	}
	_, err := svc.UploadImage(ctx, KindContent, bytes.NewReader(bomb))
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	if !ok || len(vErr.Fields) != 1 || vErr.Fields[0].Field != "file" {
		t.Fatalf("UploadImage() error = %v; want a file validation error", err)
	}
	if objs, _ := store.List(ctx, ""); len(objs) != 0 {
		t.Errorf("stored objects = %d; want 0", len(objs))
	}

	if _, err = svc.UploadImage(ctx, KindContent, bytes.NewReader(pngHeader(t, 0, 1))); errors.Cause(err) != ErrUnsupportedType {
		t.Errorf("UploadImage(0x1 header) error = %v; want %v", err, ErrUnsupportedType)
	}
}

func TestService_UploadDocument(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	pdf := "%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n"

	up, err := svc.UploadDocument(ctx, "syllabus.PDF", strings.NewReader(pdf))
	if err != nil {
		t.Fatalf("UploadDocument() error: %v", err)
	}
	if !strings.HasPrefix(up.Key, "materials/20240309-") || !strings.HasSuffix(up.Key, ".pdf") {
		t.Errorf("Key = %q", up.Key)
	}
	if up.ContentType != "application/pdf" || up.Size != int64(len(pdf)) {
		t.Errorf("Upload = %+v", up)
	}

	if _, err = svc.UploadDocument(ctx, "notes.txt", strings.NewReader("plain text notes")); err != ErrUnsupportedType {
		t.Errorf("text: error = %v; want %v", err, ErrUnsupportedType)
	}
	big := padded("%PDF-1.4\n", MaxDocumentSize+1)
	if _, err = svc.UploadDocument(ctx, "big.pdf", strings.NewReader(big)); err != ErrTooLarge {
		t.Errorf("too large: error = %v; want %v", err, ErrTooLarge)
	}
}

func padded(head string, size int) string {
	return head + strings.Repeat("x", size-len(head))
}

func TestService_Discard(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	up, err := svc.UploadImage(ctx, KindThumbnail, bytes.NewReader(pngBytes(t, 64, 64)))
	if err != nil {
		t.Fatal(err)
	}
	if err = svc.Discard(ctx, up.URL); err != nil {
		t.Fatalf("Discard() error: %v", err)
	}
	objs, _ := store.List(ctx, "")
	if len(objs) != 1 || objs[0].Key != "tmp/"+up.Key {
		t.Errorf("objects = %+v; want only tmp/%s", objs, up.Key)
	}

	// foreign URLs are left alone
	if err = svc.Discard(ctx, "https://img.youtube.com/vi/x/0.jpg"); err != nil {
		t.Errorf("Discard(foreign) error: %v", err)
	}
}
