package images

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	"golang.org/x/image/bmp"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func encodeJPEG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func encodeGIF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(), nil); err != nil {
		t.Fatalf("gif encode: %v", err)
	}
	return buf.Bytes()
}

func encodeBMP(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage()); err != nil {
		t.Fatalf("bmp encode: %v", err)
	}
	return buf.Bytes()
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
		err  bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, FormatJPEG, false},
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), FormatPNG, false},
		{"gif87", []byte("GIF87a...."), FormatGIF, false},
		{"gif89", []byte("GIF89a...."), FormatGIF, false},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWEBP, false},
		{"bmp", []byte("BM\x00\x00\x00\x00\x00\x00\x00\x00\x36\x00\x00\x00"), FormatBMP, false},
		{"text", []byte("hello world"), "", true},
		{"short riff", []byte("RIFF"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.data)
			if tt.err {
				if !errors.Is(err, e.ErrUnsupportedMediaType) {
					t.Fatalf("expected ErrUnsupportedMediaType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := map[string][]byte{
		"png":  encodePNG(t),
		"jpeg": encodeJPEG(t),
		"gif":  encodeGIF(t),
		"bmp":  encodeBMP(t),
	}
	for name, data := range valid {
		if _, err := Validate(data); err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
		}
	}

	corrupt := [][]byte{
		nil,
		[]byte("not an image"),
		append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...),
		{0xFF, 0xD8, 0x00, 0x01},
	}
	for i, data := range corrupt {
		if _, err := Validate(data); !errors.Is(err, e.ErrMalformedImage) {
			t.Errorf("case %d: expected ErrMalformedImage, got %v", i, err)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	if FormatJPEG.Extension() != "jpg" || FormatPNG.Extension() != "png" {
		t.Errorf("unexpected extensions")
	}
	if FormatWEBP.MimeType() != "image/webp" {
		t.Errorf("unexpected mime type %q", FormatWEBP.MimeType())
	}
	for name, want := range map[string]bool{
		"a/b/photo.JPG": true,
		"x.jpeg":        true,
		"x.webp":        true,
		"scan.BMP":      true,
		"notes.txt":     false,
		"README":        false,
	} {
		if got := IsImageName(name); got != want {
			t.Errorf("IsImageName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestValidateTruncatedImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		img.Set(x, x, color.RGBA{G: uint8(x * 4), A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}

	// сигнатура и IHDR целы, данных нет
	truncated := buf.Bytes()[:40]
	if _, _, err := image.DecodeConfig(bytes.NewReader(truncated)); err != nil {
		t.Fatalf("header should still decode: %v", err)
	}

	if _, err := Validate(truncated); !errors.Is(err, e.ErrMalformedImage) {
		t.Fatalf("expected ErrMalformedImage for truncated png, got %v", err)
	}
}

func TestValidateUnsupportedFormatMessage(t *testing.T) {
	_, err := Validate([]byte("plain text payload"))
	if !errors.Is(err, e.ErrMalformedImage) || !errors.Is(err, e.ErrUnsupportedMediaType) {
		t.Fatalf("expected both malformed and unsupported kinds, got %v", err)
	}
	if n := strings.Count(err.Error(), e.ErrValidation.Error()); n != 1 {
		t.Errorf("validation prefix repeated %d times in %q", n, err.Error())
	}
}

func TestForProvider(t *testing.T) {
	pngData := encodePNG(t)
	out, format, err := ForProvider(pngData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatPNG || !bytes.Equal(out, pngData) {
		t.Errorf("png should pass through unchanged, got format %q", format)
	}

	out, format, err = ForProvider(encodeBMP(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format != FormatPNG {
		t.Fatalf("bmp should be sent as png, got %q", format)
	}
	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("transcoded payload is not png: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("unexpected bounds %v", b)
	}

	if _, _, err := ForProvider([]byte{0xFF, 0xD8, 0x00}); !errors.Is(err, e.ErrMalformedImage) {
		t.Errorf("expected ErrMalformedImage, got %v", err)
	}
}

func TestIsZip(t *testing.T) {
	if !IsZip([]byte("PK\x03\x04rest")) {
		t.Error("zip signature not detected")
	}
	if IsZip(encodePNG(t)) {
		t.Error("png detected as zip")
	}
}
