// Package images определяет формат изображения по сигнатуре и проверяет, что оно декодируется.
package images

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/DRSN-tech/go-recommender/pkg/e"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Format - формат изображения.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWEBP Format = "webp"
	FormatBMP  Format = "bmp"
)

// maxPixels ограничивает размер холста до полного декодирования.
const maxPixels = 50_000_000

// MimeType возвращает MIME-тип формата.
func (f Format) MimeType() string {
	return "image/" + string(f)
}

// Extension возвращает расширение файла без точки.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Detect определяет формат по магическим байтам.
func Detect(data []byte) (Format, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		return FormatJPEG, nil
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, nil
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return FormatGIF, nil
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWEBP, nil
	case len(data) >= 14 && string(data[:2]) == "BM":
		return FormatBMP, nil
	default:
		return "", e.ErrUnsupportedMediaType
	}
}

// kindError несёт несколько сентинелов под одним текстом.
type kindError struct {
	msg   string
	kinds []error
}

func (k *kindError) Error() string   { return k.msg }
func (k *kindError) Unwrap() []error { return k.kinds }

// Validate проверяет сигнатуру и полностью декодирует изображение.
// Возвращает e.ErrMalformedImage, если данные не являются целым изображением поддерживаемого формата;
// для неизвестной сигнатуры ошибка дополнительно совпадает с e.ErrUnsupportedMediaType.
func Validate(data []byte) (Format, error) {
	if _, err := decode(data); err != nil {
		return "", err
	}
	format, _ := Detect(data)
	return format, nil
}

func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", e.ErrMalformedImage)
	}

	format, err := Detect(data)
	if err != nil {
		return nil, &kindError{
			msg:   e.ErrMalformedImage.Error() + ": unsupported format",
			kinds: []error{e.ErrMalformedImage, e.ErrUnsupportedMediaType},
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrMalformedImage, format, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: zero dimensions", e.ErrMalformedImage, format)
	}
	if cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %s: %dx%d exceeds pixel limit", e.ErrMalformedImage, format, cfg.Width, cfg.Height)
	}

	// заголовок целого файла ещё не гарантирует целые данные
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", e.ErrMalformedImage, format, err)
	}

	return img, nil
}

// ForProvider готовит изображение к отправке во внешний сервис извлечения:
// BMP перекодируется в PNG, остальные форматы передаются как есть.
func ForProvider(data []byte) ([]byte, Format, error) {
	img, err := decode(data)
	if err != nil {
		return nil, "", err
	}
	if format, _ := Detect(data); format != FormatBMP {
		return data, format, nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("%w: bmp to png: %v", e.ErrMalformedImage, err)
	}

	return buf.Bytes(), FormatPNG, nil
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
}

// IsImageName сообщает, похоже ли имя файла на изображение.
func IsImageName(name string) bool {
	_, ok := imageExtensions[strings.ToLower(path.Ext(name))]
	return ok
}

// IsZip сообщает, начинаются ли данные с сигнатуры zip-архива.
func IsZip(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte("PK\x05\x06"))
}
