package usecase

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/images"
)

// ArchiveLimits ограничивает распаковку архива. Нулевые значения - без ограничений.
type ArchiveLimits struct {
	MaxEntries       int
	MaxImageBytes    int64
	MaxImagesPerUnit int
}

type archiveEntry struct {
	segments []string
	file     *zip.File
	dir      bool
}

// UnpackArchive раскладывает zip-архив на единицы извлечения: одна единица на папку верхнего уровня,
// в порядке первого появления. Если все папки лежат внутри одного общего корня, корень пропускается.
// Файлы в корне, служебные каталоги (__MACOSX) и скрытые файлы игнорируются, как и не-изображения.
func UnpackArchive(data []byte, limits ArchiveLimits) ([]domain.ExtractionUnit, error) {
	const op = "UnpackArchive"

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidArchive, err))
	}

	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d entries exceed limit %d", e.ErrInvalidArchive, len(reader.File), limits.MaxEntries))
	}

	entries := make([]archiveEntry, 0, len(reader.File))
	for _, f := range reader.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		segments, ok := splitEntryPath(name)
		if !ok {
			continue
		}
		entries = append(entries, archiveEntry{
			segments: segments,
			file:     f,
			dir:      f.FileInfo().IsDir() || strings.HasSuffix(name, "/"),
		})
	}

	strip := wrappingRootDepth(entries)

	units := make([]domain.ExtractionUnit, 0)
	byRef := make(map[string]int)
	unitFor := func(ref string) *domain.ExtractionUnit {
		idx, ok := byRef[ref]
		if !ok {
			idx = len(units)
			byRef[ref] = idx
			units = append(units, domain.ExtractionUnit{Ref: ref, Position: idx})
		}
		return &units[idx]
	}

	for _, entry := range entries {
		segments := entry.segments[strip:]
		if len(segments) == 0 {
			continue
		}
		if entry.dir {
			unitFor(segments[0])
			continue
		}
		if len(segments) < 2 {
			continue // файл в корне архива не относится ни к одной папке
		}

		unit := unitFor(segments[0])
		fileName := strings.Join(segments[1:], "/")
		if !images.IsImageName(fileName) {
			continue
		}
		if limits.MaxImagesPerUnit > 0 && len(unit.Images) >= limits.MaxImagesPerUnit {
			continue
		}

		payload, err := readEntry(entry.file, limits.MaxImageBytes)
		if err != nil {
			unit.Problems = append(unit.Problems, fmt.Sprintf("%s: %v", fileName, err))
			continue
		}

		mimeType := ""
		if format, err := images.Detect(payload); err == nil {
			mimeType = format.MimeType()
		}
		unit.Images = append(unit.Images, domain.Image{Name: fileName, Data: payload, MimeType: mimeType})
	}

	if len(units) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyArchive)
	}

	return units, nil
}

// UnpackImages собирает все изображения архива без разбиения на папки, в порядке записей.
// Используется, когда архив описывает один товар.
func UnpackImages(data []byte, limits ArchiveLimits) ([]domain.Image, error) {
	const op = "UnpackImages"

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrInvalidArchive, err))
	}
	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d entries exceed limit %d", e.ErrInvalidArchive, len(reader.File), limits.MaxEntries))
	}

	out := make([]domain.Image, 0)
	for _, f := range reader.File {
		name := strings.ReplaceAll(f.Name, "\\", "/")
		segments, ok := splitEntryPath(name)
		if !ok || f.FileInfo().IsDir() || strings.HasSuffix(name, "/") {
			continue
		}
		fileName := strings.Join(segments, "/")
		if !images.IsImageName(fileName) {
			continue
		}
		if limits.MaxImagesPerUnit > 0 && len(out) >= limits.MaxImagesPerUnit {
			break
		}

		payload, err := readEntry(f, limits.MaxImageBytes)
		if err != nil {
			if !errors.Is(err, e.ErrFileTooLarge) {
				err = fmt.Errorf("%w: %v", e.ErrInvalidArchive, err)
			}
			return nil, e.Wrap(op, fmt.Errorf("%s: %w", fileName, err))
		}
		out = append(out, domain.Image{Name: fileName, Data: payload})
	}

	if len(out) == 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: no image files found", e.ErrInvalidArchive))
	}

	return out, nil
}

// splitEntryPath разбивает путь записи на сегменты. false - запись нужно пропустить.
func splitEntryPath(name string) ([]string, bool) {
	segments := make([]string, 0, 4)
	for _, s := range strings.Split(name, "/") {
		switch {
		case s == "" || s == ".":
			continue
		case s == ".." || s == "__MACOSX" || strings.HasPrefix(s, "."):
			return nil, false
		}
		segments = append(segments, s)
	}
	return segments, len(segments) > 0
}

// wrappingRootDepth возвращает 1, если все записи лежат в одном корневом каталоге,
// а файлы находятся не выше второго уровня внутри него.
func wrappingRootDepth(entries []archiveEntry) int {
	if len(entries) == 0 {
		return 0
	}

	root := entries[0].segments[0]
	hasFiles := false
	for _, entry := range entries {
		if entry.segments[0] != root {
			return 0
		}
		if !entry.dir {
			hasFiles = true
			if len(entry.segments) < 3 {
				return 0
			}
		}
	}

	if !hasFiles {
		return 0
	}
	return 1
}

func readEntry(f *zip.File, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && f.UncompressedSize64 > uint64(maxBytes) {
		return nil, fmt.Errorf("%w: %d bytes", e.ErrFileTooLarge, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if maxBytes > 0 {
		r = io.LimitReader(rc, maxBytes+1)
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(payload)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", e.ErrFileTooLarge, maxBytes)
	}

	return payload, nil
}

// imageNames возвращает базовые имена файлов единицы.
func imageNames(unit domain.ExtractionUnit) []string {
	names := make([]string, 0, len(unit.Images))
	for _, img := range unit.Images {
		names = append(names, path.Base(img.Name))
	}
	return names
}
