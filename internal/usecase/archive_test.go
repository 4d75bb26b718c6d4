package usecase_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

func TestUnpackArchiveGroupsByFolder(t *testing.T) {
	img := pngBytes(t)
	data := buildZip(t,
		zipEntry{name: "mug/"},
		zipEntry{name: "mug/front.png", data: img},
		zipEntry{name: "bottle/side.png", data: img},
		zipEntry{name: "mug/back.png", data: img},
		zipEntry{name: "readme.txt", data: []byte("root files are ignored")},
		zipEntry{name: "__MACOSX/mug/._front.png", data: []byte("junk")},
		zipEntry{name: "bottle/.DS_Store", data: []byte("junk")},
		zipEntry{name: "bottle/notes.txt", data: []byte("not an image")},
	)

	units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{})
	if err != nil {
		t.Fatalf("UnpackArchive: %v", err)
	}

	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	if units[0].Ref != "mug" || units[1].Ref != "bottle" {
		t.Errorf("unexpected order: %s, %s", units[0].Ref, units[1].Ref)
	}
	if units[0].Position != 0 || units[1].Position != 1 {
		t.Errorf("unexpected positions: %d, %d", units[0].Position, units[1].Position)
	}
	if len(units[0].Images) != 2 || len(units[1].Images) != 1 {
		t.Errorf("images per unit: %d, %d", len(units[0].Images), len(units[1].Images))
	}
	if units[0].Images[0].MimeType != "image/png" {
		t.Errorf("mime type = %q", units[0].Images[0].MimeType)
	}
}

func TestUnpackArchiveStripsWrappingRoot(t *testing.T) {
	img := pngBytes(t)
	data := buildZip(t,
		zipEntry{name: "catalog/"},
		zipEntry{name: "catalog/a/1.png", data: img},
		zipEntry{name: "catalog/b/1.png", data: img},
	)

	units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{})
	if err != nil {
		t.Fatalf("UnpackArchive: %v", err)
	}
	if len(units) != 2 || units[0].Ref != "a" || units[1].Ref != "b" {
		t.Fatalf("unexpected units: %+v", units)
	}
}

func TestUnpackArchiveKeepsEmptyFolders(t *testing.T) {
	data := buildZip(t,
		zipEntry{name: "a/1.png", data: pngBytes(t)},
		zipEntry{name: "empty/"},
	)

	units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{})
	if err != nil {
		t.Fatalf("UnpackArchive: %v", err)
	}
	if len(units) != 2 || len(units[1].Images) != 0 {
		t.Fatalf("empty folder should become a unit without images: %+v", units)
	}
}

func TestUnpackArchiveLimits(t *testing.T) {
	img := pngBytes(t)

	t.Run("images per unit", func(t *testing.T) {
		data := buildZip(t,
			zipEntry{name: "a/1.png", data: img},
			zipEntry{name: "a/2.png", data: img},
			zipEntry{name: "a/3.png", data: img},
		)
		units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{MaxImagesPerUnit: 2})
		if err != nil {
			t.Fatalf("UnpackArchive: %v", err)
		}
		if len(units[0].Images) != 2 {
			t.Errorf("images = %d, want 2", len(units[0].Images))
		}
	})

	t.Run("image size", func(t *testing.T) {
		data := buildZip(t, zipEntry{name: "a/1.png", data: img})
		units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{MaxImageBytes: 8})
		if err != nil {
			t.Fatalf("UnpackArchive: %v", err)
		}
		if len(units[0].Images) != 0 || len(units[0].Problems) != 1 {
			t.Errorf("oversized image should be reported as a problem: %+v", units[0])
		}
	})

	t.Run("entries", func(t *testing.T) {
		data := buildZip(t,
			zipEntry{name: "a/1.png", data: img},
			zipEntry{name: "b/1.png", data: img},
		)
		if _, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{MaxEntries: 1}); !errors.Is(err, e.ErrInvalidArchive) {
			t.Errorf("expected ErrInvalidArchive, got %v", err)
		}
	})
}

func TestUnpackArchiveRejectsBadInput(t *testing.T) {
	if _, err := usecase.UnpackArchive([]byte("definitely not a zip"), usecase.ArchiveLimits{}); !errors.Is(err, e.ErrInvalidArchive) {
		t.Errorf("expected ErrInvalidArchive, got %v", err)
	}

	onlyRoot := buildZip(t, zipEntry{name: "image.png", data: pngBytes(t)})
	if _, err := usecase.UnpackArchive(onlyRoot, usecase.ArchiveLimits{}); !errors.Is(err, e.ErrEmptyArchive) {
		t.Errorf("expected ErrEmptyArchive, got %v", err)
	}

	traversal := buildZip(t, zipEntry{name: "../evil/1.png", data: pngBytes(t)})
	if _, err := usecase.UnpackArchive(traversal, usecase.ArchiveLimits{}); !errors.Is(err, e.ErrEmptyArchive) {
		t.Errorf("path traversal entries must be skipped, got %v", err)
	}
}

func TestUnpackArchiveNestedFilesBelongToTopFolder(t *testing.T) {
	data := buildZip(t,
		zipEntry{name: "a/photos/1.png", data: pngBytes(t)},
		zipEntry{name: "b/2.png", data: pngBytes(t)},
	)

	units, err := usecase.UnpackArchive(data, usecase.ArchiveLimits{})
	if err != nil {
		t.Fatalf("UnpackArchive: %v", err)
	}
	if units[0].Ref != "a" || !strings.HasSuffix(units[0].Images[0].Name, "photos/1.png") {
		t.Errorf("unexpected unit: %+v", units[0])
	}
}
