package services

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrEmptyImage is returned when an upload carries no bytes
var ErrEmptyImage = errors.New("image is empty")

// OCRResult contains the OCR processing result
type OCRResult struct {
	Text string
}

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/tiff": ".tiff",
}

// ImageExtension returns the file extension for an accepted image content type.
// When the content type is unknown the original filename's extension is used
// if it maps to an accepted type.
func ImageExtension(contentType, filename string) (string, bool) {
	if ext, ok := allowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]; ok {
		return ext, true
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg":
		return ".jpg", true
	case ".png", ".webp", ".tiff":
		return ext, true
	case ".tif":
		return ".tiff", true
	}
	return "", false
}

// splitOCRLanguages turns "por+eng" into tesseract language codes, falling back to English
func splitOCRLanguages(languages string) []string {
	var langs []string
	for _, l := range strings.Split(languages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return []string{"eng"}
	}
	return langs
}
