//go:build windows

package services

import (
	"errors"

	"github.com/sirupsen/logrus"
)

var errOCRUnavailable = errors.New("OCR service is not available on Windows - run in Docker container")

// OCRService is a stub; tesseract bindings need cgo and a Linux image
type OCRService struct{}

// NewOCRService always fails on Windows
func NewOCRService(languages string, logger *logrus.Logger) (*OCRService, error) {
	return nil, errOCRUnavailable
}

// ProcessImage always fails on Windows
func (s *OCRService) ProcessImage(imageBytes []byte, ext string) (*OCRResult, error) {
	return nil, errOCRUnavailable
}

// Close releases OCR resources
func (s *OCRService) Close() error {
	return nil
}
