//go:build !windows

package services

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/sirupsen/logrus"
)

// OCRService reads document photos into text for the extractor.
// The tesseract client keeps per-image state, so calls are serialized.
type OCRService struct {
	mu        sync.Mutex
	client    *gosseract.Client
	languages []string
	logger    *logrus.Logger
}

// NewOCRService creates a new OCR service. languages uses tesseract's
// "por+eng" notation.
func NewOCRService(languages string, logger *logrus.Logger) (*OCRService, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	langs := splitOCRLanguages(languages)
	client := gosseract.NewClient()

	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}

	// Transfer receipts are printed forms: one uniform block of text
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	return &OCRService{
		client:    client,
		languages: langs,
		logger:    logger,
	}, nil
}

// ProcessImage runs OCR over an uploaded image. ext is the original file
// extension and only affects the temp file name.
func (s *OCRService) ProcessImage(imageBytes []byte, ext string) (*OCRResult, error) {
	if len(imageBytes) == 0 {
		return nil, ErrEmptyImage
	}

	tmpFile, err := os.CreateTemp("", "document-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(imageBytes); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to flush temp file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.client.SetImage(tmpFile.Name()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := s.client.Text()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"bytes":     len(imageBytes),
		"chars":     len(text),
		"languages": strings.Join(s.languages, "+"),
	}).Debug("OCR finished")

	return &OCRResult{Text: text}, nil
}

// Close releases OCR resources
func (s *OCRService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
