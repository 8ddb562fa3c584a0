// internal/domain/upload/service.go
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-backend/internal/config"
)

const productDir = "products"

var (
	ErrFileTooLarge     = errors.New("file exceeds the maximum upload size")
	ErrExtensionDenied  = errors.New("file extension is not allowed")
	ErrNotAnImage       = errors.New("file content is not an image")
	ErrOutsideOfStorage = errors.New("path is outside of storage")
)

// Service stores uploaded product images on local disk
type Service struct {
	localPath  string
	publicPath string
	maxSize    int64
	allowed    map[string]bool
	logger     logrus.FieldLogger
}

// NewService creates a new upload service
func NewService(cfg *config.Config, logger logrus.FieldLogger) *Service {
	allowed := make(map[string]bool, len(cfg.Upload.AllowedExtensions))
	for _, ext := range cfg.Upload.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	return &Service{
		localPath:  cfg.Storage.LocalPath,
		publicPath: strings.TrimSuffix(cfg.Storage.PublicPath, "/"),
		maxSize:    cfg.Upload.MaxSize,
		allowed:    allowed,
		logger:     logger,
	}
}

// SaveProductImage validates and stores one image under products/<uuid><ext>
func (s *Service) SaveProductImage(ctx context.Context, header *multipart.FileHeader) (*StoredFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ext, err := s.validate(header)
	if err != nil {
		return nil, err
	}

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(src, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	mimeType := http.DetectContentType(sniff[:n])
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, ErrNotAnImage
	}

	filename := uuid.NewString() + ext
	relativePath := filepath.Join(productDir, filename)
	fullPath := filepath.Join(s.localPath, relativePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	content := io.MultiReader(bytes.NewReader(sniff[:n]), src)
	written, err := io.Copy(dst, io.LimitReader(content, s.maxSize+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	stored := &StoredFile{
		OriginalName: header.Filename,
		Filename:     filename,
		Path:         relativePath,
		URL:          s.publicURL(relativePath),
		MimeType:     mimeType,
		Size:         written,
	}

	s.logger.WithFields(logrus.Fields{
		"filename": filename,
		"size":     written,
	}).Info("Product image stored")
	return stored, nil
}

// SaveProductImages stores several images, collecting per-file failures
func (s *Service) SaveProductImages(ctx context.Context, headers []*multipart.FileHeader) *BulkUploadResult {
	result := &BulkUploadResult{
		Uploaded: []StoredFile{},
		Failed:   []FailedUpload{},
	}

	for _, header := range headers {
		stored, err := s.SaveProductImage(ctx, header)
		if err != nil {
			result.Failed = append(result.Failed, FailedUpload{
				Filename: header.Filename,
				Error:    err.Error(),
			})
			continue
		}
		result.Uploaded = append(result.Uploaded, *stored)
	}

	return result
}

// Remove deletes stored files by their public URL. Missing files are ignored.
func (s *Service) Remove(urls ...string) {
	for _, u := range urls {
		fullPath, err := s.pathFromURL(u)
		if err != nil {
			s.logger.WithField("url", u).Warn("Refusing to remove file outside of storage")
			continue
		}
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			s.logger.WithError(err).WithField("url", u).Warn("Failed to remove stored file")
		}
	}
}

func (s *Service) validate(header *multipart.FileHeader) (string, error) {
	if header.Size > s.maxSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.allowed[strings.TrimPrefix(ext, ".")] {
		return "", fmt.Errorf("%w: %q", ErrExtensionDenied, ext)
	}
	return ext, nil
}

func (s *Service) publicURL(relativePath string) string {
	return s.publicPath + "/" + filepath.ToSlash(relativePath)
}

func (s *Service) pathFromURL(u string) (string, error) {
	rel := strings.TrimPrefix(u, s.publicPath+"/")
	if rel == u {
		return "", ErrOutsideOfStorage
	}
	clean := path.Clean("/" + rel)
	if !strings.HasPrefix(clean, "/"+productDir+"/") {
		return "", ErrOutsideOfStorage
	}
	return filepath.Join(s.localPath, filepath.FromSlash(clean)), nil
}
