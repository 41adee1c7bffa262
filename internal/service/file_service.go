package service

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/storage"
)

// FilesPath is the route prefix download links point at.
const FilesPath = "/api/files/"

type tokenSigner interface {
	Generate(subject, key string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (subject, key string, expiresAt time.Time, err error)
}

// StoredObject is an opened upload ready to be streamed.
type StoredObject struct {
	Body        io.ReadCloser
	Name        string
	ContentType string
}

// FileService stores uploads and hands out signed links to them.
type FileService struct {
	store   storage.Store
	signer  tokenSigner
	logger  *zap.Logger
	maxSize int64
}

// NewFileService constructs a FileService. A non-positive maxSize disables the size check.
func NewFileService(store storage.Store, signer tokenSigner, maxSize int64, logger *zap.Logger) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileService{store: store, signer: signer, logger: logger, maxSize: maxSize}
}

// Link returns a signed download url for key, or "" when signing fails.
func (s *FileService) Link(subject, key string) string {
	if s == nil || s.signer == nil || key == "" {
		return ""
	}
	token, _, err := s.signer.Generate(subject, key)
	if err != nil {
		s.logger.Warn("failed to sign file link", zap.String("subject", subject), zap.Error(err))
		return ""
	}
	return FilesPath + token
}

// Save writes r under key after enforcing the upload size limit.
func (s *FileService) Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if s.maxSize > 0 && size > s.maxSize {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "File is too large.")
	}
	if err := s.store.Save(ctx, key, r, size, contentType); err != nil {
		return appErrors.Internal(err, "failed to store file")
	}
	return nil
}

// Remove deletes keys, logging failures. Missing objects are ignored.
func (s *FileService) Remove(ctx context.Context, keys ...string) {
	if s == nil || s.store == nil {
		return
	}
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to remove stored file", zap.String("key", key), zap.Error(err))
		}
	}
}

// Open resolves a signed token to the stored object it addresses.
func (s *FileService) Open(ctx context.Context, token string) (*StoredObject, error) {
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	body, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Internal(err, "failed to open file")
	}
	contentType := mime.TypeByExtension(storage.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &StoredObject{Body: body, Name: path.Base(key), ContentType: contentType}, nil
}
