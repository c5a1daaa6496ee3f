package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryStorage implements Storage on Cloudinary
type CloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinary creates the client. Every upload goes under rootFolder.
func NewCloudinary(cloudName, apiKey, apiSecret, rootFolder string) (*CloudinaryStorage, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, errors.New("cloudinary credentials are not configured")
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld, folder: strings.Trim(rootFolder, "/")}, nil
}

// Upload sends the file with automatic resource type detection
func (s *CloudinaryStorage) Upload(ctx context.Context, file multipart.File, header *multipart.FileHeader, folder string) (*UploadResult, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	name := objectName(folder, header.Filename, time.Now())
	publicID := strings.TrimSuffix(name, filepath.Ext(name))
	if s.folder != "" {
		publicID = s.folder + "/" + publicID
	}

	res, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		PublicID:     publicID,
		ResourceType: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary rejected upload: %s", res.Error.Message)
	}

	return &UploadResult{
		URL:      res.SecureURL,
		Key:      res.PublicID,
		FileName: header.Filename,
		FileSize: int64(len(fileBytes)),
		MimeType: contentType(header),
	}, nil
}
