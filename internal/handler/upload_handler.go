package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/pkg/storage"
)

// Max upload size: 50MB
const maxUploadSize = 50 << 20

const maxFilesPerUpload = 10

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

var allowedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
}

var allowedAudioTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/ogg":  true,
	"audio/wav":  true,
	"audio/webm": true,
}

var allowedFileTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/zip": true,
	"text/plain":      true,
}

// UploadHandler handles media uploads. The returned url/mime/name/size go into
// the media field of a message.
type UploadHandler struct {
	storage storage.Storage
}

// NewUploadHandler creates the handler. storage may be nil when no backend is
// reachable; uploads then answer 503.
func NewUploadHandler(storage storage.Storage) *UploadHandler {
	return &UploadHandler{storage: storage}
}

// UploadFile godoc
// @Summary Upload a file (image, video, audio, or document)
// @Description Upload a file to storage. Returns the public URL and the message kind to send it as.
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File to upload"
// @Success 200 {object} model.UploadResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 413 {object} model.ErrorResponse
// @Failure 503 {object} model.ErrorResponse
// @Router /upload [post]
func (h *UploadHandler) UploadFile(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "File upload service unavailable"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{Error: "File too large (max 50MB)"})
			return
		}
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "File is required", Message: err.Error()})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	folder := determineFolder(contentType)
	if folder == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "Unsupported file type",
			Message: "Allowed: jpg, png, gif, webp, mp4, webm, mov, mp3, ogg, wav, pdf, doc, docx, zip, txt",
		})
		return
	}

	resp, err := h.upload(c, file, header, folder)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UploadMultiple godoc
// @Summary Upload multiple files
// @Description Upload up to 10 files at once. Unsupported or failed files are skipped.
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param files formData file true "Files to upload (max 10)"
// @Success 200 {array} model.UploadResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /upload/multiple [post]
func (h *UploadHandler) UploadMultiple(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, model.ErrorResponse{Error: "File upload service unavailable"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid form data", Message: err.Error()})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "No files provided"})
		return
	}
	if len(files) > maxFilesPerUpload {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Maximum 10 files allowed"})
		return
	}

	results := []model.UploadResponse{}
	for _, header := range files {
		folder := determineFolder(header.Header.Get("Content-Type"))
		if folder == "" {
			continue
		}
		file, err := header.Open()
		if err != nil {
			continue
		}
		resp, err := h.upload(c, file, header, folder)
		file.Close()
		if err != nil {
			logger.Warnf("upload %s: %v", header.Filename, err)
			continue
		}
		results = append(results, *resp)
	}

	c.JSON(http.StatusOK, results)
}

func (h *UploadHandler) upload(c *gin.Context, file multipart.File, header *multipart.FileHeader, folder string) (*model.UploadResponse, error) {
	result, err := h.storage.Upload(c.Request.Context(), file, header, folder)
	if err != nil {
		return nil, err
	}
	return &model.UploadResponse{
		URL:      result.URL,
		FileName: result.FileName,
		FileSize: result.FileSize,
		MimeType: result.MimeType,
		Kind:     model.KindForMime(result.MimeType),
	}, nil
}

// determineFolder returns the storage folder for an allowed content type, or
// "" when the type is not accepted
func determineFolder(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))

	switch {
	case allowedImageTypes[ct]:
		return "images"
	case allowedVideoTypes[ct]:
		return "videos"
	case allowedAudioTypes[ct]:
		return "audio"
	case allowedFileTypes[ct]:
		return "files"
	}
	return ""
}
