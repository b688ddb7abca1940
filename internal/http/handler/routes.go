package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docstore/internal/model"
	"docstore/internal/repository"
	"docstore/internal/service"
)

// listResponsePayload is the JSON body of GET /documents.
type listResponsePayload struct {
	Documents  []model.Document  `json:"documents"`
	Pagination paginationPayload `json:"pagination"`
}

type paginationPayload struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// uploadResponsePayload is the JSON body of a successful (possibly partial)
// POST /documents.
type uploadResponsePayload struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Documents   []model.Document `json:"documents"`
	Count       int              `json:"count"`
	FailedFiles []string         `json:"failedFiles"`
}

// HealthCheck verifies the metadata store is usable.
func HealthCheck(repo repository.DocumentRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// ListDocuments serves the paginated, filtered, sorted document listing.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := strconv.Atoi(c.Query("page", "1"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		pageSize, err := strconv.Atoi(c.Query("pageSize", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE_SIZE", "invalid pageSize")
		}

		res, err := docSvc.List(c.UserContext(), service.ListParams{
			Query:     c.Query("q"),
			SortOrder: c.Query("sortOrder", service.SortDesc),
			Page:      page,
			PageSize:  pageSize,
		})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(listResponsePayload{
			Documents: res.Items,
			Pagination: paginationPayload{
				Page:       res.Page,
				PageSize:   res.PageSize,
				Total:      res.Total,
				TotalPages: res.TotalPages,
			},
		})
	}
}

// UploadDocuments ingests a multipart batch (field name: files).
// Size and count limits are enforced here before the engine is invoked; the
// engine enforces them again while streaming.
func UploadDocuments(docSvc service.DocumentService, limits service.Limits) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "no files uploaded")
		}
		headers := form.File["files"]
		if len(headers) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "no files uploaded")
		}
		if limits.MaxFilesPerBatch > 0 && len(headers) > limits.MaxFilesPerBatch {
			return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES",
				fmt.Sprintf("too many files, maximum %d allowed", limits.MaxFilesPerBatch))
		}
		for _, fh := range headers {
			if limits.MaxFileSize > 0 && fh.Size > limits.MaxFileSize {
				return writeError(c, fiber.StatusBadRequest, "FILE_TOO_LARGE",
					fmt.Sprintf("file %q exceeds the %d byte limit", fh.Filename, limits.MaxFileSize))
			}
		}

		files := make([]service.UploadFile, 0, len(headers))
		for _, fh := range headers {
			fh := fh
			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			files = append(files, service.UploadFile{
				Name:        fh.Filename,
				ContentType: ct,
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}

		res, err := docSvc.UploadBatch(c.UserContext(), files)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNoFiles):
				return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "no files uploaded")
			case errors.Is(err, service.ErrTooManyFiles):
				return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", "too many files in batch")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to upload documents")
			}
		}

		if len(res.Documents) == 0 {
			return writeUploadFailure(c, res.Failed)
		}

		msg := fmt.Sprintf("Successfully uploaded %d file(s)", len(res.Documents))
		if len(res.Failed) > 0 {
			msg = fmt.Sprintf("Uploaded %d out of %d files", len(res.Documents), len(files))
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponsePayload{
			Success:     true,
			Message:     msg,
			Documents:   res.Documents,
			Count:       len(res.Documents),
			FailedFiles: res.Failed,
		})
	}
}

// DownloadDocument streams a document's blob with its original title and
// verified size.
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		rc, doc, err := docSvc.Download(c.UserContext(), id)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			case errors.Is(err, service.ErrBlobMissing):
				return writeError(c, fiber.StatusNotFound, "FILE_MISSING", "file not found on disk")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to download document")
			}
		}

		c.Set(fiber.HeaderContentType, doc.MimeType)
		c.Set(fiber.HeaderContentDisposition, "attachment; filename*=UTF-8''"+url.PathEscape(doc.Title))
		c.Set(fiber.HeaderCacheControl, "no-cache")
		// SendStream sets Content-Length from the verified record size; any
		// mid-transfer failure is the transport's to report, not retried here.
		return c.SendStream(rc, int(doc.Size))
	}
}

// DeleteDocument removes a document by id.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete document")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Handlers stay thin; all engine logic lives in the service.
func RegisterRoutes(app *fiber.App, repo repository.DocumentRepository, docSvc service.DocumentService, limits service.Limits) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(repo))
	app.Get("/healthz", LivenessProbe())

	app.Get("/documents", ListDocuments(docSvc))
	app.Post("/documents", UploadDocuments(docSvc, limits))
	app.Get("/documents/:id/download", DownloadDocument(docSvc))
	app.Delete("/documents/:id", DeleteDocument(docSvc))
}
