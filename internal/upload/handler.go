package upload

import (
	"net/http"

	"swiftfit/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type DeleteRequest struct {
	URL string `json:"url" form:"url"`
	Key string `json:"key" form:"key"`
}

// POST /upload
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxFileSize+1<<20)

	fh, err := c.FormFile("file")
	if err != nil {
		api.RespondError(c, ErrFileRequired)
		return
	}
	src, err := fh.Open()
	if err != nil {
		api.RespondError(c, err)
		return
	}
	defer src.Close()

	result, err := h.service.Upload(c.Request.Context(), File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        src,
	}, c.PostForm("folder"))
	if err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// DELETE /upload
// The object is named by url or key, in the JSON body or the query string.
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteRequest
	if c.Request.ContentLength > 0 {
		if !api.BindJSON(c, &req) {
			return
		}
	}
	if req.URL == "" && req.Key == "" {
		req.URL, req.Key = c.Query("url"), c.Query("key")
	}

	if err := h.service.Delete(c.Request.Context(), req.URL, req.Key); err != nil {
		api.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "file deleted"})
}
