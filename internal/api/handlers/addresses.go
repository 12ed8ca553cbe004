package handlers

import (
	"addris-route-service/internal/api/dto"
	"addris-route-service/internal/domain"
	"context"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// MaxImageBytes bounds the accepted upload size.
const MaxImageBytes = 10 << 20

var acceptedImageTypes = []string{"image/jpeg", "image/png"}

type AddressExtractor interface {
	Extract(ctx context.Context, image []byte) ([]domain.AddressCandidate, error)
}

type AddressHandler struct {
	Extractor AddressExtractor
}

// Extract handles POST /v1/addresses/extract with a multipart "image" field.
func (h *AddressHandler) Extract(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		writeError(c, http.StatusBadRequest, "multipart field 'image' is required")
		return
	}
	if fh.Size > MaxImageBytes {
		writeError(c, http.StatusBadRequest, "image is too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, "cannot read uploaded image")
		return
	}
	defer f.Close()

	image, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		writeError(c, http.StatusBadRequest, "cannot read uploaded image")
		return
	}
	if len(image) == 0 {
		writeError(c, http.StatusBadRequest, "image is empty")
		return
	}
	if len(image) > MaxImageBytes {
		writeError(c, http.StatusBadRequest, "image is too large")
		return
	}
	if mt := mimetype.Detect(image); !mimetype.EqualsAny(mt.String(), acceptedImageTypes...) {
		writeError(c, http.StatusBadRequest, "image must be JPEG or PNG")
		return
	}

	cands, err := h.Extractor.Extract(c.Request.Context(), image)
	if err != nil {
		writeServiceError(c, "extract addresses", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewExtractResponse(cands))
}
