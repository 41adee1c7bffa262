package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/creatia-api/internal/dto"
	"github.com/noah-isme/creatia-api/internal/models"
	"github.com/noah-isme/creatia-api/internal/service"
	appErrors "github.com/noah-isme/creatia-api/pkg/errors"
	"github.com/noah-isme/creatia-api/pkg/response"
)

type profileService interface {
	Get(ctx context.Context, actor *models.JWTClaims) (*dto.UserResponse, error)
	Update(ctx context.Context, actor *models.JWTClaims, req dto.UpdateProfileRequest) (*dto.UserResponse, error)
	UploadFiles(ctx context.Context, actor *models.JWTClaims, uploads []service.ProfileFile, remove []string) (*dto.UserResponse, error)
}

// ProfileHandler lets users maintain their own profile.
type ProfileHandler struct {
	service profileService
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(svc profileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// Get godoc
// @Summary Current user's profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *ProfileHandler) Get(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	profile, err := h.service.Get(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// Update godoc
// @Summary Update profile
// @Description Blank names keep the current value; blank contact fields are cleared
// @Tags Profile
// @Accept json
// @Produce json
// @Param payload body dto.UpdateProfileRequest true "Profile payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /profile [put]
func (h *ProfileHandler) Update(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	var req dto.UpdateProfileRequest
	if !bindJSON(c, &req, "Invalid avatar transform values.") {
		return
	}
	profile, err := h.service.Update(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}

// UploadFiles godoc
// @Summary Upload profile files
// @Description Avatar image, resume PDF and up to four slotted files (proposal, report1, report2, final)
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file false "Avatar image"
// @Param resume formData file false "Resume PDF"
// @Param uploads formData file false "Slotted profile files in slot order"
// @Param remove_files formData []string false "Slots to clear"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /profile/files [post]
func (h *ProfileHandler) UploadFiles(c *gin.Context) {
	actor := actorFromContext(c)
	if actor == nil {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid multipart payload"))
		return
	}

	var (
		uploads []service.ProfileFile
		closers []io.Closer
	)
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()
	for _, field := range []string{service.ProfileFieldAvatar, service.ProfileFieldResume, service.ProfileFieldUploads} {
		for _, header := range form.File[field] {
			file, err := header.Open()
			if err != nil {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid upload"))
				return
			}
			closers = append(closers, file)
			uploads = append(uploads, service.ProfileFile{
				ProfileUpload: dto.ProfileUpload{
					Field:       field,
					Filename:    header.Filename,
					Size:        header.Size,
					ContentType: contentType(header),
				},
				Body: file,
			})
		}
	}

	profile, err := h.service.UploadFiles(c.Request.Context(), actor, uploads, form.Value["remove_files"])
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}
