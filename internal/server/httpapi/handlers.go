// Package httpapi exposes the share access service over HTTP with gin.
package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/showroom/internal/common"
	"github.com/dmitrijs2005/showroom/internal/logging"
	"github.com/dmitrijs2005/showroom/internal/server/auth"
	"github.com/dmitrijs2005/showroom/internal/server/models"
	"github.com/dmitrijs2005/showroom/internal/server/services"
	"github.com/gin-gonic/gin"
)

type Admission interface {
	Verify(ctx context.Context, code, password string, client services.Client) (*models.VerifyResult, error)
}

type Viewer interface {
	Timeline(ctx context.Context, code string, claims *auth.ShareClaims) (models.Timeline, error)
	ProjectDetail(ctx context.Context, code, projectID string, claims *auth.ShareClaims) (*models.ProjectDetail, error)
}

type Admin interface {
	Create(ctx context.Context, in models.CreateShareInput) (*models.Share, error)
	Get(ctx context.Context, id string) (*models.Share, error)
	List(ctx context.Context) ([]*models.Share, error)
	Update(ctx context.Context, id string, in models.UpdateShareInput) (*models.Share, error)
	Delete(ctx context.Context, id string) error
	AccessLog(ctx context.Context, id string, limit int) ([]models.AccessLogEntry, error)
}

type Handler struct {
	admission Admission
	viewer    Viewer
	admin     Admin
	log       logging.Logger
}

func NewHandler(a Admission, v Viewer, adm Admin, log logging.Logger) *Handler {
	return &Handler{
		admission: a,
		viewer:    v,
		admin:     adm,
		log:       log.With("module", "httpapi"),
	}
}

type verifyRequest struct {
	Password string `json:"password"`
}

// Verify handles POST /api/v1/shares/:code/verify.
func (h *Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.abortWithError(c, common.ErrInvalidPasswordFormat)
		return
	}

	client := services.Client{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}

	res, err := h.admission.Verify(c.Request.Context(), c.Param("code"), req.Password, client)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func shareClaims(c *gin.Context) *auth.ShareClaims {
	claims, _ := c.MustGet(ctxShareClaims).(*auth.ShareClaims)
	return claims
}

// Timeline handles GET /api/v1/shares/:code/timeline.
func (h *Handler) Timeline(c *gin.Context) {
	tl, err := h.viewer.Timeline(c.Request.Context(), c.Param("code"), shareClaims(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tl)
}

// ProjectDetail handles GET /api/v1/shares/:code/projects/:projectID.
func (h *Handler) ProjectDetail(c *gin.Context) {
	d, err := h.viewer.ProjectDetail(c.Request.Context(), c.Param("code"), c.Param("projectID"), shareClaims(c))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

func (h *Handler) CreateShare(c *gin.Context) {
	var in models.CreateShareInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}
	in.CreatedBy = c.GetString(ctxUserID)

	share, err := h.admin.Create(c.Request.Context(), in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, share)
}

func (h *Handler) ListShares(c *gin.Context) {
	list, err := h.admin.List(c.Request.Context())
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetShare(c *gin.Context) {
	share, err := h.admin.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, share)
}

func (h *Handler) UpdateShare(c *gin.Context) {
	var in models.UpdateShareInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_input"})
		return
	}

	share, err := h.admin.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, share)
}

func (h *Handler) DeleteShare(c *gin.Context) {
	if err := h.admin.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.abortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AccessLog handles GET /api/v1/admin/shares/:id/access-log?limit=N.
func (h *Handler) AccessLog(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: "limit must be a number", Code: "invalid_input"})
			return
		}
		limit = n
	}

	entries, err := h.admin.AccessLog(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}
