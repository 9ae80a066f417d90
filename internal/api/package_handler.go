package api

import (
	"alcyxob/gym-app/internal/domain"
	"alcyxob/gym-app/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type PackageHandler struct {
	packageService service.PackageService
}

func NewPackageHandler(packageService service.PackageService) *PackageHandler {
	return &PackageHandler{packageService: packageService}
}

// --- DTOs ---

type CreatePackageRequest struct {
	Name             string `json:"name" binding:"required,max=100"`
	Description      string `json:"description" binding:"max=1000"`
	Price            int64  `json:"price" binding:"required,gt=0"`
	DurationDays     int    `json:"durationDays" binding:"required,gt=0"`
	TrainingSessions int    `json:"trainingSessions" binding:"min=0"`
	Active           *bool  `json:"active"` // Defaults to true
}

type ListPackagesQuery struct {
	IncludeInactive bool `form:"includeInactive"`
}

// --- Handler Methods ---

// ListPackages godoc
// @Summary List membership packages
// @Tags Packages
// @Produce json
// @Param includeInactive query bool false "Include retired packages"
// @Success 200 {array} domain.Package
// @Router /packages [get]
func (h *PackageHandler) ListPackages(c *gin.Context) {
	var q ListPackagesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		abortWithValidation(c, err)
		return
	}
	packages, err := h.packageService.List(c.Request.Context(), !q.IncludeInactive)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if packages == nil {
		packages = []domain.Package{}
	}
	c.JSON(http.StatusOK, packages)
}

func (h *PackageHandler) GetPackage(c *gin.Context) {
	id, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	pkg, err := h.packageService.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// CreatePackage godoc
// @Summary Add a package to the catalog
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param package body CreatePackageRequest true "Package"
// @Success 201 {object} domain.Package
// @Router /admin/packages [post]
func (h *PackageHandler) CreatePackage(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithValidation(c, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	pkg, err := h.packageService.Create(c.Request.Context(), actor, &domain.Package{
		Name:             req.Name,
		Description:      req.Description,
		Price:            req.Price,
		DurationDays:     req.DurationDays,
		TrainingSessions: req.TrainingSessions,
		Active:           active,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pkg)
}
