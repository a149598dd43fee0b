package handler

import (
	"errors"
	"net/http"

	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/deploy"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/internal/model"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/database"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/pkg/logger"
	"github.com/austinnorgaard/tourismos-nextjs-sub000/prometheus"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func deployError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, deploy.ErrHostingNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "site hosting is not configured"})
	case errors.Is(err, deploy.ErrInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, deploy.ErrBusinessNotFound), errors.Is(err, deploy.ErrDeploymentNotFound),
		errors.Is(err, deploy.ErrDomainNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, deploy.ErrInvalidDomain):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	logger.FromContext(c).Error("Hosting request failed", zap.Error(err))
	return c.JSON(http.StatusBadGateway, echo.Map{"error": "hosting provider request failed"})
}

func deployer(c echo.Context) (*deploy.Deployer, error) {
	if deps.Deployer == nil || deps.Deployer.Provider() == nil {
		return nil, deployError(c, deploy.ErrHostingNotConfigured)
	}
	return deps.Deployer, nil
}

// CreateDeployment queues a site deployment and runs it in the background
func CreateDeployment(c echo.Context) error {
	log := logger.FromContext(c)
	businessID, _ := tenant(c)
	prometheus.RecordBusinessOperation("deployment", "create")
	d, err := deployer(c)
	if d == nil {
		return err
	}

	ctx := c.Request().Context()
	dep, err := d.Start(ctx, businessID)
	if err != nil {
		return deployError(c, err)
	}
	d.RunAsync(ctx, dep.ID)

	log.Info("Deployment queued", zap.Uint("business_id", businessID), zap.Uint("deployment_id", dep.ID))
	return c.JSON(http.StatusAccepted, dep)
}

func ListDeployments(c echo.Context) error {
	businessID, _ := tenant(c)

	var deployments []model.Deployment
	if err := database.GetDB().Where("business_id = ?", businessID).
		Order("id DESC").Limit(50).
		Find(&deployments).Error; err != nil {
		logger.FromContext(c).Error("Failed to list deployments", zap.Error(err))
		return internalError(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"deployments": deployments})
}

func GetLatestDeployment(c echo.Context) error {
	businessID, _ := tenant(c)

	var dep model.Deployment
	if err := database.GetDB().Where("business_id = ?", businessID).Order("id DESC").First(&dep).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no deployments yet"})
	}
	return c.JSON(http.StatusOK, dep)
}

func GetDeployment(c echo.Context) error {
	businessID, _ := tenant(c)
	id, ok := paramID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var dep model.Deployment
	if err := database.GetDB().Where("id = ? AND business_id = ?", id, businessID).First(&dep).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "deployment not found"})
	}
	return c.JSON(http.StatusOK, dep)
}

// AddDomain attaches a custom domain to the business's hosting project
func AddDomain(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("domain", "add")
	d, err := deployer(c)
	if d == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}

	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	domain, err := deploy.NormalizeDomain(req.Domain)
	if err != nil {
		return deployError(c, err)
	}

	ctx := c.Request().Context()
	result, err := d.Provider().AddDomain(ctx, d.Project(business), domain)
	if err != nil {
		return deployError(c, err)
	}
	if err := database.GetDB().Model(business).Update("custom_domain", domain).Error; err != nil {
		log.Error("Failed to store custom domain", zap.Error(err))
		return internalError(c)
	}

	log.Info("Custom domain added", zap.Uint("business_id", business.ID), zap.String("domain", domain))
	return c.JSON(http.StatusCreated, result)
}

// GetDomain reports the DNS verification state of a domain
func GetDomain(c echo.Context) error {
	d, err := deployer(c)
	if d == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}
	domain, err := deploy.NormalizeDomain(c.Param("domain"))
	if err != nil {
		return deployError(c, err)
	}

	result, err := d.Provider().GetDomain(c.Request().Context(), d.Project(business), domain)
	if err != nil {
		return deployError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func RemoveDomain(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordBusinessOperation("domain", "remove")
	d, err := deployer(c)
	if d == nil {
		return err
	}
	business, err := currentBusiness(c)
	if business == nil {
		return err
	}
	domain, err := deploy.NormalizeDomain(c.Param("domain"))
	if err != nil {
		return deployError(c, err)
	}

	if err := d.Provider().RemoveDomain(c.Request().Context(), d.Project(business), domain); err != nil && !errors.Is(err, deploy.ErrDomainNotFound) {
		return deployError(c, err)
	}
	if business.CustomDomain == domain {
		if err := database.GetDB().Model(business).Update("custom_domain", "").Error; err != nil {
			log.Error("Failed to clear custom domain", zap.Error(err))
			return internalError(c)
		}
	}

	log.Info("Custom domain removed", zap.Uint("business_id", business.ID), zap.String("domain", domain))
	return c.NoContent(http.StatusNoContent)
}
