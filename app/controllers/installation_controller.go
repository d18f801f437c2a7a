package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/greatplr/membersync/app/repository"
)

// InstallationController exposes the registered aMember installations to
// operators. Credentials never leave the model's JSON shape.
type InstallationController struct {
	installations repository.InstallationRepository
}

func NewInstallationController(installations repository.InstallationRepository) *InstallationController {
	return &InstallationController{installations: installations}
}

// HandleListInstallations returns all installations accepting webhooks.
// GET /api/v1/installations
func (ic *InstallationController) HandleListInstallations(c *fiber.Ctx) error {
	installations, err := ic.installations.ListActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "installations unavailable"})
	}
	return c.JSON(fiber.Map{"installations": installations})
}

// HandleGetInstallation returns one installation by its slug.
// GET /api/v1/installations/:slug
func (ic *InstallationController) HandleGetInstallation(c *fiber.Ctx) error {
	slug := c.Params("slug")
	if slug == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid slug"})
	}

	installation, err := ic.installations.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "installation not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "installation lookup failed"})
	}
	return c.JSON(installation)
}
