package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/greatplr/membersync/internal/pkg/entitlements"
)

// ApiAccessController exposes read-only entitlement queries. Consumers poll
// these endpoints; there is no push surface beyond the notification channel.
type ApiAccessController struct {
	svc *entitlements.Service
}

func NewApiAccessController(svc *entitlements.Service) *ApiAccessController {
	return &ApiAccessController{svc: svc}
}

// HandleGetAccess returns the user's currently active subscriptions.
// GET /api/v1/users/:email/access
func (ac *ApiAccessController) HandleGetAccess(c *fiber.Ctx) error {
	email, ok := requireEmailParam(c)
	if !ok {
		return nil
	}

	subs, err := ac.svc.ActiveSubscriptions(email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access lookup failed"})
	}

	return c.JSON(fiber.Map{
		"email":         email,
		"has_active":    len(subs) > 0,
		"subscriptions": subs,
	})
}

// HandleCheckProductAccess reports whether the user holds an active
// subscription to one product.
// GET /api/v1/users/:email/access/product/:id
func (ac *ApiAccessController) HandleCheckProductAccess(c *fiber.Ctx) error {
	email, ok := requireEmailParam(c)
	if !ok {
		return nil
	}

	productID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || productID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	ok, err = ac.svc.HasProductAccess(email, uint(productID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access lookup failed"})
	}

	return c.JSON(fiber.Map{
		"email":      email,
		"product_id": productID,
		"has_access": ok,
	})
}

// HandleCheckTierAccess reports whether the user holds an active
// subscription mapped onto the given tier.
// GET /api/v1/users/:email/access/tier/:tier
func (ac *ApiAccessController) HandleCheckTierAccess(c *fiber.Ctx) error {
	email, ok := requireEmailParam(c)
	if !ok {
		return nil
	}

	tier := c.Params("tier")
	if tier == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid tier"})
	}

	ok, err := ac.svc.HasTierAccess(email, tier)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access lookup failed"})
	}

	return c.JSON(fiber.Map{
		"email":      email,
		"tier":       tier,
		"has_access": ok,
	})
}

// HandleCheckFeatureAccess reports whether the user holds an active
// subscription to a product whose mapping carries the given feature flag.
// GET /api/v1/users/:email/access/feature/:feature
func (ac *ApiAccessController) HandleCheckFeatureAccess(c *fiber.Ctx) error {
	email, ok := requireEmailParam(c)
	if !ok {
		return nil
	}

	feature := c.Params("feature")
	if feature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid feature"})
	}

	ok, err := ac.svc.HasFeatureAccess(email, feature)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "access lookup failed"})
	}

	return c.JSON(fiber.Map{
		"email":      email,
		"feature":    feature,
		"has_access": ok,
	})
}

// requireEmailParam decodes the email path segment. When it is missing or
// unparseable the 400 response is already written and ok is false.
func requireEmailParam(c *fiber.Ctx) (string, bool) {
	email, err := decodeEmailParam(c.Params("email"))
	if err != nil || email == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email"})
		return "", false
	}
	return email, true
}
