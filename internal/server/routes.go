package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"harvester/internal/core/engine"
	"harvester/internal/core/export"
	"harvester/internal/health"
	"harvester/internal/platform/redis"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Dependencies struct {
	Engine *engine.Engine
	// Redis is optional; without it the health report has no redis component.
	Redis *redis.Service
}

// RegisterRoutes mounts the read-only ops API and returns the health handler
// so the caller can flip readiness once startup is done.
func RegisterRoutes(app *fiber.App, d Dependencies) *health.HealthHandler {
	healthHandler := health.NewHealthHandler(checks(d)...)
	app.Get("/v1/health", health.HealthLimiter(), healthHandler.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	h := &handler{engine: d.Engine}
	api := app.Group("/v1")
	api.Get("/stats", h.stats)
	api.Get("/proxies", h.proxies)
	api.Get("/jobs/:id", h.job)
	api.Get("/bulk-jobs/:id", h.bulk)
	api.Get("/bulk-jobs/:id/results", h.results)
	api.Get("/exports/:id", h.download)

	return healthHandler
}

func checks(d Dependencies) []health.Check {
	var out []health.Check
	if d.Redis != nil {
		out = append(out, health.Check{Name: "redis", Fn: d.Redis.HealthCheck})
	}
	out = append(out,
		health.Check{Name: "engine", Fn: func(context.Context) error {
			if !d.Engine.Running() {
				return errors.New("engine is not running")
			}
			return nil
		}},
		health.Check{Name: "proxies", Fn: func(context.Context) error {
			pool := d.Engine.Proxies()
			if pool.Len() > 0 && pool.HealthyCount() == 0 {
				return fmt.Errorf("none of %d proxies is healthy", pool.Len())
			}
			return nil
		}},
	)
	return out
}

type handler struct {
	engine *engine.Engine
}

func (h *handler) stats(c *fiber.Ctx) error {
	return c.JSON(h.engine.Stats())
}

func (h *handler) proxies(c *fiber.Ctx) error {
	return c.JSON(h.engine.Proxies().Stats())
}

func (h *handler) job(c *fiber.Ctx) error {
	j, err := h.engine.GetJob(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(j)
}

func (h *handler) bulk(c *fiber.Ctx) error {
	b, err := h.engine.GetBulkJob(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"bulk_job": b, "progress": b.Progress()})
}

func (h *handler) results(c *fiber.Ctx) error {
	rows, err := h.engine.BulkJobResults(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}

// download streams a JSON or CSV export as an attachment.
func (h *handler) download(c *fiber.Ctx) error {
	id := c.Params("id")
	format := strings.ToLower(c.Query("format", "json"))

	var err error
	switch format {
	case "json":
		c.Type("json")
		err = h.engine.ExportJSON(id, c.Response().BodyWriter())
	case "csv":
		c.Set(fiber.HeaderContentType, export.ContentType("csv"))
		err = h.engine.ExportCSV(id, c.Response().BodyWriter())
	default:
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unsupported format %q", format)})
	}
	if err != nil {
		c.Response().ResetBody()
		return fail(c, err)
	}
	c.Attachment(export.Filename(id, format))
	return nil
}

func fail(c *fiber.Ctx, err error) error {
	if errors.Is(err, engine.ErrJobNotFound) || errors.Is(err, engine.ErrBulkJobNotFound) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
