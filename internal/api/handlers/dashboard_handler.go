package handlers

import (
	"bytes"
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/internal/middleware/validation"
	"github.com/rulings-explorer/backend/internal/storage/models"
	"github.com/rulings-explorer/backend/pkg/logger"
)

// AuditLog records exports and advanced searches. Optional.
type AuditLog interface {
	InsertExport(ctx context.Context, rec *models.ExportRecord) error
	InsertSearch(ctx context.Context, rec *models.SearchRecord) error
	RecentHistory(ctx context.Context, limit int) (*models.History, error)
}

type DashboardHandler struct {
	engine *dashboard.Engine
	audit  AuditLog
}

func NewDashboardHandler(engine *dashboard.Engine, audit AuditLog) *DashboardHandler {
	return &DashboardHandler{
		engine: engine,
		audit:  audit,
	}
}

func (h *DashboardHandler) GetOptions(c *fiber.Ctx) error {
	return c.JSON(h.engine.Options())
}

func (h *DashboardHandler) GetSummary(c *fiber.Ctx) error {
	state, err := parseState(c)
	if err != nil {
		return badRequest(c, "Invalid filter parameters")
	}
	return c.JSON(h.engine.Summary(c.UserContext(), state))
}

func (h *DashboardHandler) GetRecords(c *fiber.Ctx) error {
	state, err := parseState(c)
	if err != nil {
		return badRequest(c, "Invalid filter parameters")
	}

	grid, err := h.engine.Records(c.UserContext(), state, parseColumns(c), c.QueryInt("page", 1), c.QueryInt("size", 0))
	if err != nil {
		return columnError(c, err)
	}
	return c.JSON(grid)
}

func (h *DashboardHandler) Export(c *fiber.Ctx) error {
	state, err := parseState(c)
	if err != nil {
		return badRequest(c, "Invalid filter parameters")
	}
	columns, err := h.engine.ResolveColumns(parseColumns(c))
	if err != nil {
		return columnError(c, err)
	}

	var buf bytes.Buffer
	n, err := h.engine.Export(c.UserContext(), &buf, state, columns)
	if err != nil {
		logger.Error("Failed to export rulings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export rulings",
		})
	}

	if h.audit != nil {
		rec := &models.ExportRecord{
			Filter:  state.Normalize(h.engine.Sentinel()).Key(),
			Columns: columns,
			Rows:    n,
			Client:  c.IP(),
		}
		if err := h.audit.InsertExport(c.UserContext(), rec); err != nil {
			logger.Warn("Failed to record export", zap.Error(err))
		}
	}

	c.Attachment(dashboard.ExportFileName)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

func (h *DashboardHandler) GetTerms(c *fiber.Ctx) error {
	return c.JSON(h.engine.Terms(c.QueryInt("n", 0)))
}

func (h *DashboardHandler) AdvancedSearch(c *fiber.Ctx) error {
	terms, ok := c.Locals(validation.TermsKey).([]string)
	if !ok {
		var req validation.AdvancedRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
		terms = append(req.Terms, filter.ParseTerms(req.Text)...)
	}

	view := h.engine.AdvancedSearch(c.UserContext(), terms)
	h.recordSearch(c, view)
	return c.JSON(view)
}

func (h *DashboardHandler) recordSearch(c *fiber.Ctx, view *dashboard.AdvancedView) {
	if h.audit == nil || len(view.Terms) == 0 || view.Warning != "" {
		return
	}
	rec := &models.SearchRecord{Terms: view.Terms, Found: view.Found, Client: c.IP()}
	if err := h.audit.InsertSearch(c.UserContext(), rec); err != nil {
		logger.Warn("Failed to record search", zap.Error(err))
	}
}

func (h *DashboardHandler) GetTimeline(c *fiber.Ctx) error {
	return c.JSON(h.engine.Timeline())
}

func (h *DashboardHandler) GetDataset(c *fiber.Ctx) error {
	return c.JSON(h.engine.Info())
}

func (h *DashboardHandler) GetHistory(c *fiber.Ctx) error {
	if h.audit == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "History is disabled",
		})
	}

	history, err := h.audit.RecentHistory(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		logger.Error("Failed to read history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read history",
		})
	}
	return c.JSON(history)
}

func parseState(c *fiber.Ctx) (filter.State, error) {
	var state filter.State
	if err := c.QueryParser(&state); err != nil {
		return filter.State{}, err
	}
	return state, nil
}

// parseColumns reads repeated or comma-separated "columns" parameters.
// Absent means the default selection; present but blank is an explicit
// empty selection.
func parseColumns(c *fiber.Ctx) []string {
	raw := c.Context().QueryArgs().PeekMulti("columns")
	if len(raw) == 0 {
		return nil
	}
	columns := []string{}
	for _, v := range raw {
		for _, col := range strings.Split(string(v), ",") {
			if col = strings.TrimSpace(col); col != "" {
				columns = append(columns, col)
			}
		}
	}
	return columns
}

func columnError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, dashboard.ErrNoColumns):
		return badRequest(c, "Seleccione al menos una columna para mostrar")
	case errors.Is(err, dashboard.ErrUnknownColumn):
		return badRequest(c, err.Error())
	}
	logger.Error("Failed to build grid", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to build grid",
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": msg,
	})
}
