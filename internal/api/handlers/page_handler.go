package handlers

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/filter"
	"github.com/rulings-explorer/backend/pkg/logger"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"pct": func(count, max int) int {
		if max <= 0 {
			return 0
		}
		return count * 100 / max
	},
	"has": func(list []string, s string) bool {
		for _, v := range list {
			if v == s {
				return true
			}
		}
		return false
	},
	"join": strings.Join,
}).ParseFS(templateFS, "templates/dashboard.html"))

// PageHandler renders the whole dashboard as one server-side page driven
// by query parameters, so it works without any client script.
type PageHandler struct {
	dash *DashboardHandler
}

func NewPageHandler(dash *DashboardHandler) *PageHandler {
	return &PageHandler{dash: dash}
}

type pageData struct {
	Options      *dashboard.OptionsView
	Selected     filter.State
	Summary      *dashboard.SummaryView
	Columns      []string
	Records      *dashboard.Grid
	RecordsError string
	ExportURL    template.URL
	Terms        *dashboard.TermsView
	MinTerms     int
	MaxTerms     int
	AdvancedText string
	Advanced     *dashboard.AdvancedView
	Timeline     *dashboard.TimelineView
	TimelineMax  int
	Info         *dashboard.InfoView
}

func (p *PageHandler) Render(c *fiber.Ctx) error {
	e := p.dash.engine
	ctx := c.UserContext()

	state, err := parseState(c)
	if err != nil {
		return badRequest(c, "Invalid filter parameters")
	}
	selected := state
	for _, v := range []*string{&selected.Category, &selected.ResourceType, &selected.Outcome} {
		if *v == "" {
			*v = e.Sentinel()
		}
	}

	data := pageData{
		Options:  e.Options(),
		Selected: selected,
		Summary:  e.Summary(ctx, state),
		Terms:    e.Terms(c.QueryInt("n", 0)),
		Timeline: e.Timeline(),
		Info:     e.Info(),
	}
	data.MinTerms, data.MaxTerms = e.TopTermsRange()
	for _, y := range data.Timeline.Years {
		if y.Count > data.TimelineMax {
			data.TimelineMax = y.Count
		}
	}

	columns, err := e.ResolveColumns(parseColumns(c))
	if err != nil {
		data.RecordsError = err.Error()
		if errors.Is(err, dashboard.ErrNoColumns) {
			data.RecordsError = "Por favor selecciona al menos una columna para mostrar."
		}
	} else {
		data.Columns = columns
		data.Records, err = e.Records(ctx, state, columns, c.QueryInt("page", 1), c.QueryInt("size", 0))
		if err != nil {
			data.RecordsError = err.Error()
		}
		data.ExportURL = template.URL("/api/v1/export?" + exportQuery(state, columns))
	}

	if text := c.Query("terminos"); text != "" {
		data.AdvancedText = text
		data.Advanced = e.AdvancedSearch(ctx, filter.ParseTerms(text))
		p.dash.recordSearch(c, data.Advanced)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		logger.Error("Failed to render dashboard", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to render dashboard")
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func exportQuery(state filter.State, columns []string) string {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("materia", state.Category)
	set("tipo", state.ResourceType)
	set("resultado", state.Outcome)
	set("q", state.Search)
	for _, col := range columns {
		v.Add("columns", col)
	}
	return v.Encode()
}
