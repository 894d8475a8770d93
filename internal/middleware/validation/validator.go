package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/filter"
)

// TermsKey holds the sanitized advanced-search terms in c.Locals.
const TermsKey = "advanced_terms"

type Config struct {
	MaxParamLength      int
	MaxTerms            int
	MaxTermLength       int
	AllowedContentTypes []string
	// AdvancedPath is the route whose body carries search terms.
	AdvancedPath string
	Logger       *zap.Logger
}

// AdvancedRequest is the body of an advanced search: either a list of
// terms or a free text with one term per line.
type AdvancedRequest struct {
	Terms []string `json:"terms" form:"terms"`
	Text  string   `json:"text" form:"text"`
}

func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxParamLength == 0 {
		cfg.MaxParamLength = 500
	}
	if cfg.MaxTerms == 0 {
		cfg.MaxTerms = 20
	}
	if cfg.MaxTermLength == 0 {
		cfg.MaxTermLength = 200
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON, fiber.MIMEApplicationForm}
	}
	if cfg.AdvancedPath == "" {
		cfg.AdvancedPath = "/api/v1/search/advanced"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if contentType := c.Get(fiber.HeaderContentType); c.Method() == fiber.MethodPost && contentType != "" {
			allowed := false
			for _, t := range cfg.AllowedContentTypes {
				if strings.HasPrefix(contentType, t) {
					allowed = true
					break
				}
			}
			if !allowed {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if err := sanitizeQuery(c, cfg.MaxParamLength); err != nil {
			cfg.Logger.Warn("Rejected query parameters",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		if c.Method() == fiber.MethodPost && c.Path() == cfg.AdvancedPath {
			var req AdvancedRequest
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid request body",
				})
			}

			terms := req.Terms
			if req.Text != "" {
				terms = append(terms, filter.ParseTerms(req.Text)...)
			}
			var clean []string
			for _, t := range terms {
				t = sanitizeString(t)
				if t == "" {
					continue
				}
				if len(t) > cfg.MaxTermLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Search term exceeds maximum length",
					})
				}
				clean = append(clean, t)
			}
			if len(clean) > cfg.MaxTerms {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Too many search terms",
				})
			}
			c.Locals(TermsKey, clean)
		}

		return c.Next()
	}
}

type paramError struct {
	key string
}

func (e *paramError) Error() string {
	return "Parameter '" + e.key + "' exceeds maximum length"
}

// sanitizeQuery rejects oversize parameters and rewrites the query string
// with NUL bytes removed and values trimmed.
func sanitizeQuery(c *fiber.Ctx, maxLen int) error {
	args := c.Request().URI().QueryArgs()
	type pair struct{ k, v string }
	var pairs []pair
	changed := false
	var tooLong error

	args.VisitAll(func(k, v []byte) {
		key, val := string(k), string(v)
		if len(val) > maxLen && tooLong == nil {
			tooLong = &paramError{key: key}
		}
		clean := sanitizeString(val)
		if clean != val {
			changed = true
		}
		pairs = append(pairs, pair{key, clean})
	})
	if tooLong != nil {
		return tooLong
	}

	if changed {
		args.Reset()
		for _, p := range pairs {
			args.Add(p.k, p.v)
		}
	}
	return nil
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
