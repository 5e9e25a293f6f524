package httpserver

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

var templateFuncs = template.FuncMap{
	"money": func(m *domain.Money) string {
		if m == nil {
			return ""
		}
		return m.String()
	},
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
}

// page is the data every template receives.
type page struct {
	Title string
	Error string
	Data  any
}

func render(c *gin.Context, status int, name, title string, data any) {
	c.HTML(status, name, page{Title: title, Data: data})
}

func renderError(c *gin.Context, status int, message string) {
	c.HTML(status, "error", page{Title: http.StatusText(status), Error: message})
}

func renderNotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found."})
		return
	}
	renderError(c, http.StatusNotFound, "We couldn't find that page.")
}

// failPage logs err on the request and renders the matching error page.
func failPage(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)
	if status == http.StatusNotFound {
		renderNotFound(c)
		return
	}
	renderError(c, status, publicMessage(err))
}
