package web

import (
	"embed"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"imobiliaria/web/config"
	"imobiliaria/web/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"money":      formatBRL,
	"inc":        func(i int) int { return i + 1 },
	"category":   config.GetCategoryLabel,
	"categories": func() []config.Category { return config.SupportedCategories },
	"roles": func() []models.Role {
		return []models.Role{models.RoleClient, models.RoleBroker, models.RoleAdmin}
	},
}

// LoadTemplates parses the embedded view templates.
func LoadTemplates() *template.Template {
	return template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"))
}

// formatBRL renders a price the way Brazilian listings show it, e.g. R$ 1.250.000,00
func formatBRL(v float64) string {
	negative := v < 0
	cents := int64(math.Round(math.Abs(v) * 100))
	whole := strconv.FormatInt(cents/100, 10)

	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	out := "R$ " + grouped.String() + "," + strconv.FormatInt(cents%100+100, 10)[1:]
	if negative {
		return "-" + out
	}
	return out
}

// pageURL builds the link to another page of the same search.
func pageURL(path string, query url.Values, page int) string {
	q := url.Values{}
	for k, v := range query {
		if k != "page" {
			q[k] = v
		}
	}
	q.Set("page", strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// render executes a view with the header fields every page needs.
func (h *Handler) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	if s := currentSession(c); s != nil {
		state := s.State()
		data["Authenticated"] = state.Authenticated
		data["Role"] = state.Role
		data["RoleLabel"] = state.Role.Label()
		data["Subject"] = state.Subject
		data["SubjectID"] = state.SubjectID
		data["IsClient"] = state.Role == models.RoleClient
		data["IsAdmin"] = state.Role == models.RoleAdmin
	}

	c.HTML(status, name, data)
}

func (h *Handler) renderError(c *gin.Context, status int, message string) {
	h.render(c, status, "error.html", gin.H{
		"Title": http.StatusText(status),
		"Error": message,
	})
}
