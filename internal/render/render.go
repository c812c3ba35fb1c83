// Package render produces the HTML pages of the site.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/serroba/shortlinks/internal/shortener"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer renders full HTML pages.
type Renderer interface {
	Home(user *shortener.User) ([]byte, error)
	Links(user *shortener.User, links []shortener.ShortLink) ([]byte, error)
}

type page struct {
	Title   string
	BaseURL string
	User    *shortener.User
	Links   []shortener.ShortLink
}

// TemplateRenderer renders pages from the embedded html/template files.
type TemplateRenderer struct {
	baseURL string
	home    *template.Template
	links   *template.Template
}

// NewTemplateRenderer parses the embedded templates. baseURL prefixes displayed short links.
func NewTemplateRenderer(baseURL string) (*TemplateRenderer, error) {
	home, err := template.ParseFS(templateFS, "templates/layout.html", "templates/home.html")
	if err != nil {
		return nil, fmt.Errorf("parse home template: %w", err)
	}

	links, err := template.ParseFS(templateFS, "templates/layout.html", "templates/links.html")
	if err != nil {
		return nil, fmt.Errorf("parse links template: %w", err)
	}

	return &TemplateRenderer{baseURL: baseURL, home: home, links: links}, nil
}

func (r *TemplateRenderer) Home(user *shortener.User) ([]byte, error) {
	return r.execute(r.home, page{Title: "Short Links", BaseURL: r.baseURL, User: user})
}

func (r *TemplateRenderer) Links(user *shortener.User, links []shortener.ShortLink) ([]byte, error) {
	return r.execute(r.links, page{Title: "My links", BaseURL: r.baseURL, User: user, Links: links})
}

func (r *TemplateRenderer) execute(t *template.Template, data page) ([]byte, error) {
	var buf bytes.Buffer

	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", data.Title, err)
	}

	return buf.Bytes(), nil
}

var _ Renderer = (*TemplateRenderer)(nil)
