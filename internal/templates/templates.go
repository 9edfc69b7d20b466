// Package templates holds the HTML fragments rendered by the comment views.
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"
)

//go:embed html/*.html
var templateFS embed.FS

// CommentBody is the name of the single-comment fragment.
const CommentBody = "comment_body.html"

// Load parses every embedded template.
func Load() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatDate": formatDate,
		"paragraphs": paragraphs,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "html/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return tmpl, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}

// paragraphs splits text on blank lines, dropping empty chunks.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
