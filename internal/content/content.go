// Package content loads the static copy of the project site.
package content

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/deepguard/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed site.yaml
var defaultSite []byte

// DefaultReleaseBaseURL is where documentation artefacts are published.
const DefaultReleaseBaseURL = "https://github.com/your-repo/deepfake-detector/releases/download/v1.0"

// Sections lists the names accepted by Section.
var Sections = []string{"navigation", "hero", "technology", "pipeline", "results", "demo", "team", "docs", "footer"}

// DocumentTypes lists the download formats a document may be requested in.
var DocumentTypes = []string{"pdf", "zip", "docx"}

// DocumentType normalises a requested download format. It accepts the
// document's own type or one of DocumentTypes, ignoring case.
func DocumentType(doc models.Document, requested string) (string, bool) {
	t := strings.ToLower(requested)
	if t == strings.ToLower(doc.Type) || slices.Contains(DocumentTypes, t) {
		return t, true
	}
	return "", false
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Slug lowercases a title and replaces whitespace runs with dashes.
func Slug(title string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(title), "-")
}

// DownloadURL builds the release asset URL of a document.
func DownloadURL(baseURL, title, docType string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultReleaseBaseURL
	}
	return fmt.Sprintf("%s/%s.%s", base, Slug(title), strings.ToLower(docType))
}

// Initials joins the first letter of each name part.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r := []rune(part)
		b.WriteRune(r[0])
	}
	return b.String()
}

// Default parses the embedded site document.
func Default(releaseBaseURL string) (*models.SiteContent, error) {
	return Parse(bytes.NewReader(defaultSite), releaseBaseURL)
}

// LoadFile parses a site document from disk.
func LoadFile(path, releaseBaseURL string) (*models.SiteContent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f, releaseBaseURL)
}

// Parse reads a YAML site document and fills in derived fields.
func Parse(r io.Reader, releaseBaseURL string) (*models.SiteContent, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var site models.SiteContent
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, fmt.Errorf("parsing site content: %w", err)
	}

	for i := range site.Team.Members {
		site.Team.Members[i].Initials = Initials(site.Team.Members[i].Name)
	}
	for i := range site.Docs.Documents {
		doc := &site.Docs.Documents[i]
		doc.Slug = Slug(doc.Title)
		doc.DownloadURL = DownloadURL(releaseBaseURL, doc.Title, doc.Type)
	}

	return &site, nil
}

// Section returns one named part of the site.
func Section(site *models.SiteContent, name string) (any, bool) {
	switch name {
	case "navigation":
		return site.Navigation, true
	case "hero":
		return site.Hero, true
	case "technology":
		return site.Technology, true
	case "pipeline":
		return site.Pipeline, true
	case "results":
		return site.Results, true
	case "demo":
		return site.Demo, true
	case "team":
		return site.Team, true
	case "docs":
		return site.Docs, true
	case "footer":
		return site.Footer, true
	}
	return nil, false
}

// FindDocument looks a document up by slug.
func FindDocument(site *models.SiteContent, slug string) (models.Document, bool) {
	for _, doc := range site.Docs.Documents {
		if doc.Slug == slug {
			return doc, true
		}
	}
	return models.Document{}, false
}
