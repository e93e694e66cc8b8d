// handlers_content.go - Static site content and link-outs
package api

import (
	"net/http"

	"github.com/deepguard/backend/internal/content"
	"github.com/deepguard/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// ContentHandlerImpl implements the ContentHandler interface
type ContentHandlerImpl struct {
	site           *models.SiteContent
	releaseBaseURL string
	repositoryURL  string
}

// NewContentHandler creates a content handler over a loaded site
func NewContentHandler(site *models.SiteContent, releaseBaseURL, repositoryURL string) ContentHandler {
	return &ContentHandlerImpl{
		site:           site,
		releaseBaseURL: releaseBaseURL,
		repositoryURL:  repositoryURL,
	}
}

// HandleGetContent returns the whole site document
func (h *ContentHandlerImpl) HandleGetContent(c echo.Context) error {
	return c.JSON(http.StatusOK, h.site)
}

// HandleGetSection returns one named section
func (h *ContentHandlerImpl) HandleGetSection(c echo.Context) error {
	name := c.Param("section")
	section, ok := content.Section(h.site, name)
	if !ok {
		return NewNotFoundError("section", name)
	}
	return c.JSON(http.StatusOK, section)
}

// HandleDownloadDocument redirects to a document's release asset
func (h *ContentHandlerImpl) HandleDownloadDocument(c echo.Context) error {
	slug := c.Param("slug")
	doc, ok := content.FindDocument(h.site, slug)
	if !ok {
		return NewNotFoundError("document", slug)
	}

	docType := doc.Type
	if t := c.QueryParam("type"); t != "" {
		if docType, ok = content.DocumentType(doc, t); !ok {
			return NewValidationError("type")
		}
	}
	return c.Redirect(http.StatusFound, content.DownloadURL(h.releaseBaseURL, doc.Title, docType))
}

// HandleOpenRepository redirects to the project repository
func (h *ContentHandlerImpl) HandleOpenRepository(c echo.Context) error {
	if h.repositoryURL == "" {
		return NewNotFoundError("repository", "url")
	}
	return c.Redirect(http.StatusFound, h.repositoryURL)
}
