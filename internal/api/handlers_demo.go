// handlers_demo.go - Interactive demo handlers: sessions, file selection, analysis
package api

import (
	"errors"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/deepguard/backend/internal/upload"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// DemoHandlerImpl implements the DemoHandler interface
type DemoHandlerImpl struct {
	sessions SessionManager
	limits   upload.Constraints
	validate *validator.Validate
}

// NewDemoHandler creates a new demo handler instance. A nil uploads falls
// back to the default constraints.
func NewDemoHandler(sessions SessionManager, uploads *upload.Validator) DemoHandler {
	if uploads == nil {
		uploads = upload.NewValidator(upload.DefaultConstraints())
	}

	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &DemoHandlerImpl{
		sessions: sessions,
		limits:   uploads.Constraints(),
		validate: v,
	}
}

// HandleCreateSession starts a new demo in the idle state
func (h *DemoHandlerImpl) HandleCreateSession(c echo.Context) error {
	snap, err := h.sessions.StartSession()
	if err != nil {
		return FromDomainError(err, "")
	}
	return c.JSON(http.StatusCreated, snap)
}

// HandleGetSession returns the current state of a demo
func (h *DemoHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	snap, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleDeleteSession discards a demo and any pending analysis
func (h *DemoHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if err := h.sessions.DeleteSession(id); err != nil {
		return FromDomainError(err, id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleUploadFile selects a file sent as multipart/form-data. The "file"
// part is streamed: its Content-Type header is checked first and the bytes
// are only counted, up to one past the size ceiling, when the type is allowed.
func (h *DemoHandlerImpl) HandleUploadFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	reader, err := c.Request().MultipartReader()
	if err != nil {
		return NewBadRequestError("no file provided", err)
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			return NewBadRequestError("no file provided", err)
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}
		defer part.Close()

		d := upload.Declaration{
			Name:      part.FileName(),
			MediaType: part.Header.Get(echo.HeaderContentType),
		}
		if slices.Contains(h.limits.AllowedTypes, d.MediaType) {
			d.Size, err = io.Copy(io.Discard, io.LimitReader(part, h.limits.MaxSize+1))
			if err != nil {
				return NewBadRequestError("failed to read file", err)
			}
		}
		return h.selectFile(c, id, d)
	}
}

// HandleDeclareFile selects a file from JSON metadata alone
func (h *DemoHandlerImpl) HandleDeclareFile(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	var req declareFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return NewValidationError(verrs[0].Field())
		}
		return NewBadRequestError("invalid request", err)
	}

	return h.selectFile(c, id, upload.Declaration{
		Name:      req.Name,
		MediaType: req.Type,
		Size:      *req.Size,
	})
}

func (h *DemoHandlerImpl) selectFile(c echo.Context, id string, d upload.Declaration) error {
	snap, err := h.sessions.SelectFile(id, d)
	if err != nil {
		return FromDomainError(err, id)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleRunAnalysis schedules the mock analysis of the selected file
func (h *DemoHandlerImpl) HandleRunAnalysis(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	snap, err := h.sessions.RunAnalysis(id)
	if err != nil {
		return FromDomainError(err, id)
	}
	return c.JSON(http.StatusAccepted, snap)
}

// HandleGetResult returns the last resolved classification
func (h *DemoHandlerImpl) HandleGetResult(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	result, err := h.sessions.Result(id)
	if err != nil {
		return FromDomainError(err, id)
	}
	if result == nil {
		return NewNotFoundError("result", id)
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGetResultMsgpack returns the last resolved classification as msgpack
func (h *DemoHandlerImpl) HandleGetResultMsgpack(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	result, err := h.sessions.Result(id)
	if err != nil {
		return FromDomainError(err, id)
	}
	if result == nil {
		return NewNotFoundError("result", id)
	}

	data, err := msgpack.Marshal(result)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetNotifications returns the session's recent notifications
func (h *DemoHandlerImpl) HandleGetNotifications(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	list, err := h.sessions.Notifications(id)
	if err != nil {
		return FromDomainError(err, id)
	}
	return c.JSON(http.StatusOK, list)
}

// HandleKeepAlive refreshes a session so cleanup leaves it alone
func (h *DemoHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return NewValidationError("id")
	}

	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// Request types

type declareFileRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Type string `json:"type" validate:"max=255"`
	Size *int64 `json:"size" validate:"required,gte=0"`
}
