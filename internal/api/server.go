package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/loom/internal/inference"
	"github.com/samcharles93/loom/internal/version"
)

type Server struct {
	service *Service
}

func NewServer(service *Service) *Server {
	return &Server{service: service}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/generate", s.handleGenerate)
	e.GET("/v1/generations/:id", s.handleGetGeneration)
	e.DELETE("/v1/generations/:id", s.handleDeleteGeneration)
	e.POST("/v1/generations/:id/cancel", s.handleCancelGeneration)

	e.POST("/v1/tokenize", s.handleTokenize)
}

func (s *Server) handleHealth(c *echo.Context) error {
	c.Response().Header().Set("Server", version.UserAgent())
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   version.String(),
		VocabSize: s.service.VocabSize(),
		Running:   s.service.Running(),
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	req, err := decodeJSON[GenerateRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if (req.Stream != nil && *req.Stream) || streamParam(c) {
		return s.streamGenerate(c, &req)
	}

	ctx := c.Request().Context()
	sess, err := s.service.Prepare(ctx, &req, nil)
	if err != nil {
		return writeServiceError(c, err)
	}
	resp, err := s.service.Run(ctx, sess)
	if err != nil && resp.Status == statusFailed {
		return c.JSON(http.StatusInternalServerError, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

// streamGenerate sends one delta event per emitted piece of text. A client
// that goes away cancels the session through the request context; a failed
// write cancels it directly.
func (s *Server) streamGenerate(c *echo.Context, req *GenerateRequest) error {
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	var sw *SSEStreamWriter
	sess, err := s.service.Prepare(ctx, req, func(delta string) {
		if sw.EmitToken(delta) != nil {
			cancel()
		}
	})
	if err != nil {
		return writeServiceError(c, err)
	}
	sw, err = NewSSEStreamWriter(c)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := sw.Begin(s.service.Snapshot(sess)); err != nil {
		return nil
	}
	resp, _ := s.service.Run(ctx, sess)
	_ = sw.Finish(resp)
	return nil
}

func (s *Server) handleGetGeneration(c *echo.Context) error {
	resp, ok := s.service.Get(c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelGeneration(c *echo.Context) error {
	resp, ok := s.service.Cancel(c.Param("id"))
	if !ok {
		return writeNotFound(c, "generation not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteGeneration(c *echo.Context) error {
	id := c.Param("id")
	switch err := s.service.Delete(id); {
	case errors.Is(err, ErrNotFound):
		return writeNotFound(c, "generation not found")
	case errors.Is(err, ErrStillRunning):
		return writeError(c, http.StatusConflict, "conflict_error", "generation is still running; cancel it first", "id", "")
	}
	return c.JSON(http.StatusOK, DeleteResp{ID: id, Object: "generation", Deleted: true})
}

func (s *Server) handleTokenize(c *echo.Context) error {
	req, err := decodeJSON[TokenizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	resp, err := s.service.Tokenize(req.Text)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
	}
	return c.JSON(http.StatusOK, resp)
}

func streamParam(c *echo.Context) bool {
	q := c.QueryParam("stream")
	return q == "1" || strings.EqualFold(q, "true")
}

func writeServiceError(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, inference.ErrInvalidParameter),
		errors.Is(err, inference.ErrPromptTooLong):
		return writeBadRequest(c, err.Error())
	}
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "", "")
}

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "", "")
}

func writeNotFound(c *echo.Context, msg string) error {
	return writeError(c, http.StatusNotFound, "not_found_error", msg, "", "")
}

func writeError(c *echo.Context, status int, errType, msg, param, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
			Param:   param,
		},
	})
}

func decodeJSON[T any](r io.Reader) (T, error) {
	var out T
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}
