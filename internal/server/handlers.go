package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Sakenfor/pixsim7-sub008/internal/constants"
	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
	"github.com/Sakenfor/pixsim7-sub008/internal/state"
)

// httpError maps launcher errors onto HTTP responses.
func httpError(c echo.Context, err error) error {
	if le, ok := err.(*errors.LauncherError); ok {
		return c.JSON(le.HTTPStatus, ErrorResponse{Error: le.Error()})
	}
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

func (s *Server) handleStatus(c echo.Context) error {
	snapshots := s.deps.Process.AllStates()
	resp := StatusResponse{Services: len(snapshots)}
	for _, snap := range snapshots {
		if snap.Status == state.StatusRunning {
			resp.Running++
		}
		if snap.Health == state.HealthHealthy {
			resp.Healthy++
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListServices(c echo.Context) error {
	return c.JSON(http.StatusOK, ServicesResponse{Services: s.deps.Process.AllStates()})
}

func (s *Server) handleGetService(c echo.Context) error {
	snap, err := s.deps.Process.State(c.Param("key"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStartService(c echo.Context) error {
	key := c.Param("key")
	if err := s.deps.Process.Start(c.Request().Context(), key); err != nil {
		return httpError(c, err)
	}
	snap, _ := s.deps.Process.State(key)
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleStopService(c echo.Context) error {
	key := c.Param("key")
	graceful := c.QueryParam("graceful") != "false"
	if err := s.deps.Process.Stop(c.Request().Context(), key, graceful); err != nil {
		return httpError(c, err)
	}
	snap, _ := s.deps.Process.State(key)
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleRestartService(c echo.Context) error {
	key := c.Param("key")
	if err := s.deps.Process.Restart(c.Request().Context(), key); err != nil {
		return httpError(c, err)
	}
	snap, _ := s.deps.Process.State(key)
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleToolCheck(c echo.Context) error {
	key := c.Param("key")
	if _, err := s.deps.Process.CheckToolAvailability(key); err != nil {
		return httpError(c, err)
	}
	snap, _ := s.deps.Process.State(key)
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleGetLogs(c echo.Context) error {
	key := c.Param("key")

	maxLines := constants.DefaultLogTailLines
	if raw := c.QueryParam("max_lines"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_lines"})
		}
		maxLines = parsed
	}

	lines, err := s.deps.Logs.GetLogs(key, c.QueryParam("filter"), c.QueryParam("level"), maxLines)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, LogsResponse{Service: key, Lines: lines})
}

func (s *Server) handleClearLogs(c echo.Context) error {
	if err := s.deps.Logs.ClearLogs(c.Param("key")); err != nil {
		return httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleEventHistory(c echo.Context) error {
	if s.deps.History == nil {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "event history not enabled"})
	}

	limit := constants.DefaultEventHistoryLimit
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = parsed
	}

	records, err := s.deps.History.Recent(c.Request().Context(), limit,
		c.QueryParam("type"), c.QueryParam("service"))
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, EventsResponse{Events: records})
}

func (s *Server) handleBusStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Bus.Stats())
}
