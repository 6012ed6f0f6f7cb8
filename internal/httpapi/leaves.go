package httpapi

import (
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/export"
	"github.com/Krishna180104/cse-leave/internal/leave"
	"github.com/Krishna180104/cse-leave/internal/workflow"
)

type leaveRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

func (s *Server) submitLeave(c echo.Context) error {
	var req leaveRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	l, err := s.eng.SubmitLeave(c.Request().Context(), actor(c), leave.Submission{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, l)
}

func (s *Server) myLeaves(c echo.Context) error {
	out, err := s.eng.MyLeaves(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listLeaves(c echo.Context) error {
	out, err := s.eng.ListLeaves(c.Request().Context(), actor(c), c.QueryParam("status"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) pendingLeaves(c echo.Context) error {
	out, err := s.eng.ListPending(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

type decisionRequest struct {
	Status          string `json:"status" validate:"required,oneof=approved rejected"`
	RejectionReason string `json:"rejectionReason" validate:"max=2000"`
}

func (s *Server) decide(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req decisionRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	res, err := s.eng.Decide(c.Request().Context(), actor(c), workflow.DecisionInput{
		RequestID:       id,
		Status:          req.Status,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type bulkDecisionRequest struct {
	Applications []workflow.DecisionInput `json:"applications"`
}

func (s *Server) bulkDecide(c echo.Context) error {
	var req bulkDecisionRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	out, err := s.eng.BulkDecide(c.Request().Context(), actor(c), req.Applications)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"results": out})
}

// DELETE /api/leave-requests?status=rejected
func (s *Server) purgeLeaves(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		return apperr.Validation("status is required")
	}
	n, err := s.eng.PurgeLeaves(c.Request().Context(), actor(c), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted": n})
}

func (s *Server) document(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	path, _, err := s.eng.Document(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	if !s.files.Exists(path) {
		return apperr.NotFound("approval letter")
	}
	return c.Inline(s.files.Path(path), filepath.Base(path))
}

func (s *Server) export(c echo.Context) error {
	ctx := c.Request().Context()
	leaves, err := s.eng.ListLeaves(ctx, actor(c), "")
	if err != nil {
		return err
	}
	accounts, err := s.eng.ListAccounts(ctx, actor(c), false)
	if err != nil {
		return err
	}
	f, err := export.LeaveReport(leaves, accounts, s.opts.Location)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	name := export.ReportFilename(s.opts.Department, time.Now().In(s.opts.Location))
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().WriteHeader(http.StatusOK)
	return f.Write(c.Response())
}
