package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Krishna180104/cse-leave/internal/apperr"
	"github.com/Krishna180104/cse-leave/internal/identity"
)

type registerRequest struct {
	Name               string `json:"name" form:"name" validate:"required,max=120"`
	RegistrationNumber string `json:"registrationNumber" form:"registrationNumber" validate:"omitempty,max=32"`
	Email              string `json:"email" form:"email" validate:"required,email"`
	Password           string `json:"password" form:"password" validate:"required,min=6,max=72"`
	// допустимые значения проверяет identity: роль без учёта регистра
	Role               string `json:"role" form:"role" validate:"max=16"`
}

// POST /api/accounts — JSON или multipart с файлом idCardImage.
func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	in := identity.Registration{
		Name:               req.Name,
		RegistrationNumber: req.RegistrationNumber,
		Email:              req.Email,
		Password:           req.Password,
		Role:               req.Role,
	}

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("idCardImage")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			return apperr.Validation("idCardImage could not be read")
		default:
			if fh.Size > s.opts.MaxUploadBytes {
				return apperr.Validation("idCardImage is too large")
			}
			src, err := fh.Open()
			if err != nil {
				return apperr.Validation("idCardImage could not be read")
			}
			path, err := s.files.SaveImage(fh.Filename, src)
			_ = src.Close()
			if err != nil {
				return err
			}
			in.IDCardImage = &path
		}
	}

	res, err := s.eng.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	msg := "Registration request sent. Wait for admin approval."
	if res.Bootstrap {
		msg = "Admin account created successfully."
	}
	return c.JSON(http.StatusCreated, map[string]any{"message": msg, "account": res.Account})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	sess, err := s.eng.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	a := sess.Account
	return c.JSON(http.StatusOK, map[string]any{
		"token":     sess.Token,
		"expiresIn": int64(sess.ExpiresIn.Seconds()),
		"user":      map[string]any{"id": a.ID, "name": a.Name, "email": a.Email, "role": a.Role},
	})
}

func (s *Server) me(c echo.Context) error {
	return c.JSON(http.StatusOK, actor(c))
}

func (s *Server) listAccounts(c echo.Context) error {
	out, err := s.eng.ListAccounts(c.Request().Context(), actor(c), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) pendingAccounts(c echo.Context) error {
	out, err := s.eng.ListAccounts(c.Request().Context(), actor(c), true)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) searchAccounts(c echo.Context) error {
	out, err := s.eng.SearchAccounts(c.Request().Context(), actor(c), c.QueryParam("prefix"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) approveAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := s.eng.ApproveAccount(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) rejectAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	res, err := s.eng.RejectAccount(c.Request().Context(), actor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":      "Signup request rejected.",
		"notification": res.Notification,
	})
}

func (s *Server) deleteAccount(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if _, err := s.eng.DeleteAccount(c.Request().Context(), actor(c), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"message": "Account deleted."})
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (s *Server) bulkDeleteAccounts(c echo.Context) error {
	var req bulkDeleteRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	gone, err := s.eng.BulkDeleteAccounts(c.Request().Context(), actor(c), req.IDs)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(gone))
	for _, a := range gone {
		ids = append(ids, a.ID)
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted": len(gone), "ids": ids})
}

func (s *Server) stats(c echo.Context) error {
	st, err := s.eng.Stats(c.Request().Context(), actor(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

