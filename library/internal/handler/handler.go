package handler

import (
	"net/http"
	"strconv"

	"github.com/Astemirdum/library-loans/library/internal/errs"
	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/Astemirdum/library-loans/pkg/auth"
	"github.com/Astemirdum/library-loans/pkg/metrics"
	md "github.com/Astemirdum/library-loans/pkg/middleware"
	"github.com/Astemirdum/library-loans/pkg/validate"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	librarySvc LibraryService
	log        *zap.Logger
}

func New(librarySvc LibraryService, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		log:        log,
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPatch, http.MethodPost, http.MethodDelete},
		AllowCredentials: true,
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	e.Validator = validate.NewCustomValidator()
	api := e.Group("/api/v1",
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log.Named("echo"))),
		middleware.RequestID(),
		md.NewRateLimiter(apiRPS),
		md.AuthContext,
	)

	api.POST("/books/:bookId/borrow", h.Borrow)
	api.POST("/books/:bookId/return", h.Return)
	api.GET("/books/:bookId", h.GetBook)
	api.GET("/loans/:loanId", h.GetLoan)

	admin := md.RequireAdmin
	api.POST("/loans/:loanId/overdue-fine", h.AssessOverdueFine, admin)
	api.POST("/books/:bookId/loss", h.ResolveLoss, admin)
	api.POST("/loans/:loanId/pay", h.PayFine, admin)

	api.POST("/books", h.AddBook, admin)
	api.PUT("/books/:bookId", h.UpdateBook, admin)
	api.DELETE("/books/:bookId", h.DeleteBook, admin)

	api.POST("/users", h.AddUser, admin)
	api.PATCH("/users/:userId/active", h.SetUserActive, admin)
	api.DELETE("/users/:userId", h.DeleteUser, admin)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// httpError maps an error kind to its status code. Persistence failures are
// logged and answered with a bare 500 so driver text never reaches the client.
func (h *Handler) httpError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.KindValidation:
		code = http.StatusBadRequest
	case errs.KindNotFound:
		code = http.StatusNotFound
	case errs.KindBusinessRule:
		code = http.StatusConflict
	default:
		h.log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return echo.NewHTTPError(code, http.StatusText(code))
	}
	return echo.NewHTTPError(code, err.Error())
}

func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func paramID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" is invalid")
	}
	return id, nil
}

func (h *Handler) Borrow(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := auth.GetPrincipal(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	loan, err := h.librarySvc.Borrow(ctx, bookID, p.UserID)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, loan)
}

func (h *Handler) Return(c echo.Context) error {
	ctx := c.Request().Context()
	p, err := auth.GetPrincipal(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	if err := h.librarySvc.Return(ctx, bookID, p.UserID); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AssessOverdueFine(c echo.Context) error {
	var req model.AssessFineRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.librarySvc.AssessOverdueFine(c.Request().Context(), req.LoanID, req.FineAmount); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ResolveLoss(c echo.Context) error {
	var req model.ResolveLossRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	book, err := h.librarySvc.ResolveLoss(c.Request().Context(), req.BookID, req.Resolution, req.Amount)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) PayFine(c echo.Context) error {
	loanID, err := paramID(c, "loanId")
	if err != nil {
		return err
	}
	if err := h.librarySvc.PayFine(c.Request().Context(), loanID); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetLoan(c echo.Context) error {
	loanID, err := paramID(c, "loanId")
	if err != nil {
		return err
	}
	loan, err := h.librarySvc.GetLoan(c.Request().Context(), loanID)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, loan)
}
