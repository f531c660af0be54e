package handler

import (
	"net/http"

	"github.com/Astemirdum/library-loans/library/internal/model"
	"github.com/labstack/echo/v4"
)

func (h *Handler) GetBook(c echo.Context) error {
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	book, err := h.librarySvc.GetBook(c.Request().Context(), bookID)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusOK, book)
}

func (h *Handler) AddBook(c echo.Context) error {
	var req model.BookRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	book, err := h.librarySvc.AddBook(c.Request().Context(), req.Title, req.Author)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, book)
}

func (h *Handler) UpdateBook(c echo.Context) error {
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	var req model.BookRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.librarySvc.UpdateBook(c.Request().Context(), bookID, req.Title, req.Author); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteBook(c echo.Context) error {
	bookID, err := paramID(c, "bookId")
	if err != nil {
		return err
	}
	if err := h.librarySvc.DeleteBook(c.Request().Context(), bookID); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) AddUser(c echo.Context) error {
	var req model.CreateUserRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	user, err := h.librarySvc.AddUser(c.Request().Context(), req.Username, req.Password, req.Role)
	if err != nil {
		return h.httpError(c, err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *Handler) SetUserActive(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	var req model.SetActiveRequest
	if err := bindValid(c, &req); err != nil {
		return err
	}
	if err := h.librarySvc.SetUserActive(c.Request().Context(), userID, *req.IsActive); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	userID, err := paramID(c, "userId")
	if err != nil {
		return err
	}
	if err := h.librarySvc.DeleteUser(c.Request().Context(), userID); err != nil {
		return h.httpError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
