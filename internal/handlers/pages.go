package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/devtitozzzzg/todo/internal/auth"
	dom "github.com/devtitozzzzg/todo/internal/domain"
	"github.com/devtitozzzzg/todo/internal/dto"
	"github.com/devtitozzzzg/todo/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgTodoRequired = "title (up to 50 characters) and body (up to 500 characters) are required"
	msgTodoNotFound = "todo not found"
	msgInvalidID    = "invalid id"
	msgServerError  = "something went wrong, please try again"
)

// pageData is the single view model handed to every template.
type pageData struct {
	Title    string
	Error    string
	User     *dom.User
	Username string
	Form     dto.TodoForm
	Todo     dom.Todo
	Todos    []dom.Todo
}

func newPage(c *gin.Context, title string) pageData {
	p := pageData{Title: title}
	if u, ok := auth.UserFromContext(c); ok {
		p.User = &u
	}
	return p
}

func renderError(c *gin.Context, status int, msg string) {
	p := newPage(c, http.StatusText(status))
	p.Error = msg
	c.HTML(status, "error.html", p)
}

// TodoPages serves the HTML pages for todos. Every route sits behind
// auth.RequireSession.
type TodoPages struct {
	svc    *service.TodoService
	logger *slog.Logger
}

func NewTodoPages(svc *service.TodoService, logger *slog.Logger) *TodoPages {
	return &TodoPages{svc: svc, logger: logger}
}

func (h *TodoPages) Index(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.serverError(c, "list todos", err)
		return
	}
	p := newPage(c, "Todos")
	p.Todos = list
	c.HTML(http.StatusOK, "index.html", p)
}

func (h *TodoPages) CreatePage(c *gin.Context) {
	c.HTML(http.StatusOK, "create.html", newPage(c, "New todo"))
}

func (h *TodoPages) Create(c *gin.Context) {
	var form dto.TodoForm
	bindErr := c.ShouldBind(&form)
	if bindErr == nil {
		_, err := h.svc.Create(c.Request.Context(), form.Title, form.Body)
		if err == nil {
			c.Redirect(http.StatusFound, "/")
			return
		}
		if !errors.Is(err, service.ErrValidation) {
			h.serverError(c, "create todo", err)
			return
		}
	}
	p := newPage(c, "New todo")
	p.Form = form
	p.Error = msgTodoRequired
	c.HTML(http.StatusBadRequest, "create.html", p)
}

func (h *TodoPages) EditPage(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	p := newPage(c, "Edit todo")
	p.Todo = t
	p.Form = dto.TodoForm{Title: t.Title, Body: t.Body}
	c.HTML(http.StatusOK, "edit.html", p)
}

func (h *TodoPages) Edit(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	var form dto.TodoForm
	if err := c.ShouldBind(&form); err == nil {
		_, err := h.svc.Update(c.Request.Context(), id, form.Title, form.Body)
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, "/")
			return
		case errors.Is(err, service.ErrNotFound):
			renderError(c, http.StatusNotFound, msgTodoNotFound)
			return
		case !errors.Is(err, service.ErrValidation):
			h.serverError(c, "update todo", err)
			return
		}
	}
	// Invalid input: only re-render the form for a todo that exists.
	t, ok := h.load(c)
	if !ok {
		return
	}
	p := newPage(c, "Edit todo")
	p.Todo = t
	p.Form = form
	p.Error = msgTodoRequired
	c.HTML(http.StatusBadRequest, "edit.html", p)
}

func (h *TodoPages) Delete(c *gin.Context) {
	id, ok := pageID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			renderError(c, http.StatusNotFound, msgTodoNotFound)
			return
		}
		h.serverError(c, "delete todo", err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *TodoPages) DetailPage(c *gin.Context) {
	t, ok := h.load(c)
	if !ok {
		return
	}
	p := newPage(c, t.Title)
	p.Todo = t
	c.HTML(http.StatusOK, "detail.html", p)
}

// Detail is the detail form's submit; it only navigates back.
func (h *TodoPages) Detail(c *gin.Context) {
	c.Redirect(http.StatusFound, "/")
}

// load fetches the todo named by the :id param, rendering the error page
// itself when it cannot.
func (h *TodoPages) load(c *gin.Context) (dom.Todo, bool) {
	id, ok := pageID(c)
	if !ok {
		return dom.Todo{}, false
	}
	t, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			renderError(c, http.StatusNotFound, msgTodoNotFound)
			return dom.Todo{}, false
		}
		h.serverError(c, "get todo", err)
		return dom.Todo{}, false
	}
	return t, true
}

func (h *TodoPages) serverError(c *gin.Context, op string, err error) {
	h.logger.Error(op+" failed", "path", c.Request.URL.Path, "error", err)
	renderError(c, http.StatusInternalServerError, msgServerError)
}

func pageID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		renderError(c, http.StatusBadRequest, msgInvalidID)
		return 0, false
	}
	return id, true
}
