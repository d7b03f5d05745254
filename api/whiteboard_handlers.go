package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/history"
)

// WhiteboardHandler serves the state-management API on top of a history
// manager. Every mutation it performs is broadcast by the manager.
type WhiteboardHandler struct {
	history *history.Manager
}

func NewWhiteboardHandler(h *history.Manager) *WhiteboardHandler {
	return &WhiteboardHandler{history: h}
}

// HistoryDepth is the response of GET /history.
type HistoryDepth struct {
	Undo    int   `json:"undo"`
	Redo    int   `json:"redo"`
	Version int64 `json:"version"`
}

func (h *WhiteboardHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/save", h.Save)
	rg.GET("/load", h.Load)
	rg.POST("/undo", h.Undo)
	rg.POST("/redo", h.Redo)
	rg.GET("/currentState", h.CurrentState)
	rg.GET("/history", h.History)

	rg.POST("/operations", h.AddOperation)
	rg.PUT("/operations/:id", h.UpdateOperation)
	rg.DELETE("/operations/:id", h.DeleteOperation)
}

func (h *WhiteboardHandler) Save(c *gin.Context) {
	var state domain.WhiteboardState
	if err := json.NewDecoder(c.Request.Body).Decode(&state); err != nil {
		HandleRequestError(c, InvalidInputError("Invalid whiteboard state: "+err.Error()))
		return
	}
	if err := state.Validate(); err != nil {
		HandleRequestError(c, InvalidInputError(err.Error()))
		return
	}
	state.Normalize()

	h.history.Commit(&state)
	c.String(http.StatusOK, "Whiteboard current state successfully saved.")
}

func (h *WhiteboardHandler) Load(c *gin.Context) {
	current := h.history.Current()
	if current == nil {
		HandleRequestError(c, NotFoundError("No state found."))
		return
	}
	c.JSON(http.StatusOK, current)
}

func (h *WhiteboardHandler) Undo(c *gin.Context) {
	h.history.Undo()
	c.String(http.StatusOK, "Undo successful.")
}

func (h *WhiteboardHandler) Redo(c *gin.Context) {
	h.history.Redo()
	c.String(http.StatusOK, "Redo successful.")
}

// CurrentState returns the current state, or JSON null if none was saved.
func (h *WhiteboardHandler) CurrentState(c *gin.Context) {
	c.JSON(http.StatusOK, h.history.Current())
}

func (h *WhiteboardHandler) History(c *gin.Context) {
	undo, redo := h.history.Depth()
	depth := HistoryDepth{Undo: undo, Redo: redo}
	if current := h.history.Current(); current != nil {
		depth.Version = current.Version
	}
	c.JSON(http.StatusOK, depth)
}

func (h *WhiteboardHandler) AddOperation(c *gin.Context) {
	op, ok := bindOperation(c)
	if !ok {
		return
	}

	var stored domain.DrawingOperation
	if _, added := h.history.Apply(func(s *domain.WhiteboardState) bool {
		var ok bool
		stored, ok = s.Add(op)
		return ok
	}); !added {
		HandleRequestError(c, ConflictError("Drawing operation "+op.ID+" already exists."))
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *WhiteboardHandler) UpdateOperation(c *gin.Context) {
	op, ok := bindOperation(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if op.ID != "" && op.ID != id {
		HandleRequestError(c, InvalidInputError("Drawing operation id cannot be changed."))
		return
	}
	op.ID = id

	if _, changed := h.history.Apply(func(s *domain.WhiteboardState) bool {
		return s.Update(op)
	}); !changed {
		HandleRequestError(c, NotFoundError("Drawing operation not found."))
		return
	}
	c.JSON(http.StatusOK, op)
}

func (h *WhiteboardHandler) DeleteOperation(c *gin.Context) {
	id := c.Param("id")
	if _, changed := h.history.Apply(func(s *domain.WhiteboardState) bool {
		return s.Remove(id)
	}); !changed {
		HandleRequestError(c, NotFoundError("Drawing operation not found."))
		return
	}
	c.Status(http.StatusNoContent)
}

func bindOperation(c *gin.Context) (domain.DrawingOperation, bool) {
	var op domain.DrawingOperation
	if err := json.NewDecoder(c.Request.Body).Decode(&op); err != nil {
		HandleRequestError(c, InvalidInputError("Invalid drawing operation: "+err.Error()))
		return domain.DrawingOperation{}, false
	}
	return op, true
}
