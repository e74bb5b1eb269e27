package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/catalogs/object"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// ObjectHandler serves construction objects.
type ObjectHandler struct {
	*BaseHandler
	service *object.Service
}

// NewObjectHandler creates an object handler.
func NewObjectHandler(base *BaseHandler, service *object.Service) *ObjectHandler {
	return &ObjectHandler{BaseHandler: base, service: service}
}

// List handles GET /objects.
func (h *ObjectHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /objects/:id.
func (h *ObjectHandler) Get(c *gin.Context) {
	objID, ok := h.PathID(c)
	if !ok {
		return
	}

	obj, err := h.service.GetByID(c.Request.Context(), objID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, obj)
}

// Create handles POST /objects.
func (h *ObjectHandler) Create(c *gin.Context) {
	var req dto.CreateObjectRequest
	if !h.BindJSON(c, &req) {
		return
	}

	obj := req.ToObject()
	if err := h.service.Create(c.Request.Context(), obj); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, obj)
}

// Update handles PUT /objects/:id.
func (h *ObjectHandler) Update(c *gin.Context) {
	objID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.UpdateObjectRequest
	if !h.BindJSON(c, &req) {
		return
	}

	obj, err := h.service.GetByID(c.Request.Context(), objID)
	if err != nil {
		h.Error(c, err)
		return
	}

	obj.Name = req.Name
	obj.Address = req.Address
	obj.Cipher = req.Cipher
	obj.StartDate = req.StartDate
	obj.EndDate = req.EndDate
	obj.Version = req.Version

	if err := h.service.Update(c.Request.Context(), obj); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, obj)
}

// ChangeStatus handles POST /objects/:id/status.
func (h *ObjectHandler) ChangeStatus(c *gin.Context) {
	objID, ok := h.PathID(c)
	if !ok {
		return
	}

	var req dto.ChangeObjectStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}

	if err := h.service.ChangeStatus(c.Request.Context(), objID, object.Status(req.Status)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "status changed")
}
