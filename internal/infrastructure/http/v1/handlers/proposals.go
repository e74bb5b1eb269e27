package handlers

import (
	"github.com/gin-gonic/gin"

	"stroyfin/internal/domain/documents/proposal"
	"stroyfin/internal/infrastructure/http/v1/dto"
)

// ProposalHandler serves technical and mounting proposals.
type ProposalHandler struct {
	*BaseHandler
	service *proposal.Service
}

// NewProposalHandler creates a proposal handler.
func NewProposalHandler(base *BaseHandler, service *proposal.Service) *ProposalHandler {
	return &ProposalHandler{BaseHandler: base, service: service}
}

// List handles GET /proposals.
func (h *ProposalHandler) List(c *gin.Context) {
	result, err := h.service.List(c.Request.Context(), h.ListFilter(c, "-date"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Get handles GET /proposals/:id.
func (h *ProposalHandler) Get(c *gin.Context) {
	proposalID, ok := h.PathID(c)
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), proposalID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// Create handles POST /proposals.
func (h *ProposalHandler) Create(c *gin.Context) {
	var req dto.CreateProposalRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p, err := req.ToProposal()
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, p)
}

// NewVersion handles POST /proposals/:id/versions - supersedes the
// current version with a fresh draft.
func (h *ProposalHandler) NewVersion(c *gin.Context) {
	proposalID, ok := h.PathID(c)
	if !ok {
		return
	}

	next, err := h.service.NewVersion(c.Request.Context(), proposalID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, next)
}

// ListVersions handles GET /proposals/:id/versions - full version chain.
func (h *ProposalHandler) ListVersions(c *gin.Context) {
	proposalID, ok := h.PathID(c)
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(c.Request.Context(), proposalID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, versions)
}

// Approve handles POST /proposals/:id/approve.
func (h *ProposalHandler) Approve(c *gin.Context) {
	proposalID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Approve(c.Request.Context(), proposalID, h.Actor(c)); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "proposal approved")
}

// Decline handles POST /proposals/:id/decline.
func (h *ProposalHandler) Decline(c *gin.Context) {
	proposalID, ok := h.PathID(c)
	if !ok {
		return
	}

	if err := h.service.Decline(c.Request.Context(), proposalID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "proposal declined")
}
