package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/coordinator"
	"agent-console/internal/identity"
	"agent-console/internal/rbac"
	"agent-console/internal/submission"
	"agent-console/internal/workorder"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const defaultMaxUploadBytes = 20 << 20

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the agent's coordinator, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Consoles *coordinator.Registry

	// MaxUploadBytes caps a multipart submission or attachment upload.
	MaxUploadBytes int64
}

// Mount registers the console routes on an authenticated group.
func (h Handlers) Mount(v1 *gin.RouterGroup) {
	v1.Use(rbac.RequireAgentPhone(), rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))

	wo := v1.Group("/workorder")
	{
		wo.GET("", h.GetWorkOrder)
		wo.POST("/open", h.OpenWorkOrder)
		wo.POST("/close", h.CloseWorkOrder)
		wo.PATCH("/fields", h.UpdateFields)
		wo.POST("/validate", h.ValidateWorkOrder)
		wo.POST("/submit", h.SubmitWorkOrder)
		wo.POST("/attachments", h.AddAttachments)
		wo.DELETE("/attachments/:id", h.RemoveAttachment)
	}
	v1.DELETE("/session", h.Logout)
}

// --- Auth ---

type loginRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	Phone   string `json:"phone" binding:"required"`
	Name    string `json:"name"`
	Role    string `json:"role" binding:"required"`
}

// Login issues a JWT token pair for an agent.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id, phone, role required"})
		return
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	id, err := identity.New(req.AgentID, req.Phone, req.Name)
	if err != nil || id.NormalizedPhone() == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id and phone required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), id, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// --- Work order ---

func (h Handlers) console(c *gin.Context) (*coordinator.Coordinator, bool) {
	if h.Consoles == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "console not configured"})
		return nil, false
	}
	id, err := auth.Agent(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent identity required"})
		return nil, false
	}
	return h.Consoles.Get(c.Request.Context(), id), true
}

func (h Handlers) GetWorkOrder(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, co.State())
}

func (h Handlers) OpenWorkOrder(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	v, err := co.OpenForm(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) CloseWorkOrder(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, co.CloseForm(c.Request.Context()))
}

type fieldUpdate struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

type updateFieldsRequest struct {
	Updates []fieldUpdate `json:"updates" binding:"required,min=1,dive"`
}

// UpdateFields applies updates in request order, so a problemId followed by
// its subProblemId lands both.
func (h Handlers) UpdateFields(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	var req updateFieldsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "updates required"})
		return
	}
	var touched []string
	for _, u := range req.Updates {
		t, err := co.UpdateField(c.Request.Context(), u.Field, u.Value)
		if err != nil {
			writeError(c, err)
			return
		}
		touched = append(touched, t...)
	}
	c.JSON(http.StatusOK, gin.H{"touched": touched, "state": co.State()})
}

func (h Handlers) ValidateWorkOrder(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, co.Validate(c.Request.Context()))
}

type submitRequest struct {
	Contact *workorder.ContactSide `json:"contact"`
}

// SubmitWorkOrder accepts an empty body, a JSON body with an optional
// "contact" override, or a multipart body whose files under "attachments"
// are added to the draft and whose contactName/region/contactType fields
// form the override.
func (h Handlers) SubmitWorkOrder(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}

	var override *workorder.ContactSide
	switch {
	case isMultipart(c):
		if _, ok := h.attachFiles(c, co); !ok {
			return
		}
		override = multipartContact(c)
	case c.ContentType() == gin.MIMEJSON:
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		override = req.Contact
	}
	if override != nil && !override.ContactType.Valid() {
		writeError(c, fmt.Errorf("%w: contactType %q", workorder.ErrInvalidValue, override.ContactType))
		return
	}

	ack, err := co.Submit(c.Request.Context(), override)
	if err != nil {
		logger.FromGin(c).Warn("work order submit failed", "err", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": ack.Success, "message": ack.Message, "data": ack.Data, "state": co.State()})
}

// multipartContact reads the contact override from a parsed multipart form.
// It returns nil when no contact field was sent.
func multipartContact(c *gin.Context) *workorder.ContactSide {
	ct := workorder.ContactSide{
		ContactName: strings.TrimSpace(c.PostForm(workorder.FieldContactName)),
		Region:      strings.TrimSpace(c.PostForm(workorder.FieldRegion)),
		ContactType: workorder.ContactType(strings.TrimSpace(c.PostForm(workorder.FieldContactType))),
	}
	if ct.IsZero() {
		return nil
	}
	return &ct
}

func (h Handlers) AddAttachments(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	if !isMultipart(c) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "multipart body required"})
		return
	}
	added, ok := h.attachFiles(c, co)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachments": added})
}

func (h Handlers) RemoveAttachment(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	if !co.RemoveAttachment(c.Request.Context(), c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Logout clears the agent's console, persisted snapshot included.
func (h Handlers) Logout(c *gin.Context) {
	co, ok := h.console(c)
	if !ok {
		return
	}
	co.Logout(c.Request.Context())
	h.Consoles.Remove(co.Identity().AgentID)
	c.Status(http.StatusNoContent)
}

func (h Handlers) attachFiles(c *gin.Context, co *coordinator.Coordinator) ([]workorder.Attachment, bool) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
		return nil, false
	}

	var added []workorder.Attachment
	for _, fh := range form.File[submission.FieldAttachments] {
		f, err := fh.Open()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return nil, false
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable attachment"})
			return nil, false
		}
		a, err := co.AddAttachment(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), data)
		if err != nil {
			writeError(c, err)
			return nil, false
		}
		added = append(added, a)
	}
	return added, true
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEMultipartPOSTForm
}

// writeError maps domain errors to HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "errors": verr.Errors})
	case errors.Is(err, workorder.ErrFormClosed),
		errors.Is(err, coordinator.ErrNoSession),
		errors.Is(err, coordinator.ErrSubmitInProgress),
		errors.Is(err, coordinator.ErrAlreadySubmitted):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, workorder.ErrUnknownField), errors.Is(err, workorder.ErrInvalidValue):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		// Everything else comes back from the backend gateway.
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": submission.ErrorMessage(err)})
	}
}
