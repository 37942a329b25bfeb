package handler

import (
	closingapp "github.com/bpo/cashclosing/internal/application/closing"
	"github.com/gin-gonic/gin"
)

// ClosingHandler handles the cash-closing API endpoints
type ClosingHandler struct {
	BaseHandler
	closingService *closingapp.ClosingService
}

// NewClosingHandler creates a new ClosingHandler
func NewClosingHandler(closingService *closingapp.ClosingService) *ClosingHandler {
	return &ClosingHandler{
		closingService: closingService,
	}
}

// CalendarQuery is the date range of a calendar projection
type CalendarQuery struct {
	From string `form:"from" binding:"required" example:"2024-03-01"`
	To   string `form:"to" binding:"required" example:"2024-03-31"`
}

// CreateDraft godoc
// @ID           createClosingDraft
// @Summary      Create a closing draft
// @Description  Start a new DRAFT closing for the authenticated client. Amounts are sent as typed, e.g. "1.234,56".
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        request body closingapp.DraftRequest true "Closing draft"
// @Success      201 {object} APIResponse[closingapp.ClosingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ValidationErrorResponse
// @Security     BearerAuth
// @Router       /closings [post]
func (h *ClosingHandler) CreateDraft(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}

	var req closingapp.DraftRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.CreateDraft(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// UpdateDraft godoc
// @ID           updateClosingDraft
// @Summary      Update a closing draft
// @Description  Replace the values of a DRAFT or RETURNED closing. A non-zero version must match the stored one.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Param        request body closingapp.UpdateDraftRequest true "Closing values"
// @Success      200 {object} APIResponse[closingapp.ClosingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ValidationErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id} [put]
func (h *ClosingHandler) UpdateDraft(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req closingapp.UpdateDraftRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.UpdateDraft(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Submit godoc
// @ID           submitClosing
// @Summary      Submit a new closing
// @Description  Validate and submit a closing in one step. On failure nothing is stored and every failed check is listed in error.details.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        request body closingapp.SubmitClosingRequest true "Closing to submit"
// @Success      201 {object} APIResponse[closingapp.SubmissionResult]
// @Failure      400 {object} ErrorResponse
// @Failure      401 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ValidationErrorResponse
// @Security     BearerAuth
// @Router       /closings/submit [post]
func (h *ClosingHandler) Submit(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}

	var req closingapp.SubmitClosingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Draft == nil {
		h.BadRequest(c, "draft is required")
		return
	}

	result, err := h.closingService.SubmitClosing(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// SubmitExisting godoc
// @ID           submitExistingClosing
// @Summary      Submit a stored closing
// @Description  Submit a DRAFT closing, or resubmit a RETURNED one. Draft values in the body replace the stored ones first.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Param        request body closingapp.SubmitClosingRequest false "Optional replacement values and expected version"
// @Success      200 {object} APIResponse[closingapp.SubmissionResult]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ValidationErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id}/submit [post]
func (h *ClosingHandler) SubmitExisting(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req closingapp.SubmitClosingRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	req.ClosingID = &id

	result, err := h.closingService.SubmitClosing(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Transition godoc
// @ID           transitionClosing
// @Summary      Apply a workflow action
// @Description  Apply submit, resubmit, return or complete. Return needs a reason, complete needs a finalization_kind.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Param        request body closingapp.TransitionRequest true "Workflow action"
// @Success      200 {object} APIResponse[closingapp.ClosingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id}/transitions [post]
func (h *ClosingHandler) Transition(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req closingapp.TransitionRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.Transition(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// GetByID godoc
// @ID           getClosing
// @Summary      Get closing by ID
// @Description  Retrieve a closing with its recomputed totals and divergence disclosure
// @Tags         closings
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Success      200 {object} APIResponse[closingapp.ClosingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id} [get]
func (h *ClosingHandler) GetByID(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.closingService.GetClosing(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// List godoc
// @ID           listClosings
// @Summary      List closings
// @Description  List the closings of the caller's company, drafts included. Pass mine=true to keep only the caller's own closings.
// @Tags         closings
// @Produce      json
// @Param        search query string false "Search in title, responsible and notes"
// @Param        status query []string false "Status filter, repeatable or comma separated" collectionFormat(multi)
// @Param        from_date query string false "First date (YYYY-MM-DD)"
// @Param        to_date query string false "Last date (YYYY-MM-DD)"
// @Param        mine query bool false "Only closings created by the caller"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field" default(date)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} APIResponse[[]closingapp.ClosingListItem]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings [get]
func (h *ClosingHandler) List(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}

	var filter closingapp.ClosingListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.handleBindError(c, err)
		return
	}

	items, total, err := h.closingService.ListClosings(c.Request.Context(), actor, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	page, pageSize := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, items, total, page, pageSize)
}

// ListThread godoc
// @ID           listClosingThread
// @Summary      List thread messages
// @Description  Return the collaboration thread of a closing in chronological order
// @Tags         closings
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Success      200 {object} APIResponse[[]closingapp.ThreadMessageResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id}/thread [get]
func (h *ClosingHandler) ListThread(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	messages, err := h.closingService.ListThread(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, messages)
}

// AppendMessage godoc
// @ID           appendClosingThreadMessage
// @Summary      Post a thread message
// @Description  Append a message to the closing thread. Text or at least one attachment is required.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Param        request body closingapp.AppendMessageRequest true "Message"
// @Success      201 {object} APIResponse[closingapp.ThreadMessageResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id}/thread [post]
func (h *ClosingHandler) AppendMessage(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	var req closingapp.AppendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.AppendThreadMessage(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Preview godoc
// @ID           previewClosing
// @Summary      Preview closing totals
// @Description  Run validation and the balance calculation on a form without storing it. Issues never fail the call.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        request body closingapp.DraftRequest true "Closing form"
// @Success      200 {object} APIResponse[closingapp.PreviewResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/preview [post]
func (h *ClosingHandler) Preview(c *gin.Context) {
	var req closingapp.DraftRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.Preview(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Calendar godoc
// @ID           closingCalendar
// @Summary      Project the closing calendar
// @Description  Per-day worst-case severity for every day of the range, including business days with no closing
// @Tags         closings
// @Produce      json
// @Param        from query string true "First day (YYYY-MM-DD)"
// @Param        to query string true "Last day (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[closingapp.CalendarResponse]
// @Failure      400 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/calendar [get]
func (h *ClosingHandler) Calendar(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}

	var query CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.handleBindError(c, err)
		return
	}

	resp, err := h.closingService.ProjectCalendar(c.Request.Context(), actor, query.From, query.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// CreateUploadURL godoc
// @ID           createClosingAttachmentUploadURL
// @Summary      Get an attachment upload URL
// @Description  Return a presigned URL to PUT one file to object storage. Send the returned attachment back with the draft once uploaded.
// @Tags         closings
// @Accept       json
// @Produce      json
// @Param        request body closingapp.UploadURLRequest true "File metadata"
// @Success      201 {object} APIResponse[closingapp.UploadURLResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Failure      415 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/attachments/upload-url [post]
func (h *ClosingHandler) CreateUploadURL(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}

	var req closingapp.UploadURLRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.closingService.CreateAttachmentUploadURL(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetDownloadURL godoc
// @ID           getClosingAttachmentDownloadURL
// @Summary      Get an attachment download URL
// @Description  Return a presigned URL for an attachment of the closing or of one of its thread messages
// @Tags         closings
// @Produce      json
// @Param        id path string true "Closing ID" format(uuid)
// @Param        attachmentId path string true "Attachment ID" format(uuid)
// @Success      200 {object} APIResponse[closingapp.DownloadURLResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /closings/{id}/attachments/{attachmentId}/download-url [get]
func (h *ClosingHandler) GetDownloadURL(c *gin.Context) {
	actor, ok := h.getActor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	attachmentID, ok := h.parseUUIDParam(c, "attachmentId")
	if !ok {
		return
	}

	resp, err := h.closingService.GetAttachmentDownloadURL(c.Request.Context(), actor, id, attachmentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}
