package v1

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tixera/tixera-api/internal/api/handler/v1/request"
	"github.com/tixera/tixera-api/internal/api/handler/v1/response"
	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/repository"
	"github.com/tixera/tixera-api/internal/service"
)

const maxProofSize = 5 << 20 // 5 MiB

type TransactionService interface {
	CreatePurchase(ctx context.Context, userID uint, input service.PurchaseInput) (domain.Transaction, error)
	SubmitPaymentProof(ctx context.Context, id, callerID uint, data []byte, contentType string) (domain.Transaction, error)
	Decide(ctx context.Context, id, organizerID uint, target domain.TransactionStatus) (domain.Transaction, error)
	GetForUser(ctx context.Context, id, callerID uint) (domain.Transaction, error)
	ListForUser(ctx context.Context, userID uint) ([]domain.Transaction, error)
	ListForOrganizer(ctx context.Context, organizerID uint, status domain.TransactionStatus) ([]domain.Transaction, error)
	SummarizeEvent(ctx context.Context, eventID, organizerID uint) ([]repository.EventSummary, error)
}

type TransactionHandler struct {
	svc  TransactionService
	uSvc UserService
}

func NewTransactionHandler(svc TransactionService, uSvc UserService) *TransactionHandler {
	return &TransactionHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleCreateTransaction godoc
// @Summary      Create a purchase
// @Description  Reserves seats, applies an optional promo code and the caller's points, and opens a transaction waiting for payment. Free transactions go straight to WAITING_CONFIRMATION.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        input  body      request.CreateTransactionRequest  true  "Purchase details"
// @Success      201    {object}  domain.Transaction
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Failure      404    {object}  response.Err
// @Failure      409    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Router       /transactions [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleCreateTransaction(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var req request.CreateTransactionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	txn, err := h.svc.CreatePurchase(ctx.Request.Context(), user.ID, service.PurchaseInput{
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		Quantity:     req.Quantity,
		PromoCode:    req.PromoCode,
		UsePoints:    req.UsePoints,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", req.EventID))
		case errors.Is(err, service.ErrTicketTypeInvalid),
			errors.Is(err, service.ErrTicketQuotaExceeded),
			errors.Is(err, service.ErrPromoNotFound),
			errors.Is(err, service.ErrPromoExpired),
			errors.Is(err, service.ErrPromoMinSpendNotMet):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		case errors.Is(err, service.ErrInsufficientSeats),
			errors.Is(err, service.ErrInsufficientPoints),
			errors.Is(err, service.ErrPromoExhausted):
			response.RenderErr(ctx, response.ErrConflict(err))
		default:
			err = fmt.Errorf("v1.HandleCreateTransaction -> h.svc.CreatePurchase -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, txn)
}

// HandleUploadProof godoc
// @Summary      Upload a payment proof
// @Description  Attaches a payment proof to a transaction in WAITING_PAYMENT and moves it to WAITING_CONFIRMATION.
// @Tags         transactions
// @Accept       multipart/form-data
// @Produce      json
// @Param        transactionID  path      int   true  "Transaction ID"
// @Param        paymentProof   formData  file  true  "Payment proof (jpg, png or pdf)"
// @Success      200  {object}  domain.Transaction
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions/{transactionID}/proof [post]
// @Security BearerAuth
func (h *TransactionHandler) HandleUploadProof(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, err := parseIDParam(ctx, "transactionID")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	fileHeader, err := ctx.FormFile("paymentProof")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("missing paymentProof file: %w", err)))
		return
	}
	if fileHeader.Size > maxProofSize {
		response.RenderErr(ctx, response.ErrBadRequest(errors.New("payment proof exceeds 5 MiB")))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("cannot open paymentProof file: %w", err)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		err = fmt.Errorf("v1.HandleUploadProof -> io.ReadAll -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	txn, err := h.svc.SubmitPaymentProof(ctx.Request.Context(), transactionID, user.ID, data, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			response.RenderErr(ctx, response.ErrNotFound("transaction", "ID", transactionID))
		case errors.Is(err, service.ErrNotOwner):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not own transaction %v", user.ID, transactionID)))
		case errors.Is(err, service.ErrWrongState):
			response.RenderErr(ctx, response.ErrBadRequest(errors.New("transaction is not waiting for payment")))
		default:
			err = fmt.Errorf("v1.HandleUploadProof -> h.svc.SubmitPaymentProof -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, txn)
}

// HandleUpdateStatus godoc
// @Summary      Approve, reject or cancel a transaction
// @Description  Organizers move a WAITING_CONFIRMATION transaction to DONE or REJECTED. Rejection releases seats, refunds points and returns the promo use.
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        transactionID  path      int                                     true  "Transaction ID"
// @Param        input          body      request.UpdateTransactionStatusRequest  true  "Target status"
// @Success      200  {object}  domain.Transaction
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      409  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions/{transactionID}/status [put]
// @Security BearerAuth
func (h *TransactionHandler) HandleUpdateStatus(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, err := parseIDParam(ctx, "transactionID")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	var req request.UpdateTransactionStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	txn, err := h.svc.Decide(ctx.Request.Context(), transactionID, user.ID, domain.TransactionStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			response.RenderErr(ctx, response.ErrNotFound("transaction", "ID", transactionID))
		case errors.Is(err, service.ErrNotEventOrganizer):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not organize this event", user.ID)))
		case errors.Is(err, service.ErrInvalidTargetStatus), errors.Is(err, service.ErrWrongState):
			response.RenderErr(ctx, response.ErrBadRequest(err))
		case errors.Is(err, service.ErrAlreadyFinalized):
			response.RenderErr(ctx, response.ErrConflict(service.ErrAlreadyFinalized))
		default:
			err = fmt.Errorf("v1.HandleUpdateStatus -> h.svc.Decide -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, txn)
}

// HandleListTransactions godoc
// @Summary      List the caller's transactions
// @Tags         transactions
// @Produce      json
// @Success      200  {array}   domain.Transaction
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleListTransactions(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	txns, err := h.svc.ListForUser(ctx.Request.Context(), user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleListTransactions -> h.svc.ListForUser -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, txns)
}

// HandleGetTransaction godoc
// @Summary      Get one of the caller's transactions
// @Tags         transactions
// @Produce      json
// @Param        transactionID  path      int  true  "Transaction ID"
// @Success      200  {object}  domain.Transaction
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions/{transactionID} [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleGetTransaction(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	transactionID, err := parseIDParam(ctx, "transactionID")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	txn, err := h.svc.GetForUser(ctx.Request.Context(), transactionID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTransactionNotFound):
			response.RenderErr(ctx, response.ErrNotFound("transaction", "ID", transactionID))
		case errors.Is(err, service.ErrNotOwner):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not own transaction %v", user.ID, transactionID)))
		default:
			err = fmt.Errorf("v1.HandleGetTransaction -> h.svc.GetForUser -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, txn)
}

// HandleManageTransactions godoc
// @Summary      List transactions across the organizer's events
// @Description  Organizer-only view, optionally filtered by status.
// @Tags         transactions
// @Produce      json
// @Param        status  query     string  false  "Status filter"  Enums(WAITING_PAYMENT, WAITING_CONFIRMATION, DONE, REJECTED, CANCELED, EXPIRED)
// @Success      200  {array}   domain.Transaction
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /transactions/manage [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleManageTransactions(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsOrganizer() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an organizer", user.ID)))
		return
	}

	txns, err := h.svc.ListForOrganizer(ctx.Request.Context(), user.ID, domain.TransactionStatus(ctx.Query("status")))
	if err != nil {
		err = fmt.Errorf("v1.HandleManageTransactions -> h.svc.ListForOrganizer -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, txns)
}

// HandleEventSummary godoc
// @Summary      Summarize an event's transactions
// @Description  Per-status counts and revenue for one of the organizer's events.
// @Tags         events,transactions
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200  {object}  response.EventSummaryResponse
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{eventID}/summary [get]
// @Security BearerAuth
func (h *TransactionHandler) HandleEventSummary(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	eventID, err := parseIDParam(ctx, "eventID")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	summary, err := h.svc.SummarizeEvent(ctx.Request.Context(), eventID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrNotEventOrganizer):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not organize event %v", user.ID, eventID)))
		default:
			err = fmt.Errorf("v1.HandleEventSummary -> h.svc.SummarizeEvent -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	resp := response.EventSummaryResponse{
		EventID:  eventID,
		Statuses: make([]response.EventSummaryStatus, len(summary)),
	}
	for i, row := range summary {
		resp.Statuses[i] = response.EventSummaryStatus{
			Status:  string(row.Status),
			Count:   row.Count,
			Revenue: row.Revenue,
		}
	}

	ctx.JSON(http.StatusOK, resp)
}
