package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tixera/tixera-api/internal/api/handler/v1/request"
	"github.com/tixera/tixera-api/internal/api/handler/v1/response"
	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/service"
)

type EventService interface {
	CreateEvent(ctx context.Context, event domain.Event, organizerID uint) (domain.Event, error)
	GetEvent(ctx context.Context, id uint) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	ListForOrganizer(ctx context.Context, organizerID uint) ([]domain.Event, error)
	CreatePromotion(ctx context.Context, promo domain.Promotion, organizerID uint) (domain.Promotion, error)
	ListPromotions(ctx context.Context, eventID, organizerID uint) ([]domain.Promotion, error)
}

type EventHandler struct {
	svc  EventService
	uSvc UserService
}

func NewEventHandler(svc EventService, uSvc UserService) *EventHandler {
	return &EventHandler{
		svc:  svc,
		uSvc: uSvc,
	}
}

// HandleCreateEvent godoc
// @Summary      Create a new event
// @Description  Creates an event with its ticket types. Only organizers can create events.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        input  body      request.CreateEventRequest  true  "Event details"
// @Success      201    {object}  domain.Event
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Failure      403    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Router       /events [post]
// @Security BearerAuth
func (h *EventHandler) HandleCreateEvent(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	if !user.IsOrganizer() {
		response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v is not an organizer", user.ID)))
		return
	}

	var req request.CreateEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	ticketTypes := make([]domain.TicketType, len(req.TicketTypes))
	for i, tt := range req.TicketTypes {
		ticketTypes[i] = domain.TicketType{
			Name:  tt.Name,
			Price: tt.Price,
			Quota: tt.Quota,
		}
	}

	event := domain.Event{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		TicketTypes: ticketTypes,
	}

	created, err := h.svc.CreateEvent(ctx.Request.Context(), event, user.ID)
	if err != nil {
		err = fmt.Errorf("v1.HandleCreateEvent -> h.svc.CreateEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusCreated, created)
}

// HandleListPromotions godoc
// @Summary      List an event's promotions
// @Description  Lists every promo code of an event. Only the event's organizer can see them.
// @Tags         events,promotions
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200  {array}   domain.Promotion
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{eventID}/promotions [get]
// @Security BearerAuth
func (h *EventHandler) HandleListPromotions(ctx *gin.Context) {
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

	promos, err := h.svc.ListPromotions(ctx.Request.Context(), eventID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrNotEventOrganizer):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not organize event %v", user.ID, eventID)))
		default:
			err = fmt.Errorf("v1.HandleListPromotions -> h.svc.ListPromotions -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusOK, promos)
}

// HandleListEvents godoc
// @Summary      List events
// @Description  Lists every event. Organizers calling with mine=true get only their own events.
// @Tags         events
// @Produce      json
// @Param        mine  query     bool  false  "Only events organized by the caller"
// @Success      200   {array}   domain.Event
// @Failure      401   {object}  response.Err
// @Failure      500   {object}  response.Err
// @Router       /events [get]
// @Security BearerAuth
func (h *EventHandler) HandleListEvents(ctx *gin.Context) {
	user, respErr := getUserFromContext(ctx, h.uSvc)
	if respErr != nil {
		response.RenderErr(ctx, respErr)
		return
	}

	var (
		events []domain.Event
		err    error
	)
	if ctx.Query("mine") == "true" && user.IsOrganizer() {
		events, err = h.svc.ListForOrganizer(ctx.Request.Context(), user.ID)
	} else {
		events, err = h.svc.ListEvents(ctx.Request.Context())
	}
	if err != nil {
		err = fmt.Errorf("v1.HandleListEvents -> h.svc.ListEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, events)
}

// HandleGetEvent godoc
// @Summary      Get an event
// @Tags         events
// @Produce      json
// @Param        eventID  path      int  true  "Event ID"
// @Success      200  {object}  domain.Event
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{eventID} [get]
// @Security BearerAuth
func (h *EventHandler) HandleGetEvent(ctx *gin.Context) {
	eventID, err := parseIDParam(ctx, "eventID")
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	event, err := h.svc.GetEvent(ctx.Request.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
			return
		}

		err = fmt.Errorf("v1.HandleGetEvent -> h.svc.GetEvent -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, event)
}

// HandleCreatePromotion godoc
// @Summary      Create a promotion for an event
// @Description  Adds a promo code to an event. Only the event's organizer can do this.
// @Tags         events,promotions
// @Accept       json
// @Produce      json
// @Param        eventID  path      int                             true  "Event ID"
// @Param        input    body      request.CreatePromotionRequest  true  "Promotion details"
// @Success      201  {object}  domain.Promotion
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      403  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /events/{eventID}/promotions [post]
// @Security BearerAuth
func (h *EventHandler) HandleCreatePromotion(ctx *gin.Context) {
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

	var req request.CreatePromotionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	promo := domain.Promotion{
		EventID:  eventID,
		Code:     req.Code,
		Kind:     domain.PromotionKind(req.Kind),
		Value:    req.Value,
		MinSpend: req.MinSpend,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		MaxUses:  req.MaxUses,
	}

	created, err := h.svc.CreatePromotion(ctx.Request.Context(), promo, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			response.RenderErr(ctx, response.ErrNotFound("event", "ID", eventID))
		case errors.Is(err, service.ErrNotEventOrganizer):
			response.RenderErr(ctx, response.ErrPermissionDenied(fmt.Errorf("user %v does not organize event %v", user.ID, eventID)))
		case errors.Is(err, service.ErrPromoCodeExists):
			response.RenderErr(ctx, response.ErrConflict(service.ErrPromoCodeExists))
		default:
			err = fmt.Errorf("v1.HandleCreatePromotion -> h.svc.CreatePromotion -> %w", err)
			response.RenderErr(ctx, response.ErrInternalServerError(err))
		}
		return
	}

	ctx.JSON(http.StatusCreated, created)
}
