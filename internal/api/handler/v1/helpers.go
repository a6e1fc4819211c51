package v1

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tixera/tixera-api/internal/api/handler/v1/response"
	"github.com/tixera/tixera-api/internal/api/middleware"
	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/service"
)

type UserService interface {
	GetUser(ctx context.Context, id uint) (domain.User, error)
	GetPointHistory(ctx context.Context, userID uint) ([]domain.PointTransaction, error)
}

func getUserFromContext(ctx *gin.Context, uSvc UserService) (domain.User, *response.Err) {
	userID, ok := ctx.Get(middleware.ContextKeyUserID)
	if !ok {
		return domain.User{}, response.ErrUnauthorized("missing authentication")
	}

	id, ok := userID.(uint)
	if !ok {
		return domain.User{}, response.ErrUnauthorized("invalid authentication")
	}

	user, err := uSvc.GetUser(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return domain.User{}, response.ErrUnauthorized("user no longer exists")
		}

		return domain.User{}, response.ErrInternalServerError(fmt.Errorf("getUserFromContext -> uSvc.GetUser -> %w", err))
	}

	return user, nil
}

func parseIDParam(ctx *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %v", name)
	}

	return uint(id), nil
}
