package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/acme/telephony-bridge/internal/domain"
	"github.com/acme/telephony-bridge/internal/repository"
	apperrors "github.com/acme/telephony-bridge/pkg/errors"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "resource not found")
	case errors.Is(err, apperrors.ErrCallState):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}

// causeStatus maps a failed origination to an HTTP status.
func causeStatus(cause domain.DisconnectCause) int {
	switch cause {
	case domain.CauseNoNumberSupplied, domain.CauseInvalidNumber:
		return http.StatusBadRequest
	case domain.CauseOutOfService, domain.CauseEmergencyOnly, domain.CausePoweredOff:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
