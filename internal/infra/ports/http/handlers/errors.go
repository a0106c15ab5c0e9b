package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/GoldLink/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode разбирает и валидирует payload события или тело запроса
func decode[T any](data []byte) (T, error) {
	var payload T

	if len(data) > 0 {
		if err := json.Unmarshal(data, &payload); err != nil {
			return payload, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
		}
	}

	if err := validate.Struct(payload); err != nil {
		return payload, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	return payload, nil
}

func bind[T any](c echo.Context) (T, error) {
	var req T

	if err := c.Bind(&req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	if err := validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrBadRequest, err)
	}

	return req, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUserAlreadyExists), errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(httpStatus(err), map[string]string{"error": domain.Code(err)})
}
