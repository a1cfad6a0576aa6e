package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ngtsab/memberdir/pkg/errors"
	"github.com/ngtsab/memberdir/pkg/response"
	"github.com/ngtsab/memberdir/pkg/validator"
)

// bindAndValidate binds the JSON body into T and runs struct validation,
// writing the error response itself when either step fails.
func bindAndValidate[T any](c *gin.Context) (*T, bool) {
	var payload T
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, apperrors.NewBadRequest("Invalid request payload"))
		return nil, false
	}

	if err := validator.ValidateStruct(&payload); err != nil {
		response.Error(c, formatValidationError(err))
		return nil, false
	}

	return &payload, true
}

func formatValidationError(err error) error {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return apperrors.NewBadRequest("Invalid request payload")
	}

	parts := make([]string, 0, len(failures))
	for _, failure := range failures {
		switch failure.Tag {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", failure.Field))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email address", failure.Field))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", failure.Field, failure.Param))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", failure.Field, failure.Param))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", failure.Field, failure.Param))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", failure.Field))
		}
	}

	return apperrors.NewBadRequest(strings.Join(parts, "; "))
}
