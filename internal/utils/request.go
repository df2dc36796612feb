package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/gostorefront/storefront-api/internal/errors"
	"github.com/gostorefront/storefront-api/internal/utils/response"
	"github.com/google/uuid"
)

func DecodeJSONBody(r *http.Request, dest any) error {

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", err)
	}

	defer r.Body.Close()

	if len(body) == 0 {
		return errors.New("request body cannot be empty")
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}

	return nil
}

// ParseAndValidate decodes the body into dest and runs struct validation,
// writing the error response itself. Returns false when the request was bad.
// A quantity like 2.5 fails here at the decode step; it is never truncated.
func ParseAndValidate(r *http.Request, w http.ResponseWriter, dest any, validate *validator.Validate) bool {

	if err := DecodeJSONBody(r, dest); err != nil {
		response.Error(w, apperrors.ValidationError("Invalid request body").WithDetail(err.Error()).WithError(err))
		return false
	}

	if err := validate.Struct(dest); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			response.ValidationError(w, validationErrs)
		} else {
			response.Error(w, apperrors.ValidationError("Invalid input data").WithError(err))
		}

		return false
	}

	return true

}

// ParseID reads a UUID path value. Unparseable ids are reported as not
// found with the caller's resource wording, matching the behavior of an id
// that simply does not resolve.
func ParseID(r *http.Request, name, notFoundMsg string) (uuid.UUID, error) {

	raw := r.PathValue(name)

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.NotFoundError(notFoundMsg).WithError(err)
	}

	return id, nil
}
