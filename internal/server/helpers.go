// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"postbook/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper.  Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
// The error message is derived from the parameter name (e.g. "id" -> "Invalid ID",
// "postId" -> "Invalid post ID").
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID", "accountId" -> "account ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		prefix := param[:len(param)-2]
		words := splitCamel(prefix)
		return strings.ToLower(strings.Join(words, " ")) + " ID"
	}
	return param
}

// splitCamel splits a camelCase string into words.
func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	words = append(words, s[start:])
	return words
}

// parseBody decodes the JSON request body into out. On failure it writes a
// 400 response naming the offending field when the decoder reports one.
func parseBody(c *fiber.Ctx, out any) error {
	err := c.BodyParser(out)
	if err == nil {
		return nil
	}

	msg := "Invalid request body"
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		msg = typeErr.Field + " must be a " + jsonTypeName(typeErr.Type.Kind().String())
	}
	_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError(msg))
	return errResponseWritten
}

func jsonTypeName(kind string) string {
	switch kind {
	case "slice", "array":
		return "list"
	}
	return kind
}

// statusFor maps an error to the HTTP status for its code. Codes without a
// fixed status use fallback.
func statusFor(err error, fallback int) int {
	switch models.ErrorCode(err) {
	case models.CodeValidation:
		return fiber.StatusBadRequest
	case models.CodeDuplicateContact:
		return fiber.StatusConflict
	case models.CodeAccountNotFound, models.CodePostNotFound:
		return fiber.StatusNotFound
	}
	return fallback
}

// respondError writes err with the status statusFor chooses.
func respondError(c *fiber.Ctx, err error, fallback int) error {
	return models.RespondWithError(c, statusFor(err, fallback), err)
}

// errorHandler is the Fiber ErrorHandler. Framework errors (unknown route,
// bad method, body too large) keep their status; anything else is a 500
// without details.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := models.CodeInternal
		switch {
		case fe.Code == fiber.StatusNotFound:
			code = "NOT_FOUND"
		case fe.Code < fiber.StatusInternalServerError:
			code = models.CodeValidation
		}
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message, Code: code})
	}
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}
