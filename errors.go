package chaupal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// An ErrorResponder writes the HTTP response describing itself. It returns false when it
// doesn't apply, leaving the response untouched.
type ErrorResponder interface {
	RespondError(w http.ResponseWriter, r *http.Request) bool
}

// errorBody is what clients receive along with an error status.
type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, fields ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{ // nolint:errcheck
		Error:  http.StatusText(status),
		Fields: fields,
	})
}

// Maybe404Error responds with not found status code, if its supplied error
// is ErrNotFound or sql.ErrNoRows.
type Maybe404Error struct {
	err error
}

func Maybe404(err error) *Maybe404Error {
	return &Maybe404Error{err: err}
}

func (e *Maybe404Error) Error() string {
	return fmt.Sprintf("Maybe404: %v", e.err)
}

func (e *Maybe404Error) Is404() bool {
	return errors.Is(e.err, ErrNotFound) || errors.Is(e.err, sql.ErrNoRows)
}

func (e *Maybe404Error) Unwrap() error {
	return e.err
}

func (e *Maybe404Error) RespondError(w http.ResponseWriter, r *http.Request) bool {
	if !e.Is404() {
		return false
	}

	writeError(w, http.StatusNotFound)
	return true
}

// UnauthorizedError responds with unauthorized status code.
type UnauthorizedError struct {
	path string
}

func Unauthorized(path string) *UnauthorizedError {
	return &UnauthorizedError{path: path}
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("UnauthorizedError: %v", e.path)
}

func (e *UnauthorizedError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeError(w, http.StatusUnauthorized)
	return true
}

// BadRequestError responds with bad request status code
type BadRequestError struct {
	err error
}

func BadRequest(err error) *BadRequestError {
	return &BadRequestError{err: err}
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("BadRequestError: %v", e.err)
}

func (e *BadRequestError) Unwrap() error {
	return e.err
}

func (e *BadRequestError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeError(w, http.StatusBadRequest)
	return true
}

// UnprocessableEntityError responds with unprocessable entity status code, listing
// fields that are invalid.
type UnprocessableEntityError struct {
	fieldNames []string
	err        error
}

func UnprocessableEntity(fieldNames ...string) *UnprocessableEntityError {
	return &UnprocessableEntityError{
		fieldNames: fieldNames,
	}
}

func UnprocessableEntityWithError(err error, fieldNames ...string) *UnprocessableEntityError {
	return &UnprocessableEntityError{
		err:        err,
		fieldNames: fieldNames,
	}
}

func (e *UnprocessableEntityError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("UnprocessableEntityError: error %v, %v", e.err, e.fieldNames)
	}
	return fmt.Sprintf("UnprocessableEntityError: %v", e.fieldNames)
}

func (e *UnprocessableEntityError) Unwrap() error {
	return e.err
}

// Fields returns the names of the invalid fields.
func (e *UnprocessableEntityError) Fields() []string {
	return e.fieldNames
}

func (e *UnprocessableEntityError) RespondError(w http.ResponseWriter, r *http.Request) bool {
	writeError(w, http.StatusUnprocessableEntity, e.fieldNames...)
	return true
}

// respondError writes the response matching err, falling back on an internal server error.
// It reports whether err was a client error, which callers don't need to log loudly.
func respondError(w http.ResponseWriter, r *http.Request, err error) bool {
	var responder ErrorResponder
	if errors.As(err, &responder) && responder.RespondError(w, r) {
		return true
	}

	writeError(w, http.StatusInternalServerError)
	return false
}
