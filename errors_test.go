package chaupal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantFields []string
		wantClient bool
	}{
		{"not found", Maybe404(fmt.Errorf("post %q: %w", "p404", ErrNotFound)), http.StatusNotFound, nil, true},
		{"wrapped not found", fmt.Errorf("loading: %w", Maybe404(ErrNotFound)), http.StatusNotFound, nil, true},
		{"maybe404 of something else", Maybe404(errors.New("boom")), http.StatusInternalServerError, nil, false},
		{"unauthorized", Unauthorized("/api/settings"), http.StatusUnauthorized, nil, true},
		{"bad request", BadRequest(errors.New("unexpected EOF")), http.StatusBadRequest, nil, true},
		{"unprocessable", UnprocessableEntity("text", "alt"), http.StatusUnprocessableEntity, []string{"text", "alt"}, true},
		{"plain error", errors.New("connection refused"), http.StatusInternalServerError, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/", nil)

			client := respondError(rec, req, tt.err)
			require.Equal(t, tt.wantClient, client)
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body errorBody
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, http.StatusText(tt.wantStatus), body.Error)
			require.Equal(t, tt.wantFields, body.Fields)
		})
	}
}

func TestUnprocessableEntityWithError(t *testing.T) {
	err := UnprocessableEntityWithError(fmt.Errorf("user %q: %w", "ghost", ErrNotFound), "user_id")
	require.True(t, errors.Is(err, ErrNotFound))
	require.Equal(t, []string{"user_id"}, err.Fields())
	require.Contains(t, err.Error(), "user_id")
}
