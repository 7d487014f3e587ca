package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid id", fmt.Errorf("%w: %q", repositories.ErrInvalidID, "x"), http.StatusNotFound},
		{"post", repositories.ErrPostNotFound, http.StatusNotFound},
		{"comment", repositories.ErrCommentNotFound, http.StatusNotFound},
		{"reply", repositories.ErrReplyNotFound, http.StatusNotFound},
		{"user", fmt.Errorf("load author: %w", repositories.ErrUserNotFound), http.StatusNotFound},
		{"not author", repositories.ErrNotAuthor, http.StatusForbidden},
		{"conflict", repositories.ErrVersionConflict, http.StatusConflict},
		{"http error passes through", echo.NewHTTPError(http.StatusTeapot, "tea"), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var httpErr *echo.HTTPError
			require.ErrorAs(t, storeError(tt.err), &httpErr)
			assert.Equal(t, tt.status, httpErr.Code)
		})
	}

	assert.NoError(t, storeError(nil))
}
