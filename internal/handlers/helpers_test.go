package handlers

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// setTestUser plants a validated token in the context the way the JWT
// middleware would after verifying a request.
func setTestUser(c echo.Context, userID string) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": userID})
	token.Valid = true
	c.Set("user", token)
}

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %T: %v", err, err)
	}
	if httpErr.Code != want {
		t.Fatalf("unexpected status: got %d want %d", httpErr.Code, want)
	}
}
