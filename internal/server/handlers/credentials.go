package handlers

import (
	"net/http"

	"github.com/ecoguard/ecoguard/internal/core/validate"
	"github.com/ecoguard/ecoguard/internal/server/middleware"
)

// CredentialReport describes an email and password pair. The password itself
// is never echoed.
type CredentialReport struct {
	Email    string                  `json:"email"`
	Password validate.PasswordResult `json:"password"`
}

// CredentialCheckHandler handles POST /api/credentials/check.
func CredentialCheckHandler(w http.ResponseWriter, r *http.Request) {
	data, err := decodeJSONObject(w, r)
	if err != nil {
		respondInvalidJSON(w, r, err)
		return
	}

	if !middleware.ValidateRequestData(w, r, data, validate.CredentialRules()) {
		return
	}

	email, _ := data["email"].(string)
	password, _ := data["password"].(string)

	writeJSON(w, http.StatusOK, CredentialReport{
		Email:    validate.SanitizeInput(email),
		Password: validate.IsStrongPassword(password),
	})
}
