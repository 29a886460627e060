package auth

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// AdminHeader carries the admin password on write requests.
const AdminHeader = "X-Admin-Password"

var ErrAdminDisabled = errors.New("admin access is not configured")

// HashPassword returns the bcrypt hash to put into [Admin] password_hash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func adminHash() string {
	if h := os.Getenv("ADMIN_PASSWORD_HASH"); h != "" {
		return h
	}
	return configuration.GetString("Admin", "password_hash", "")
}

// CheckAdminPassword compares password with the configured hash. With no
// hash configured every attempt fails with ErrAdminDisabled.
func CheckAdminPassword(password string) error {
	hash := adminHash()
	if hash == "" {
		return ErrAdminDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}
	return nil
}

// RequireAdmin guards handlers that change the program library.
func RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		password := r.Header.Get(AdminHeader)
		if password == "" {
			RespondError(w, "admin password required", http.StatusUnauthorized)
			return
		}
		if err := CheckAdminPassword(password); err != nil {
			logger.AuthWarn("admin request from %s denied: %v", ClientIP(r), err)
			if errors.Is(err, ErrAdminDisabled) {
				RespondError(w, "admin access disabled", http.StatusForbidden)
				return
			}
			RespondError(w, "invalid admin password", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
