package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const maxBodyBytes = 1 << 20

var (
	totpCodeRe    = regexp.MustCompile(`^\d{6}$`)
	loginCodeRe   = regexp.MustCompile(`^(\d{6}|\d{8})$`)
	phoneRe       = regexp.MustCompile(`^[0-9+()-]*$`)
	dateOfBirthRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

var avatarContentTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type validationErrors []fieldError

func (v validationErrors) Error() string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = f.Field + ": " + f.Message
	}
	return common.ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (v validationErrors) Unwrap() error { return common.ErrValidation }

type validator struct {
	errs validationErrors
}

func (v *validator) check(ok bool, field, msg string) {
	if !ok {
		v.errs = append(v.errs, fieldError{Field: field, Message: msg})
	}
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == strings.TrimSpace(s) && strings.Contains(addr.Address, ".")
}

func absoluteURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// decodeBody reads a JSON request body of at most maxBodyBytes into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", common.ErrValidation)
		}
		return fmt.Errorf("%w: malformed JSON body", common.ErrValidation)
	}
	return nil
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r *registerRequest) validate() error {
	var v validator
	v.check(validEmail(r.Email), "email", "must be a valid email address")
	v.check(services.StrongPassword(r.Password), "password", services.PasswordPolicy)
	v.check(r.Name == "" || utf8.RuneCountInString(strings.TrimSpace(r.Name)) >= 2, "name", "must be at least 2 characters")
	return v.err()
}

type loginRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	TwoFactorCode string `json:"twoFactorCode"`
}

func (r *loginRequest) validate() error {
	var v validator
	v.check(validEmail(r.Email), "email", "must be a valid email address")
	v.check(r.Password != "", "password", "is required")
	v.check(r.TwoFactorCode == "" || loginCodeRe.MatchString(r.TwoFactorCode), "twoFactorCode", "must be a 6-digit code or an 8-digit backup code")
	return v.err()
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r *refreshRequest) validate() error {
	var v validator
	v.check(r.RefreshToken != "", "refreshToken", "is required")
	return v.err()
}

type enableTwoFactorRequest struct {
	Token string `json:"token"`
}

func (r *enableTwoFactorRequest) validate() error {
	var v validator
	v.check(totpCodeRe.MatchString(r.Token), "token", "must be a 6-digit code")
	return v.err()
}

type passwordRequest struct {
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordRequest) validate() error {
	var v validator
	v.check(r.CurrentPassword != "", "currentPassword", "is required")
	v.check(services.StrongPassword(r.NewPassword), "newPassword", services.PasswordPolicy)
	return v.err()
}

func validateProfileUpdate(u *services.ProfileUpdate) error {
	var v validator
	if u.Name != nil {
		v.check(utf8.RuneCountInString(strings.TrimSpace(*u.Name)) >= 2, "name", "must be at least 2 characters")
	}
	if u.PhoneNumber != nil {
		v.check(phoneRe.MatchString(*u.PhoneNumber), "phoneNumber", "may contain only digits, +, -, ( and )")
	}
	if u.Address != nil {
		v.check(utf8.RuneCountInString(*u.Address) <= 200, "address", "must be at most 200 characters")
	}
	if u.DateOfBirth != nil && *u.DateOfBirth != "" {
		ok := dateOfBirthRe.MatchString(*u.DateOfBirth)
		if ok {
			_, err := time.Parse(time.DateOnly, *u.DateOfBirth)
			ok = err == nil
		}
		v.check(ok, "dateOfBirth", "must be a date in YYYY-MM-DD form")
	}
	if u.Bio != nil {
		v.check(utf8.RuneCountInString(*u.Bio) <= 500, "bio", "must be at most 500 characters")
	}
	if u.Website != nil && *u.Website != "" {
		v.check(absoluteURL(*u.Website), "website", "must be an absolute URL")
	}
	if u.Language != nil && *u.Language != "" {
		v.check(utf8.RuneCountInString(*u.Language) == 2, "language", "must be a 2-letter code")
	}
	return v.err()
}

type avatarRequest struct {
	ContentType string `json:"contentType"`
}

func (r *avatarRequest) validate() error {
	var v validator
	v.check(slices.Contains(avatarContentTypes, r.ContentType), "contentType", "must be one of "+strings.Join(avatarContentTypes, ", "))
	return v.err()
}

type createKeyRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (r *createKeyRequest) validate() error {
	var v validator
	v.check(utf8.RuneCountInString(strings.TrimSpace(r.Name)) >= 3, "name", "must be at least 3 characters")
	v.check(r.Scopes == nil || len(r.Scopes) > 0, "scopes", "must not be empty when given")
	return v.err()
}
