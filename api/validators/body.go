package validators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
	"github.com/angelmondragon/crushlink-backend/pkg/identity"
)

const maxBodyBytes = 16 << 10

// ReadBody buffers the request body up to the decode limit and rewinds it
// for the next reader. Larger bodies are rejected as validation errors.
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	if len(body) > maxBodyBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// IdentityChecker reports whether a normalized identity token is well formed.
type IdentityChecker interface {
	ValidateIdentity(token string) bool
}

var (
	mu       sync.RWMutex
	validate = newValidator(identityFunc(identity.ValidateIdentity))
)

type identityFunc func(string) bool

func (f identityFunc) ValidateIdentity(token string) bool { return f(token) }

// UseIdentityChecker swaps the checker behind the usn tag. Call it once at
// startup, before serving requests.
func UseIdentityChecker(ids IdentityChecker) {
	if ids == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	validate = newValidator(ids)
}

func newValidator(ids IdentityChecker) *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("usn", func(fl validator.FieldLevel) bool {
		return ids.ValidateIdentity(identity.Normalize(fl.Field().String()))
	})
	_ = v.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		return identity.ValidateContact(identity.NormalizeContact(fl.Field().String()))
	})
	return v
}

// DecodeJSON decodes the request body into dest without running struct
// validation. Unknown fields are rejected.
func DecodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").WithDetails(map[string]any{"error": err.Error()})
	}
	return nil
}

// DecodeJSONBody decodes and validates dest against its validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if err := DecodeJSON(r, dest); err != nil {
		return err
	}
	mu.RLock()
	v := validate
	mu.RUnlock()
	if err := v.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "usn":
		return "must be a valid USN"
	case "contact":
		return "must be a valid email"
	}
	return "is invalid"
}
