package validators

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/kartupintar-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	return v
}

// DecodeJSONBody reads exactly one JSON object of at most 1 MiB into dest,
// rejects unknown fields and then applies dest's validate tags.
func DecodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body required")
	}
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	defer func() { _, _ = io.Copy(io.Discard, body) }()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": decodeProblem(err)})
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}
	if err := validate.Struct(dest); err != nil {
		return fieldErrors(err)
	}
	return nil
}

// decodeProblem turns decoder errors into text safe to return to clients.
func decodeProblem(err error) string {
	var (
		syntax   *json.SyntaxError
		typeErr  *json.UnmarshalTypeError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntax):
		return "malformed JSON"
	case errors.As(err, &typeErr):
		return typeErr.Field + " has the wrong type"
	case errors.As(err, &tooLarge):
		return "body too large"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "body is empty or truncated"
	}
	return err.Error()
}

func fieldErrors(err error) *pkgerrors.Error {
	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fes))
	for _, fe := range fes {
		details[fe.Field()] = describeRule(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// ruleText holds the message per validate tag. %s is replaced by the tag
// parameter.
var ruleText = map[string]string{
	"required":  "is required",
	"min":       "must be at least %s",
	"gte":       "must be at least %s",
	"max":       "must be at most %s",
	"lte":       "must be at most %s",
	"gt":        "must be greater than %s",
	"oneof":     "must be one of [%s]",
	"uuid":      "must be a valid uuid",
	"uuid4":     "must be a valid uuid",
	"latitude":  "must be a valid latitude",
	"longitude": "must be a valid longitude",
	"email":     "must be a valid email",
}

func describeRule(fe validator.FieldError) string {
	text, ok := ruleText[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	return strings.Replace(text, "%s", fe.Param(), 1)
}
