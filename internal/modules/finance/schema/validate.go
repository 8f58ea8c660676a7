package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/finpulse-backend/internal/domain"
	apperr "github.com/yungbote/finpulse-backend/internal/pkg/errors"
)

type FieldError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ValidationError lists every violating field path of a candidate profile.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Reason)
	}
	return "schema violation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperr.ErrSchemaViolation }

func (e *ValidationError) Paths() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Path)
	}
	return out
}

var (
	amountType  = reflect.TypeOf(types.Amount{})
	profileType = reflect.TypeOf(types.FinanceProfile{})

	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(jsonName)
		v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
			if a, ok := f.Interface().(types.Amount); ok {
				return a.Float64()
			}
			return nil
		}, types.Amount{})
		if err := v.RegisterValidation("isodate", isISODate); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

func isISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// Validate turns a candidate object into a FinanceProfile.
// Null, blank, {} and [] values count as absent and are dropped first, so
// the accepted profile never carries an empty placeholder. Unknown keys
// are ignored. Every type and value violation is reported, not just the first.
func Validate(candidate map[string]any) (*types.FinanceProfile, error) {
	pruned, ok := Prune(candidate)
	if !ok {
		return nil, &ValidationError{Fields: []FieldError{{Path: "user_id", Reason: "required"}}}
	}
	obj := pruned.(map[string]any)

	var violations []FieldError
	checkType(obj, profileType, "", &violations)
	if len(violations) > 0 {
		sortFields(violations)
		return nil, &ValidationError{Fields: violations}
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encode candidate: %v", apperr.ErrMalformedOutput, err)
	}
	var p types.FinanceProfile
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Path: "$", Reason: err.Error()}}}
	}

	if err := validatorInstance().Struct(&p); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("validate profile: %w", err)
		}
		for _, fe := range verrs {
			violations = append(violations, FieldError{Path: namespacePath(fe.Namespace()), Reason: reason(fe)})
		}
		sortFields(violations)
		return nil, &ValidationError{Fields: violations}
	}
	return &p, nil
}

// Prune drops absent-equivalent values recursively. The bool is false when
// nothing is left.
func Prune(v any) (any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, false
	case string:
		if strings.TrimSpace(x) == "" {
			return nil, false
		}
		return x, true
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			if pv, ok := Prune(inner); ok {
				out[k] = pv
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	case []any:
		out := make([]any, 0, len(x))
		for _, inner := range x {
			if pv, ok := Prune(inner); ok {
				out = append(out, pv)
			}
		}
		if len(out) == 0 {
			return nil, false
		}
		return out, true
	default:
		return v, true
	}
}

func checkType(v any, t reflect.Type, path string, out *[]FieldError) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == amountType {
		switch {
		case !isNumeric(v):
			*out = append(*out, FieldError{Path: path, Reason: fmt.Sprintf("expected number, got %s", describe(v))})
		case !isFinite(v):
			*out = append(*out, FieldError{Path: path, Reason: "number out of range"})
		}
		return
	}
	switch t.Kind() {
	case reflect.String:
		if _, ok := v.(string); !ok {
			*out = append(*out, FieldError{Path: path, Reason: fmt.Sprintf("expected string, got %s", describe(v))})
		}
	case reflect.Bool:
		if _, ok := v.(bool); !ok {
			*out = append(*out, FieldError{Path: path, Reason: fmt.Sprintf("expected boolean, got %s", describe(v))})
		}
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok {
			*out = append(*out, FieldError{Path: path, Reason: fmt.Sprintf("expected object, got %s", describe(v))})
			return
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := jsonName(f)
			if name == "" {
				continue
			}
			val, present := m[name]
			if !present {
				continue
			}
			checkType(val, f.Type, joinPath(path, name), out)
		}
	case reflect.Slice:
		arr, ok := v.([]any)
		if !ok {
			*out = append(*out, FieldError{Path: path, Reason: fmt.Sprintf("expected array, got %s", describe(v))})
			return
		}
		for i, el := range arr {
			checkType(el, t.Elem(), fmt.Sprintf("%s[%d]", path, i), out)
		}
	}
}

func isNumeric(v any) bool {
	switch x := v.(type) {
	case json.Number:
		_, err := decimal.NewFromString(x.String())
		return err == nil
	case string:
		_, err := decimal.NewFromString(x)
		return err == nil
	case float64, float32, int, int64, int32:
		return true
	default:
		return false
	}
}

// isFinite reports whether a numeric value survives conversion to float64,
// the type amounts are stored as.
func isFinite(v any) bool {
	var f float64
	switch x := v.(type) {
	case json.Number:
		d, _ := decimal.NewFromString(x.String())
		f, _ = d.Float64()
	case string:
		d, _ := decimal.NewFromString(x)
		f, _ = d.Float64()
	case float64:
		f = x
	case float32:
		f = float64(x)
	}
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

func describe(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case json.Number, float64, float32, int, int64, int32:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// namespacePath drops the root struct name validator puts in front.
func namespacePath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func reason(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}

func sortFields(fs []FieldError) {
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Path < fs[j].Path })
}
