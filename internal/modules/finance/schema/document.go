package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	types "github.com/yungbote/finpulse-backend/internal/domain"
)

// Document is the store form of a profile: a plain map whose numeric
// leaves are float64 at every depth.
func Document(p *types.FinanceProfile) (map[string]any, error) {
	if p == nil {
		return nil, fmt.Errorf("nil profile")
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	out, _ := Normalize(doc).(map[string]any)
	return out, nil
}

// Normalize converts arbitrary-precision numbers to float64 throughout v.
func Normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, inner := range x {
			out[k] = Normalize(inner)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = Normalize(inner)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, inner := range x {
			out[i] = Normalize(inner)
		}
		return out
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case types.Amount:
		return x.Float64()
	case *types.Amount:
		if x == nil {
			return nil
		}
		return x.Float64()
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case *big.Float:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	default:
		return v
	}
}

var (
	schemaOnce sync.Once
	schemaText string
)

// JSONSchema renders the profile shape for prompts.
func JSONSchema() string {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			DoNotReference: true,
			ExpandedStruct: true,
			Mapper: func(t reflect.Type) *jsonschema.Schema {
				if t == amountType {
					return &jsonschema.Schema{Type: "number"}
				}
				return nil
			},
		}
		s := r.Reflect(&types.FinanceProfile{})
		s.Version = ""
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			panic(err)
		}
		schemaText = string(b)
	})
	return schemaText
}
