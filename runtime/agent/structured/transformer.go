// Package structured implements the Structured Output Transformer
// (spec.md §4.F): it converts a stream of raw text-delta chunks into typed
// object/array/enum chunks plus one schema-validated final value.
//
// Grounded on the teacher's model.Chunk/ToolCallDelta philosophy of
// incremental, typed deltas (runtime/agent/model/model.go) generalized from
// tool-call argument streaming to full structured-output streaming, and on
// santhosh-tekuri/jsonschema/v6 for final-value validation (already a
// teacher dependency, used there for design-time schema checks).
package structured

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Format selects how accumulated JSON is interpreted and routed (spec.md
// §4.F "Format detection").
type Format string

const (
	FormatObject Format = "object"
	FormatArray  Format = "array"
	FormatEnum   Format = "enum"
)

// DetectFormat derives a Format from the raw JSON Schema document (spec.md
// §4.F "Format detection"). It inspects the document directly rather than a
// compiled *jsonschema.Schema, since compilation happens once at tool/agent
// registration time while format detection only needs the schema's shape.
func DetectFormat(rawSchema map[string]any) Format {
	if rawSchema == nil {
		return FormatObject
	}
	if _, ok := rawSchema["enum"].([]any); ok {
		return FormatEnum
	}
	switch t := rawSchema["type"].(type) {
	case string:
		if t == "array" {
			return FormatArray
		}
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "array" {
				return FormatArray
			}
		}
	}
	if _, ok := rawSchema["items"]; ok {
		return FormatArray
	}
	return FormatObject
}

// ErrorStrategy selects what happens when final validation fails (spec.md
// §4.F "Error strategy").
type ErrorStrategy string

const (
	ErrorStrategyThrow    ErrorStrategy = "throw"
	ErrorStrategyWarn     ErrorStrategy = "warn"
	ErrorStrategyFallback ErrorStrategy = "fallback"
)

// ChunkKind discriminates the kind of incremental output a Transformer
// produces.
type ChunkKind string

const (
	ChunkObject ChunkKind = "object"
	ChunkArray  ChunkKind = "array"
	ChunkEnum   ChunkKind = "enum"
	ChunkResult ChunkKind = "object-result"
	ChunkError  ChunkKind = "error"
)

// Chunk is one incremental or final output of a Transformer.
type Chunk struct {
	Kind  ChunkKind
	Value any
	Err   error
}

// Transformer incrementally parses a stream of text deltas into typed
// chunks for one structured-output schema (spec.md §4.F).
type Transformer struct {
	format Format
	schema *jsonschema.Schema
	enum   []string

	errorStrategy ErrorStrategy
	fallback      any

	accumulator   strings.Builder
	lastEmitted   any
	emittedFirst  bool
	jsonBlockOpen bool
}

// Options configures a new Transformer.
type Options struct {
	// RawSchema is the JSON Schema document, used for format detection.
	RawSchema map[string]any
	// Schema is the compiled schema used for final-value validation. May be
	// nil to skip validation (e.g. during tests).
	Schema        *jsonschema.Schema
	ErrorStrategy ErrorStrategy
	Fallback      any
}

// New constructs a Transformer for schema, detecting its Format.
func New(opts Options) *Transformer {
	format := DetectFormat(opts.RawSchema)
	var enum []string
	if format == FormatEnum {
		if raw, ok := opts.RawSchema["enum"].([]any); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					enum = append(enum, s)
				}
			}
		}
	}
	strategy := opts.ErrorStrategy
	if strategy == "" {
		strategy = ErrorStrategyThrow
	}
	return &Transformer{
		format:        format,
		schema:        opts.Schema,
		enum:          enum,
		errorStrategy: strategy,
		fallback:      opts.Fallback,
	}
}

var messageTailRe = regexp.MustCompile(`<\|message\|>`)
var jsonFenceOpenRe = regexp.MustCompile("```(?:json)?\\s*\n?")

// preprocess implements spec.md §4.F step 2: extract content after a
// <|message|> tail if present, unwrap a ```json fenced block (or a still-open
// fence), and escape raw control characters that would otherwise break JSON
// string literals.
func preprocess(acc string) string {
	if loc := messageTailRe.FindStringIndex(acc); loc != nil {
		acc = acc[loc[1]:]
	}
	if idx := strings.Index(acc, "```"); idx >= 0 {
		rest := acc[idx:]
		if m := jsonFenceOpenRe.FindStringIndex(rest); m != nil {
			body := rest[m[1]:]
			if end := strings.Index(body, "```"); end >= 0 {
				acc = body[:end]
			} else {
				acc = body
			}
		}
	}
	return escapeControlCharsInStrings(acc)
}

// escapeControlCharsInStrings replaces raw \n, \r, \t that occur inside JSON
// string literals with their escape sequences, leaving structural
// whitespace outside strings untouched.
func escapeControlCharsInStrings(s string) string {
	var b strings.Builder
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				b.WriteByte(c)
				escaped = false
				continue
			case c == '\\':
				b.WriteByte(c)
				escaped = true
				continue
			case c == '"':
				inString = false
				b.WriteByte(c)
				continue
			case c == '\n':
				b.WriteString(`\n`)
				continue
			case c == '\r':
				b.WriteString(`\r`)
				continue
			case c == '\t':
				b.WriteString(`\t`)
				continue
			}
			b.WriteByte(c)
			continue
		}
		if c == '"' {
			inString = true
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Feed appends delta to the accumulator and returns zero or one chunk per
// spec.md §4.F step 4.
func (t *Transformer) Feed(delta string) []Chunk {
	t.accumulator.WriteString(delta)
	processed := preprocess(t.accumulator.String())
	value, state := ParsePartialJSON(processed)
	if state == StatePartial {
		return nil
	}

	switch t.format {
	case FormatArray:
		return t.routeArray(value, state)
	case FormatEnum:
		return t.routeEnum(value)
	default:
		return t.routeObject(value)
	}
}

func (t *Transformer) routeObject(value any) []Chunk {
	if value == nil {
		return nil
	}
	if deepEqual(value, t.lastEmitted) {
		return nil
	}
	t.lastEmitted = value
	return []Chunk{{Kind: ChunkObject, Value: value}}
}

func (t *Transformer) routeArray(value any, state ParseState) []Chunk {
	obj, ok := value.(map[string]any)
	var elements []any
	if ok {
		if e, ok := obj["elements"].([]any); ok {
			elements = e
		}
	} else if arr, ok := value.([]any); ok {
		elements = arr
	}
	if elements == nil {
		elements = []any{}
	}
	if state == StateRepaired && len(elements) > 0 {
		last := elements[len(elements)-1]
		if isTriviallyEmpty(last) {
			elements = elements[:len(elements)-1]
		}
	}
	if !t.emittedFirst {
		t.emittedFirst = true
		t.lastEmitted = []any{}
		return []Chunk{{Kind: ChunkArray, Value: []any{}}}
	}
	if deepEqual(elements, t.lastEmitted) {
		return nil
	}
	t.lastEmitted = elements
	return []Chunk{{Kind: ChunkArray, Value: elements}}
}

func (t *Transformer) routeEnum(value any) []Chunk {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}
	result, ok := obj["result"].(string)
	if !ok || result == "" {
		return nil
	}
	match := t.matchEnumPrefix(result)
	if match == "" || match == t.lastEmitted {
		return nil
	}
	t.lastEmitted = match
	return []Chunk{{Kind: ChunkEnum, Value: match}}
}

// matchEnumPrefix implements spec.md §4.F step 4 enum routing: match result
// as a prefix against the allowed set; if exactly one value matches, return
// it, else return the longest common prefix across all matches.
func (t *Transformer) matchEnumPrefix(result string) string {
	var candidates []string
	for _, v := range t.enum {
		if strings.HasPrefix(v, result) {
			candidates = append(candidates, v)
		}
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	if len(candidates) == 0 {
		return ""
	}
	return longestCommonPrefix(candidates)
}

func longestCommonPrefix(values []string) string {
	prefix := values[0]
	for _, v := range values[1:] {
		for !strings.HasPrefix(v, prefix) {
			prefix = prefix[:len(prefix)-1]
			if prefix == "" {
				return ""
			}
		}
	}
	return prefix
}

func isTriviallyEmpty(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return len(t) == 0
	case string:
		return t == ""
	case nil:
		return true
	default:
		return false
	}
}

// Finalize validates the accumulated value against the schema and returns
// the terminal chunk (spec.md §4.F step 5 / "Error strategy").
func (t *Transformer) Finalize() Chunk {
	processed := preprocess(t.accumulator.String())
	value, _ := ParsePartialJSON(processed)

	final := value
	if t.format == FormatArray {
		if obj, ok := value.(map[string]any); ok {
			if e, ok := obj["elements"]; ok {
				final = e
			}
		}
	}
	if t.format == FormatEnum {
		if obj, ok := value.(map[string]any); ok {
			if r, ok := obj["result"].(string); ok {
				final = t.matchEnumPrefix(r)
			}
		}
	}

	if t.schema != nil {
		if err := t.schema.Validate(final); err != nil {
			return t.onValidationFailure(err)
		}
	}
	return Chunk{Kind: ChunkResult, Value: final}
}

func (t *Transformer) onValidationFailure(err error) Chunk {
	switch t.errorStrategy {
	case ErrorStrategyFallback:
		return Chunk{Kind: ChunkResult, Value: t.fallback}
	case ErrorStrategyWarn:
		return Chunk{Kind: ChunkResult, Value: nil}
	default:
		return Chunk{Kind: ChunkError, Err: fmt.Errorf("structured: final value failed schema validation: %w", err)}
	}
}

func deepEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
