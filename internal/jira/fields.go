package jira

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FieldKind tags the variant held by a FieldValue.
type FieldKind int

const (
	FieldNull FieldKind = iota
	FieldString
	FieldNumber
	FieldBool
	FieldDocument
	FieldReference
	FieldList
)

// RefBy names the attribute a reference value is matched on.
type RefBy string

const (
	RefByID        RefBy = "id"
	RefByKey       RefBy = "key"
	RefByName      RefBy = "name"
	RefByAccountID RefBy = "accountId"
	RefByValue     RefBy = "value"
)

// FieldValue is a typed value for an arbitrary issue field. Build one with
// the constructors; the zero value is an explicit null.
type FieldValue struct {
	kind  FieldKind
	str   string
	num   float64
	b     bool
	doc   Document
	refBy RefBy
	list  []FieldValue
}

func NullValue() FieldValue { return FieldValue{} }
func StringValue(s string) FieldValue { return FieldValue{kind: FieldString, str: s} }
func NumberValue(n float64) FieldValue { return FieldValue{kind: FieldNumber, num: n} }
func BoolValue(b bool) FieldValue { return FieldValue{kind: FieldBool, b: b} }
func DocumentValue(d Document) FieldValue { return FieldValue{kind: FieldDocument, doc: d} }
func ListValue(vs ...FieldValue) FieldValue { return FieldValue{kind: FieldList, list: vs} }
func Reference(by RefBy, v string) FieldValue { return FieldValue{kind: FieldReference, refBy: by, str: v} }

// Kind returns the variant tag.
func (v FieldValue) Kind() FieldKind { return v.kind }

// Validate rejects values the server could never accept.
func (v FieldValue) Validate() error {
	switch v.kind {
	case FieldNull, FieldString, FieldBool:
		return nil
	case FieldNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return fmt.Errorf("number must be finite")
		}
	case FieldDocument:
		return v.doc.Validate()
	case FieldReference:
		switch v.refBy {
		case RefByID, RefByKey, RefByName, RefByAccountID, RefByValue:
		default:
			return fmt.Errorf("unknown reference attribute %q", v.refBy)
		}
		if strings.TrimSpace(v.str) == "" {
			return fmt.Errorf("reference %s must not be empty", v.refBy)
		}
	case FieldList:
		for i, item := range v.list {
			if item.kind == FieldList {
				return fmt.Errorf("item %d: nested lists are not supported", i)
			}
			if err := item.Validate(); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	default:
		return fmt.Errorf("unknown field kind %d", v.kind)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case FieldNull:
		return []byte("null"), nil
	case FieldString:
		return json.Marshal(v.str)
	case FieldNumber:
		return json.Marshal(v.num)
	case FieldBool:
		return json.Marshal(v.b)
	case FieldDocument:
		return v.doc.MarshalJSON()
	case FieldReference:
		return json.Marshal(map[string]string{string(v.refBy): v.str})
	case FieldList:
		items := v.list
		if items == nil {
			items = []FieldValue{}
		}
		return json.Marshal(items)
	}
	return nil, fmt.Errorf("jira: unknown field kind %d", v.kind)
}

// ParseFieldValue converts a decoded JSON value into a FieldValue. Objects
// with "type": "doc" are documents; objects with a single id, key, name,
// accountId or value attribute are references.
func ParseFieldValue(raw any) (FieldValue, error) {
	switch x := raw.(type) {
	case nil:
		return NullValue(), nil
	case string:
		return StringValue(x), nil
	case float64:
		return NumberValue(x), nil
	case int:
		return NumberValue(float64(x)), nil
	case bool:
		return BoolValue(x), nil
	case []any:
		items := make([]FieldValue, 0, len(x))
		for i, item := range x {
			fv, err := ParseFieldValue(item)
			if err != nil {
				return FieldValue{}, fmt.Errorf("item %d: %w", i, err)
			}
			items = append(items, fv)
		}
		return ListValue(items...), nil
	case map[string]any:
		if x["type"] == "doc" {
			data, err := json.Marshal(x)
			if err != nil {
				return FieldValue{}, err
			}
			var doc Document
			if err := doc.UnmarshalJSON(data); err != nil {
				return FieldValue{}, err
			}
			return DocumentValue(doc), nil
		}
		if len(x) == 1 {
			for _, by := range []RefBy{RefByID, RefByKey, RefByName, RefByAccountID, RefByValue} {
				if s, ok := x[string(by)].(string); ok {
					return Reference(by, s), nil
				}
			}
		}
		return FieldValue{}, fmt.Errorf("unsupported object value with keys %v", sortedKeys(x))
	}
	return FieldValue{}, fmt.Errorf("unsupported value of type %T", raw)
}

// ParseFields converts a decoded JSON object into typed field values.
func ParseFields(raw map[string]any) (map[string]FieldValue, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]FieldValue, len(raw))
	for name, value := range raw {
		fv, err := ParseFieldValue(value)
		if err != nil {
			return nil, validationError("", "", map[string]string{name: err.Error()})
		}
		out[name] = fv
	}
	return out, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
