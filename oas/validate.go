package oas

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Issue is one validation finding. Fatal issues reject the call; the rest
// (format mismatches, missing required values) are advisory since the
// upstream API is the final judge.
type Issue struct {
	Path    string
	Message string
	Fatal   bool
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return i.Path + ": " + i.Message
}

// Validate checks v against the shape and returns every finding
func (s *Shape) Validate(v interface{}) []Issue {
	var issues []Issue
	s.validate("", v, &issues)
	return issues
}

// FatalIssues filters the fatal findings
func FatalIssues(issues []Issue) []Issue {
	var out []Issue
	for _, i := range issues {
		if i.Fatal {
			out = append(out, i)
		}
	}
	return out
}

func (s *Shape) validate(path string, v interface{}, issues *[]Issue) {
	if s == nil {
		return
	}
	fail := func(format string, args ...interface{}) {
		*issues = append(*issues, Issue{Path: path, Message: fmt.Sprintf(format, args...), Fatal: true})
	}
	warn := func(format string, args ...interface{}) {
		*issues = append(*issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	switch s.Kind {
	case KindAny:
		return
	case KindNull:
		if v != nil {
			fail("expected null")
		}
		return
	case KindUnion:
		for _, variant := range s.Variants {
			var sub []Issue
			variant.validate(path, v, &sub)
			if len(FatalIssues(sub)) == 0 {
				*issues = append(*issues, sub...)
				return
			}
		}
		fail("value does not match any allowed type")
		return
	}

	if v == nil {
		fail("expected %s, got null", s.Kind)
		return
	}

	switch s.Kind {
	case KindString:
		str, ok := v.(string)
		if !ok {
			fail("expected string, got %T", v)
			return
		}
		if s.MinLength != nil && utf8.RuneCountInString(str) < *s.MinLength {
			fail("must be at least %d characters", *s.MinLength)
		}
		if s.MaxLength != nil && utf8.RuneCountInString(str) > *s.MaxLength {
			fail("must be at most %d characters", *s.MaxLength)
		}
		if s.Pattern != "" {
			if re, err := regexp.Compile(s.Pattern); err == nil && !re.MatchString(str) {
				fail("must match pattern %s", s.Pattern)
			}
		}
		if msg := checkFormat(s.Format, str); msg != "" {
			warn("%s", msg)
		}
	case KindInteger, KindNumber:
		n, ok := toFloat(v)
		if !ok {
			fail("expected %s, got %T", s.Kind, v)
			return
		}
		if s.Kind == KindInteger && n != math.Trunc(n) {
			fail("expected integer, got %v", n)
		}
		if s.Minimum != nil && n < *s.Minimum {
			fail("must be >= %v", *s.Minimum)
		}
		if s.Maximum != nil && n > *s.Maximum {
			fail("must be <= %v", *s.Maximum)
		}
	case KindBoolean:
		if _, ok := v.(bool); !ok {
			fail("expected boolean, got %T", v)
		}
	case KindArray:
		items, ok := v.([]interface{})
		if !ok {
			fail("expected array, got %T", v)
			return
		}
		if s.MinItems != nil && len(items) < *s.MinItems {
			fail("must have at least %d items", *s.MinItems)
		}
		if s.MaxItems != nil && len(items) > *s.MaxItems {
			fail("must have at most %d items", *s.MaxItems)
		}
		for i, item := range items {
			s.Items.validate(joinPath(path, strconv.Itoa(i)), item, issues)
		}
	case KindObject:
		obj, ok := v.(map[string]interface{})
		if !ok {
			fail("expected object, got %T", v)
			return
		}
		declared := make(map[string]bool, len(s.Properties))
		for _, p := range s.Properties {
			declared[p.Name] = true
			val, present := obj[p.Name]
			if !present || val == nil {
				if p.Required {
					*issues = append(*issues, Issue{Path: joinPath(path, p.Name), Message: "required value is missing"})
				}
				continue
			}
			p.Shape.validate(joinPath(path, p.Name), val, issues)
		}
		if s.Additional != nil {
			for k, val := range obj {
				if !declared[k] {
					s.Additional.validate(joinPath(path, k), val, issues)
				}
			}
		}
	}

	if len(s.Enum) > 0 {
		if _, isObj := v.(map[string]interface{}); isObj {
			return
		}
		got := enumString(v)
		for _, e := range s.Enum {
			if enumString(e) == got {
				return
			}
		}
		fail("must be one of %v", s.Enum)
	}
}

// checkFormat returns a message when str does not look like the format.
// Unknown formats always pass.
func checkFormat(format, str string) string {
	switch format {
	case "date-time":
		if _, err := time.Parse(time.RFC3339, str); err != nil {
			return "is not a valid RFC 3339 date-time"
		}
	case "email":
		if _, err := mail.ParseAddress(str); err != nil {
			return "is not a valid email address"
		}
	case "uuid":
		if _, err := uuid.Parse(str); err != nil {
			return "is not a valid UUID"
		}
	}
	return ""
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// enumString compares enum members by text so 1, 1.0 and "1" match
func enumString(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
