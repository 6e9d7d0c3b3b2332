package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Labels for failure causes the browser commonly reports.
var errorLabels = map[string]string{
	"cdproto.Error":      "DevTools command error",
	"chromedp.Error":     "Browser automation error",
	"errors.errorString": "Browser error",
}

// ErrorLabel names the cause of a session failure for the error breakdown. The
// cause is the innermost error of the wrap chain.
func ErrorLabel(err error) string {
	switch {
	case err == nil:
		return "Unknown error"
	case errors.Is(err, context.DeadlineExceeded):
		return "Timeout"
	case errors.Is(err, context.Canceled):
		return "Run canceled"
	}
	for next := errors.Unwrap(err); next != nil; next = errors.Unwrap(err) {
		err = next
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}

// FriendlyErrorName turns a Go type name such as "*chromedp.Error" or
// "*net.OpError" into a readable label.
func FriendlyErrorName(typeName string) string {
	name := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if name == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	if label, ok := errorLabels[name]; ok {
		return label
	}

	pkg, typ, found := strings.Cut(name, ".")
	if !found {
		pkg, typ = "", name
	}
	pretty := humanizeTypeName(typ)
	if pretty == "" {
		pretty = typ
	}
	if pkg != "" && pkg != "main" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

// humanizeTypeName splits a CamelCase identifier into words, keeping acronyms.
func humanizeTypeName(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	flush := func() {
		if len(current) == 0 {
			return
		}
		word := string(current)
		if !isAllUpper(word) {
			word = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
		}
		words = append(words, word)
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			upperStart := unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower))
			digitStart := unicode.IsDigit(r) && !unicode.IsDigit(prev)
			if upperStart || digitStart {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()

	return strings.Join(words, " ")
}

func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}
