package utils

import (
	"context"
	"log"
	"runtime"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

func ToPointer[T any](value T) *T {
	return &value
}

func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[SafeGo] recovered from panic: %v\n%s", r, debug.Stack())
			}
		}()
		fn()
	}()
}

func ShouldStopCtx(ctx context.Context, log *logrus.Logger) (bool, error) {
	select {
	case <-ctx.Done():
		log.WithFields(logrus.Fields{
			"caller": callerName(2),
			"error":  ctx.Err(),
		}).Debug("Context done signal received")
		return true, ctx.Err()
	default:
		return false, nil
	}
}

// callerName returns the short function name skip frames above it.
func callerName(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}
	parts := strings.Split(fn.Name(), "/")
	return parts[len(parts)-1]
}

// TruncateText shortens text to at most max bytes, marking the cut with
// "...". The cut never splits a UTF-8 sequence.
func TruncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	if max < 0 {
		max = 0
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// SanitizeText makes text storable in a postgres text column: NUL bytes are
// removed and invalid UTF-8 is replaced with U+FFFD.
func SanitizeText(text string) string {
	text = strings.ReplaceAll(text, "\x00", "")
	return strings.ToValidUTF8(text, "\uFFFD")
}
