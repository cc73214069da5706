package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// fieldWriter is satisfied by both *zerolog.Event and zerolog.Context.
type fieldWriter[T any] interface {
	Interface(string, interface{}) T
	Object(string, zerolog.LogObjectMarshaler) T
	Str(string, string) T
}

// appendFields writes slog-style alternating key/value pairs to a zerolog
// event or context. A bare error in key position is written under ErrorKey
// with its stack trace. A trailing key without a value is recorded as "!BADKEY".
func appendFields[T fieldWriter[T]](dst T, fields []any) T {
	for i := 0; i < len(fields); {
		if err, ok := fields[i].(error); ok {
			dst = appendError(dst, err)
			i++
			continue
		}
		if i+1 >= len(fields) {
			dst = dst.Interface("!BADKEY", fields[i])
			break
		}
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			dst = dst.Str(key, v.Error())
		case zerolog.LogObjectMarshaler:
			dst = dst.Object(key, v)
		default:
			dst = dst.Interface(key, v)
		}
		i += 2
	}
	return dst
}

func appendError[T fieldWriter[T]](dst T, err error) T {
	dst = dst.Str(ErrorKey, err.Error())
	if st := extractStacktrace(err); st != "" {
		dst = dst.Str(StacktraceKey, st)
	}
	return dst
}

// extractStacktrace returns the first safe detail recorded by cockroachdb/errors,
// which is the stack of the outermost WithStack/Wrap layer.
func extractStacktrace(err error) string {
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if details := errors.GetSafeDetails(e).SafeDetails; len(details) > 0 && details[0] != "" {
			return details[0]
		}
	}
	return ""
}
