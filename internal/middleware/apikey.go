package middleware

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/collabcore/realtime-platform/pkg/logger"
)

// APIKeyHeader is the header carrying the client's API key.
const APIKeyHeader = "X-API-Key"

// KeyValidator checks an API key against the external key registry.
type KeyValidator func(key string) bool

// APIKey validates the X-API-Key header when present and tracks usage
// per key. Requests without the header pass through untouched; an
// invalid key yields 401. A panicking validator surfaces as 500, never
// as a crashed connection.
func APIKey(validate KeyValidator, log *logger.Logger) func(http.Handler) http.Handler {
	var (
		mu    sync.Mutex
		usage = make(map[string]int64)
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			valid, err := safeValidate(validate, key)
			if err != nil {
				log.Error("API key validation panicked", zap.Any("panic", err))
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
				return
			}
			if !valid {
				http.Error(w, `{"error":"invalid API key"}`, http.StatusUnauthorized)
				return
			}

			mu.Lock()
			usage[key]++
			mu.Unlock()

			next.ServeHTTP(w, r)
		})
	}
}

func safeValidate(validate KeyValidator, key string) (valid bool, panicked any) {
	defer func() {
		if r := recover(); r != nil {
			panicked = r
		}
	}()
	return validate(key), nil
}
