package throttle

import (
	"fmt"
	"net/http"

	"noticeboard/internal/common"

	charmlog "github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

const keyPrefix = "noticeboard:ratelimit:"

// New builds a per-client-IP rate limit from a formatted rate such as
// "10-M". With a Redis client the counters are shared between instances;
// without one they live in process memory.
func New(formatted string, rdb *redis.Client, logger *charmlog.Logger) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", formatted, err)
	}

	var store limiter.Store
	if rdb != nil {
		store, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: keyPrefix})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis rate limit store: %w", err)
		}
	} else {
		store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: keyPrefix, CleanUpInterval: limiter.DefaultCleanUpInterval})
	}

	mw := stdlib.NewMiddleware(limiter.New(store, rate),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			common.RespondWithError(w, common.HTTPStatusFromError(common.ErrTooManyRequests), "Too many requests, try again later")
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("rate limit store failed", "err", err)
			common.RespondWithDomainError(w, fmt.Errorf("rate limit: %w: %v", common.ErrDependency, err))
		}),
	)
	return mw.Handler, nil
}
