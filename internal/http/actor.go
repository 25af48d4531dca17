package httpserver

import (
	"context"
	"net/http"
	"strconv"
)

// ActorHeader carries the acting user id. Identity issuance happens in
// front of this API.
const ActorHeader = "X-User-ID"

type actorKey struct{}

// requireActor rejects requests without a positive user id header.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
		if err != nil || id <= 0 {
			apiError(w, "missing or invalid "+ActorHeader+" header", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey{}).(int64)
	return id
}
