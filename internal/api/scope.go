package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fleetops/fleetops/internal/model"
)

// HeaderCompany carries the company every request is scoped to.
const HeaderCompany = "X-Company-UUID"

type ctxKey int

const (
	scopeKey ctxKey = iota
	kindKey
)

// requireScope rejects requests without a company header.
func requireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, err := model.NewScope(strings.TrimSpace(r.Header.Get(HeaderCompany)))
		if err != nil {
			writeErrors(w, http.StatusUnauthorized, "A company is required for this request.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), scopeKey, scope)))
	})
}

// entityKind resolves the {kind} path segment.
func entityKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, err := model.ParseEntityKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeErrors(w, http.StatusNotFound, "Resource not found.")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey, kind)))
	})
}

func scopeFrom(ctx context.Context) model.Scope {
	s, _ := ctx.Value(scopeKey).(model.Scope)
	return s
}

func kindFrom(ctx context.Context) model.EntityKind {
	k, _ := ctx.Value(kindKey).(model.EntityKind)
	return k
}
