// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// Subject is the authenticated caller.
type Subject struct {
	UserID string
	Email  string
}

// ContextWithSubject returns a context carrying s.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// SubjectFromContext returns the authenticated caller, if any.
func SubjectFromContext(ctx context.Context) (*Subject, bool) {
	s, ok := ctx.Value(subjectKey).(*Subject)
	return s, ok && s != nil
}

// Authenticate resolves the bearer token on r into a Subject.
func (m *JWTManager) Authenticate(r *http.Request) (*Subject, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, ErrNoCredentials
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return &Subject{UserID: claims.Subject, Email: claims.Email}, nil
}

// Middleware rejects unauthenticated requests through onFail and stores the
// Subject in the request context otherwise.
func (m *JWTManager) Middleware(onFail func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := m.Authenticate(r)
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSubject(r.Context(), subject)))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
