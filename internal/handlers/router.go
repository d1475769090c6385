package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	auth *AuthHandler,
	user *UserHandler,
	authMiddleware func(http.Handler) http.Handler,
	mds ...func(next http.Handler) http.Handler,
) http.Handler {
	withAuth := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	mux := http.NewServeMux()

	mux.Handle("POST /auth/kakao", http.HandlerFunc(auth.loginKakao))
	mux.Handle("POST /auth/refresh", http.HandlerFunc(auth.refresh))
	mux.Handle("POST /auth/logout", withAuth(auth.logout))

	mux.Handle("GET /me", withAuth(user.me))

	return chain(mux, mds...)
}
