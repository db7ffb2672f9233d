package middleware

import (
	"context"
	"sync"
)

// userIDKey is the context key for the authenticated user ID.
type userIDKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// requestStateKey is the context key for the per-request state installed by Logging.
type requestStateKey struct{}

// requestState carries values set by inner handlers back out to Logging,
// which only holds the request as it was before the inner handlers derived
// new contexts.
type requestState struct {
	mu        sync.Mutex
	errorCode string
	userID    int64
	hasUser   bool
}

func withRequestState(ctx context.Context) (context.Context, *requestState) {
	st := &requestState{}
	return context.WithValue(ctx, requestStateKey{}, st), st
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestStateKey{}).(*requestState)
	return st
}

func (s *requestState) snapshot() (code string, userID int64, hasUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorCode, s.userID, s.hasUser
}

// SetUserID stores the authenticated user ID in the context.
// This should be called by authentication middleware after validating the token.
func SetUserID(ctx context.Context, userID int64) context.Context {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.userID, st.hasUser = userID, true
		st.mu.Unlock()
	}
	return context.WithValue(ctx, userIDKey{}, userID)
}

// GetUserID retrieves the authenticated user ID. ok is false for anonymous requests.
func GetUserID(ctx context.Context) (userID int64, ok bool) {
	userID, ok = ctx.Value(userIDKey{}).(int64)
	return userID, ok
}

// SetErrorCode stores an error code in the context.
// This should be called by handlers when returning error responses.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.errorCode = code
		st.mu.Unlock()
	}
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	if st := stateFrom(ctx); st != nil {
		code, _, _ := st.snapshot()
		return code
	}
	return ""
}
