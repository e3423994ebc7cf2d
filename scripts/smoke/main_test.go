package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTokens(t *testing.T) {
	tokens := parseTokens("Admin=a1, student=s1,broken,teacher=")

	assert.Equal(t, map[string]string{"admin": "a1", "student": "s1"}, tokens)
}

func TestProbeReportsStatusAndErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"unauthorized","status":401}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	tgt := target{Method: http.MethodGet, Path: "api/v1/courses", Expect: http.StatusOK}

	anonymous := probe(srv.Client(), srv.URL, "", tgt)
	assert.NoError(t, anonymous.Error)
	assert.Equal(t, http.StatusUnauthorized, anonymous.Status)
	assert.Equal(t, "UNAUTHORIZED", anonymous.Code)

	authed := probe(srv.Client(), srv.URL+"/", "tok", tgt)
	assert.NoError(t, authed.Error)
	assert.Equal(t, http.StatusOK, authed.Status)
	assert.Empty(t, authed.Code)
}

func TestErrorCodeIgnoresNonEnvelopes(t *testing.T) {
	assert.Empty(t, errorCode([]byte("not json")))
	assert.Empty(t, errorCode([]byte(`{"status":"ok"}`)))
}
