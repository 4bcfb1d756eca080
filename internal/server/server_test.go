package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name           string
		pingErr        error
		nilChecker     bool
		expectedStatus int
	}{
		{name: "healthy", expectedStatus: http.StatusOK},
		{name: "store unreachable", pingErr: errors.New("connection refused"), expectedStatus: http.StatusServiceUnavailable},
		{name: "no checker", nilChecker: true, expectedStatus: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s *Server
			checker := &mockChecker{}
			if tc.nilChecker {
				s = New(":0", nil, "release")
			} else {
				checker.On("Ping", mock.Anything).Return(tc.pingErr).Once()
				s = New(":0", checker, "release")
			}

			resp := httptest.NewRecorder()
			s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tc.expectedStatus, resp.Code, resp.Body.String())
			checker.AssertExpectations(t)
		})
	}
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := New("127.0.0.1:0", nil, "release")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	require.NoError(t, <-done)
}
