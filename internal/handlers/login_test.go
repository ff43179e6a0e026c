package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/mkarpuk/finsync/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name               string
		requestBody        any
		setupMocks         func(mockSvc *MockLoginer)
		expectedStatusCode int
		expectedKey        string
	}{
		{
			name: "successful login",
			requestBody: LoginRequest{
				Username: "alice",
				Password: "secret123",
			},
			setupMocks: func(mockSvc *MockLoginer) {
				mockSvc.EXPECT().
					Login(gomock.Any(), "alice", "secret123").
					Return("jwt-token", nil)
			},
			expectedStatusCode: http.StatusOK,
			expectedKey:        "token",
		},
		{
			name:               "invalid request body",
			requestBody:        "invalid-json",
			setupMocks:         func(mockSvc *MockLoginer) {},
			expectedStatusCode: http.StatusBadRequest,
			expectedKey:        "error",
		},
		{
			name: "invalid credentials",
			requestBody: LoginRequest{
				Username: "bob",
				Password: "wrongpass",
			},
			setupMocks: func(mockSvc *MockLoginer) {
				mockSvc.EXPECT().
					Login(gomock.Any(), "bob", "wrongpass").
					Return("", services.ErrInvalidCredentials)
			},
			expectedStatusCode: http.StatusUnauthorized,
			expectedKey:        "error",
		},
		{
			name: "user does not exist",
			requestBody: LoginRequest{
				Username: "ghost",
				Password: "secret123",
			},
			setupMocks: func(mockSvc *MockLoginer) {
				mockSvc.EXPECT().
					Login(gomock.Any(), "ghost", "secret123").
					Return("", services.ErrUserDoesNotExist)
			},
			expectedStatusCode: http.StatusUnauthorized,
			expectedKey:        "error",
		},
		{
			name: "internal server error",
			requestBody: LoginRequest{
				Username: "carol",
				Password: "secret123",
			},
			setupMocks: func(mockSvc *MockLoginer) {
				mockSvc.EXPECT().
					Login(gomock.Any(), "carol", "secret123").
					Return("", assert.AnError)
			},
			expectedStatusCode: http.StatusInternalServerError,
			expectedKey:        "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockSvc := NewMockLoginer(ctrl)
			tt.setupMocks(mockSvc)

			var bodyBytes []byte
			switch v := tt.requestBody.(type) {
			case string:
				bodyBytes = []byte(v)
			default:
				bodyBytes, _ = json.Marshal(v)
			}

			req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(bodyBytes))
			rr := httptest.NewRecorder()

			NewLoginHandler(mockSvc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatusCode, rr.Code)

			var resp map[string]interface{}
			err := json.NewDecoder(rr.Body).Decode(&resp)
			assert.NoError(t, err)

			_, ok := resp[tt.expectedKey]
			assert.True(t, ok, "response should contain key %s", tt.expectedKey)
		})
	}
}
