package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/seedfund-backend/api/middleware"
	"github.com/angelmondragon/seedfund-backend/internal/notifications"
	"github.com/angelmondragon/seedfund-backend/pkg/db/models"
)

type stubNotifications struct {
	listed  notifications.ListParams
	read    [2]uuid.UUID
	readErr error
}

func (s *stubNotifications) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listed = params
	return &notifications.ListResult{Items: []models.Notification{{ID: uuid.New(), UserID: params.UserID}}, Cursor: "next"}, nil
}

func (s *stubNotifications) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	s.read = [2]uuid.UUID{userID, notificationID}
	return s.readErr
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 5, nil
}

func withRouteParams(req *http.Request, params map[string]string) *http.Request {
	rc := chi.NewRouteContext()
	for k, v := range params {
		rc.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestListNotificationsParsesQuery(t *testing.T) {
	svc := &stubNotifications{}
	user := uuid.New()
	req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10&cursor=abc&unreadOnly=true", nil), user)
	rec := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, notifications.ListParams{UserID: user, Limit: 10, Cursor: "abc", UnreadOnly: true}, svc.listed)
	require.Equal(t, "next", decodeData[notifications.ListResult](t, rec).Cursor)
}

func TestListNotificationsRejectsBadQuery(t *testing.T) {
	for _, query := range []string{"limit=0", "limit=101", "limit=ten", "unreadOnly=maybe"} {
		t.Run(query, func(t *testing.T) {
			svc := &stubNotifications{}
			req := asUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?"+query, nil), uuid.New())
			rec := httptest.NewRecorder()
			ListNotifications(svc, testLogger())(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, uuid.Nil, svc.listed.UserID)
		})
	}
}

func TestMarkNotificationRead(t *testing.T) {
	user, id := uuid.New(), uuid.New()
	cases := []struct {
		name   string
		user   string
		param  string
		status int
	}{
		{"ok", user.String(), id.String(), http.StatusOK},
		{"no caller", "", id.String(), http.StatusUnauthorized},
		{"bad caller", "bad", id.String(), http.StatusUnauthorized},
		{"bad id", user.String(), "invalid", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubNotifications{}
			req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/x/read", nil)
			if tc.user != "" {
				req = req.WithContext(middleware.WithUserID(req.Context(), tc.user))
			}
			req = withRouteParams(req, map[string]string{"notificationId": tc.param})
			rec := httptest.NewRecorder()
			MarkNotificationRead(svc, testLogger())(rec, req)

			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, [2]uuid.UUID{user, id}, svc.read)
				require.True(t, decodeData[map[string]bool](t, rec)["read"])
			}
		})
	}
}

func TestMarkAllNotificationsRead(t *testing.T) {
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil), uuid.New())
	rec := httptest.NewRecorder()
	MarkAllNotificationsRead(&stubNotifications{}, testLogger())(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(5), decodeData[map[string]int64](t, rec)["updated"])
}
