package igclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/content-factory/internal/model"
)

func newTestClient(srv *httptest.Server) *HTTPClient {
	return NewHTTPClient(srv.URL, 2*time.Second, 1000)
}

func TestClassifyStatus(t *testing.T) {
	cases := map[string]struct {
		code  int
		body  string
		check func(error) bool
	}{
		"rate limited":      {http.StatusTooManyRequests, "", IsRateLimited},
		"login required":    {http.StatusUnauthorized, `{"message":"login_required"}`, IsAuthError},
		"forbidden":         {http.StatusForbidden, `{"message":"not allowed"}`, IsAuthError},
		"checkpoint is ban": {http.StatusForbidden, `{"message":"checkpoint_required"}`, IsBan},
		"disabled is ban":   {http.StatusUnauthorized, `{"message":"account disabled"}`, IsBan},
		"server error":      {http.StatusBadGateway, "upstream down", IsTransient},
		"unexpected status": {http.StatusTeapot, "", IsTransient},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := classifyStatus(tc.code, []byte(tc.body))
			require.Error(t, err)
			assert.True(t, tc.check(err))
		})
	}
	assert.NoError(t, classifyStatus(http.StatusOK, nil))
}

func TestLoginSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/login/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "alice", r.Form.Get("username"))
		assert.NotEmpty(t, r.Form.Get("device_id"))
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc123"})
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "tok"})
		w.Write([]byte(`{"status":"ok","logged_in_user":{"username":"alice"},"token":"Bearer IGT:2:xyz"}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Login(context.Background(), "alice", "pw", nil)
	require.NoError(t, err)
	assert.Contains(t, res.Session.Cookies, "sessionid=abc123")
	assert.Contains(t, res.Session.Cookies, "csrftoken=tok")
	assert.Equal(t, "Bearer IGT:2:xyz", res.Session.Token)
	assert.Contains(t, res.DeviceID, "android-")
	assert.Len(t, res.Session.DeviceIDs, 3)
}

func TestLoginTwoFactorRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","two_factor_info":{"two_factor_identifier":"tfid-1"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Login(context.Background(), "alice", "pw", nil)
	assert.ErrorIs(t, err, ErrTwoFactorRequired)
}

func TestLoginTwoFactorRequiredVia400(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"two_factor_required"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Login(context.Background(), "alice", "pw", nil)
	assert.ErrorIs(t, err, ErrTwoFactorRequired)
}

func TestLoginBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"fail","message":"The password you entered is incorrect."}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Login(context.Background(), "alice", "pw", nil)
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestTwoFactorLoginWrongCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/two_factor_login/", r.URL.Path)
		w.Write([]byte(`{"status":"fail","message":"Please check the code"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).TwoFactorLogin(context.Background(), "alice", "pw", "000000", nil)
	assert.ErrorIs(t, err, ErrTwoFactorRequired)
}

func TestAccountInfoSendsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sessionid=abc", r.Header.Get("Cookie"))
		assert.Equal(t, "custom-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"user":{"username":"alice","full_name":"Alice","follower_count":42}}`))
	}))
	defer srv.Close()

	sess := &model.SessionData{Cookies: "sessionid=abc", UserAgent: "custom-agent"}
	info, err := newTestClient(srv).AccountInfo(context.Background(), sess, nil)
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.Equal(t, 42, info.FollowerCount)
}

func TestPublishResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/media/configure/", r.URL.Path)
		w.Write([]byte(`{"status":"ok","media":{"id":"318_42"}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv).Publish(context.Background(), &model.SessionData{Cookies: "sessionid=x"}, PublishRequest{
		MediaType:  model.MediaTypePhoto,
		MediaPaths: []string{"/media/a.jpg"},
		Caption:    "hello",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "318_42", res.MediaID)
}

func TestPublishRemoteRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Publish(context.Background(), &model.SessionData{}, PublishRequest{
		MediaType:  model.MediaTypePhoto,
		MediaPaths: []string{"/media/a.jpg"},
	}, nil)
	assert.True(t, IsRateLimited(err))
}

func TestPublishRejectsEmptyMedia(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no outbound call expected")
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Publish(context.Background(), &model.SessionData{}, PublishRequest{
		MediaType: model.MediaTypePhoto,
	}, nil)
	assert.Error(t, err)
}
