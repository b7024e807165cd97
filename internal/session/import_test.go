package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionText(t *testing.T) {
	raw := "alice:secret|Mozilla/5.0 (iPhone)|dev-1;dev-2;dev-3|sessionid=abc; csrftoken=xyz||alice@example.com"
	rec, err := ParseSessionText(raw)
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "secret", rec.Password)
	assert.Equal(t, "Mozilla/5.0 (iPhone)", rec.UserAgent)
	assert.Equal(t, []string{"dev-1", "dev-2", "dev-3"}, rec.DeviceIDs)
	assert.Equal(t, "sessionid=abc; csrftoken=xyz", rec.Cookies)
	assert.Equal(t, "alice@example.com", rec.Email)
}

func TestParseSessionTextWithoutEmail(t *testing.T) {
	rec, err := ParseSessionText("bob:pw|UA|d1;d2;d3|c=1")
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.Username)
	assert.Empty(t, rec.Email)
}

func TestParseSessionTextPasswordWithColon(t *testing.T) {
	// 密码里允许出现冒号，只在第一个冒号处切分
	rec, err := ParseSessionText("carol:p:a:ss|UA|d1;d2;d3|")
	require.NoError(t, err)
	assert.Equal(t, "p:a:ss", rec.Password)
	assert.Empty(t, rec.Cookies)
}

func TestParseSessionTextMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":              "",
		"too few segments":   "alice:pw|UA|d1;d2;d3",
		"no password":        "alice|UA|d1;d2;d3|c",
		"empty username":     ":pw|UA|d1;d2;d3|c",
		"empty user agent":   "alice:pw||d1;d2;d3|c",
		"two device ids":     "alice:pw|UA|d1;d2|c",
		"empty device id":    "alice:pw|UA|d1;;d3|c",
		"single pipe email":  "alice:pw|UA|d1;d2;d3|c|mail@example.com",
		"trailing junk":      "alice:pw|UA|d1;d2;d3|c||mail|extra",
		"email without sep":  "alice:pw|UA|d1;d2;d3|c|x|mail",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSessionText(raw)
			assert.ErrorIs(t, err, ErrMalformedSession)
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	for _, raw := range []string{
		"alice:secret|UA/1.0|d1;d2;d3|sid=1; tok=2||alice@example.com",
		"bob:pw|UA|d1;d2;d3|c=1",
		"carol:pw|UA|d1;d2;d3|",
	} {
		rec, err := ParseSessionText(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, rec.Serialize())
	}
}
