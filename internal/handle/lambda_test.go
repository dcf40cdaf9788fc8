package handle

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(method, path, body string) events.APIGatewayV2HTTPRequest {
	e := events.APIGatewayV2HTTPRequest{
		RouteKey: method + " " + path,
		RawPath:  path,
		Headers:  map[string]string{"content-type": "application/json"},
		Body:     body,
	}
	e.RequestContext.HTTP.Method = method
	e.RequestContext.HTTP.Path = path
	return e
}

func TestLambdaAdapterGenerate(t *testing.T) {
	adapter := &LambdaAdapter{Handler: newFixture().routes()}

	resp, err := adapter.Handle(context.Background(), event(http.MethodPost, "/generate", `{"prompt": "hello", "text_max_length": 50}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.JSONEq(t, `{"text": "TEXT:hello", "image_base64": "ZmFrZWltYWdlYnl0ZXM=", "image_s3_url": null}`, resp.Body)
}

func TestLambdaAdapterBase64Body(t *testing.T) {
	adapter := &LambdaAdapter{Handler: newFixture().routes()}

	e := event(http.MethodPost, "/generate", base64.StdEncoding.EncodeToString([]byte(`{"prompt": "  "}`)))
	e.IsBase64Encoded = true
	resp, err := adapter.Handle(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"detail": "prompt is required"}`, resp.Body)
}

func TestLambdaAdapterInvalidBase64(t *testing.T) {
	adapter := &LambdaAdapter{Handler: newFixture().routes()}

	e := event(http.MethodPost, "/generate", "not base64!")
	e.IsBase64Encoded = true
	_, err := adapter.Handle(context.Background(), e)
	assert.Error(t, err)
}

func TestLambdaAdapterRequestTranslation(t *testing.T) {
	var got *http.Request
	var body []byte
	adapter := &LambdaAdapter{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		body, _ = io.ReadAll(r.Body)
		w.Write([]byte{0xff, 0xd8, 0xff})
	})}

	e := event(http.MethodGet, "", "payload")
	e.RequestContext.HTTP.Path = "/prompts/random"
	e.RawQueryString = "a=1&b=2"
	e.Cookies = []string{"x=1", "y=2"}
	e.RequestContext.HTTP.SourceIP = "203.0.113.9"

	resp, err := adapter.Handle(context.Background(), e)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, "/prompts/random", got.URL.Path)
	assert.Equal(t, "1", got.URL.Query().Get("a"))
	assert.Equal(t, "x=1; y=2", got.Header.Get("Cookie"))
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.Equal(t, "203.0.113.9", got.RemoteAddr)
	assert.Equal(t, "payload", string(body))

	assert.True(t, resp.IsBase64Encoded)
	decoded, err := base64.StdEncoding.DecodeString(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0xff}, decoded)
}
