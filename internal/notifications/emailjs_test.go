package notifications

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestEmailJSSenderPostsTemplateParams(t *testing.T) {
	var captured emailJSRequest
	var capturedURL, contentType string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		contentType = req.Header.Get("Content-Type")
		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("OK")), Header: http.Header{}}, nil
	})

	sender, err := NewEmailJSSender(EmailJSConfig{ServiceID: "svc", TemplateID: "tpl", PublicKey: "pub"},
		WithEmailJSEndpoint("http://emailjs.test/send"),
		WithEmailJSHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{
		ToEmail:   "asha@college.edu",
		ToName:    "Asha",
		MatchName: "Ravi",
		Body:      defaultMessage,
	})
	require.NoError(t, err)
	require.Equal(t, "http://emailjs.test/send", capturedURL)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, "svc", captured.ServiceID)
	require.Equal(t, "tpl", captured.TemplateID)
	require.Equal(t, "pub", captured.UserID)
	require.Equal(t, map[string]string{
		"to_name":  "Asha",
		"to_name2": "Ravi",
		"to_email": "asha@college.edu",
		"message":  defaultMessage,
	}, captured.TemplateParams)
}

func TestEmailJSSenderSurfacesHTTPFailure(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadRequest, Body: io.NopCloser(strings.NewReader("The template ID is invalid")), Header: http.Header{}}, nil
	})
	sender, err := NewEmailJSSender(EmailJSConfig{ServiceID: "svc", TemplateID: "tpl", PublicKey: "pub"},
		WithEmailJSHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	err = sender.Send(context.Background(), Message{ToEmail: "a@b.co"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.ErrorContains(t, err, "status 400")
	require.ErrorContains(t, err, "template ID is invalid")
}

func TestNewEmailJSSenderRequiresCredentials(t *testing.T) {
	_, err := NewEmailJSSender(EmailJSConfig{ServiceID: "svc"})
	require.Error(t, err)
}
