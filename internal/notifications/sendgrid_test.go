package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/crushlink-backend/pkg/errors"
)

type fakeSendgrid struct {
	resp *rest.Response
	err  error
	sent []*mail.SGMailV3
}

func (f *fakeSendgrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, email)
	return f.resp, f.err
}

func TestSendgridSenderBuildsMail(t *testing.T) {
	client := &fakeSendgrid{resp: &rest.Response{StatusCode: 202}}
	sender := newSendgridSender(client, SendgridConfig{FromEmail: "hello@crushlink.app", FromName: "Crushlink"})

	err := sender.Send(context.Background(), Message{
		ToEmail:   "asha@college.edu",
		ToName:    "Asha",
		MatchName: "Ravi <3",
		Subject:   "It's a match!",
		Body:      defaultMessage,
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	email := client.sent[0]
	require.Equal(t, "hello@crushlink.app", email.From.Address)
	require.Equal(t, "It's a match!", email.Subject)
	require.Len(t, email.Personalizations, 1)
	require.Equal(t, "asha@college.edu", email.Personalizations[0].To[0].Address)
	require.Len(t, email.Content, 2)
	require.Contains(t, email.Content[0].Value, "You matched with Ravi <3.")
	require.Contains(t, email.Content[1].Value, "Ravi &lt;3")
}

func TestSendgridSenderMapsFailures(t *testing.T) {
	cases := map[string]*fakeSendgrid{
		"transport": {err: errors.New("dial tcp")},
		"status":    {resp: &rest.Response{StatusCode: 401, Body: "unauthorized"}},
		"empty":     {},
	}
	for name, client := range cases {
		t.Run(name, func(t *testing.T) {
			sender := newSendgridSender(client, SendgridConfig{FromEmail: "hello@crushlink.app"})
			err := sender.Send(context.Background(), Message{ToEmail: "a@b.co"})
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
		})
	}
}

func TestNewSendgridSenderRequiresKey(t *testing.T) {
	_, err := NewSendgridSender(SendgridConfig{FromEmail: "a@b.co"})
	require.Error(t, err)

	sender, err := NewSendgridSender(SendgridConfig{APIKey: "SG.key", FromEmail: "a@b.co"})
	require.NoError(t, err)
	require.NotNil(t, sender)
}
