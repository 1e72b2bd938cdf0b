package mailer

import (
	"bytes"
	"html/template"
	"net/url"
)

const InvitationTTLDays = 7

var invitationHTML = template.Must(template.New("invitation").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <title>{{.Subject}}</title>
  </head>
  <body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="color: #333;">{{.Subject}}</h1>
    <p>U bent uitgenodigd om deel te nemen aan een project.</p>
    <p>Rol: {{.Role}}</p>
    <div style="text-align: center; margin: 30px 0;">
      <a href="{{.AcceptURL}}" style="background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">
        Accepteer uitnodiging
      </a>
    </div>
    <p>Of kopieer deze link naar uw browser: <a href="{{.AcceptURL}}">{{.AcceptURL}}</a></p>
    <p>Deze uitnodiging verloopt over {{.Days}} dagen.</p>
  </body>
</html>
`))

type Invitation struct {
	From      string
	To        string
	Subject   string
	Role      string
	AcceptURL string
}

// AcceptURL appends the invitation token to base as the token query parameter.
func AcceptURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (i *Invitation) Message() (*Message, error) {
	var b bytes.Buffer

	err := invitationHTML.Execute(&b, map[string]any{
		"Subject":   i.Subject,
		"Role":      i.Role,
		"AcceptURL": i.AcceptURL,
		"Days":      InvitationTTLDays,
	})

	if err != nil {
		return nil, err
	}

	return &Message{
		From:    i.From,
		To:      []string{i.To},
		Subject: i.Subject,
		HTML:    b.String(),
	}, nil
}
