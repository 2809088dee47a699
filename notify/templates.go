package notify

import (
	"bytes"
	"html/template"
)

const layout = `<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; border: 1px solid #e5e7eb; border-radius: 8px; overflow: hidden;">
  <div style="background-color: #1a1a1a; padding: 20px; text-align: center;">
    <h1 style="color: white; margin: 0;">{{.Title}}</h1>
  </div>
  <div style="padding: 30px; background-color: #f9fafb;">
    <p>{{.Intro}}</p>
    <div style="text-align: center; margin: 25px 0;">
      {{- if .Link}}
      <a href="{{.Link}}" style="background-color: #1a1a1a; color: white; padding: 12px 20px; text-decoration: none; border-radius: 4px; display: inline-block;">{{.Action}}</a>
      {{- else}}
      <p style="font-size: 28px; letter-spacing: 6px;">{{.Code}}</p>
      {{- end}}
    </div>
    {{- if .Footer}}
    <p style="font-size: 14px; color: #6b7280;">{{.Footer}}</p>
    {{- end}}
  </div>
</div>`

var mailTemplate = template.Must(template.New("mail").Parse(layout))

type mailContent struct {
	Title  string
	Intro  string
	Action string
	Link   string
	Code   string
	Footer string
}

func render(c mailContent) (string, error) {
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, c); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func twoFactorMail(code string) mailContent {
	return mailContent{
		Title: "Two-factor authentication code",
		Intro: "Use this code to finish signing in:",
		Code:  code,
	}
}

func resetMail(link string) mailContent {
	return mailContent{
		Title:  "Password reset",
		Intro:  "We received a request to reset your password. Use the button below to choose a new one:",
		Action: "Reset password",
		Link:   link,
		Footer: "If you did not request this, ignore this email. Your current password stays unchanged.",
	}
}

func passwordChangedMail(loginURL string) mailContent {
	return mailContent{
		Title:  "Your password was changed",
		Intro:  "Sign in to your account with the button below:",
		Action: "Sign in",
		Link:   loginURL,
	}
}
