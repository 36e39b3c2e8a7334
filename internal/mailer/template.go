package mailer

import (
	"bytes"
	"html/template"
)

var emailTmpl = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:24px;background-color:#f4f4f5;font-family:Arial,sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0" role="presentation">
    <tr>
      <td align="center">
        <table width="560" cellpadding="0" cellspacing="0" role="presentation"
               style="max-width:560px;width:100%;background-color:#ffffff;border-radius:8px;">
          <tr>
            <td style="padding:20px 32px;border-bottom:1px solid #e5e7eb;">
              <p style="margin:0;font-size:16px;font-weight:600;color:#111827;">{{.Subject}}</p>
            </td>
          </tr>
          <tr>
            <td style="padding:24px 32px;">
              <div style="font-size:14px;line-height:1.6;color:#374151;white-space:pre-wrap;">{{.Body}}</div>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`))

// renderHTML renders the HTML alternative of a notification.
func renderHTML(subject, body string) (string, error) {
	var buf bytes.Buffer
	if err := emailTmpl.Execute(&buf, struct{ Subject, Body string }{subject, body}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
