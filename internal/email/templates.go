package email

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// ContactTemplateID is the id of the built-in contact template.
const ContactTemplateID = "contact"

// TemplateData is what a template renders against.
type TemplateData struct {
	AppName string
	Name    string
	Email   string
	Message string
}

// Template renders the subject and bodies of one kind of message.
type Template struct {
	subject *texttemplate.Template
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

// NewTemplate parses a template set. html may be empty for text-only mail.
func NewTemplate(name, subject, html, text string) (*Template, error) {
	t := &Template{}
	var err error
	if t.subject, err = texttemplate.New(name + ".subject").Parse(subject); err != nil {
		return nil, fmt.Errorf("template %s: subject: %w", name, err)
	}
	if t.text, err = texttemplate.New(name + ".text").Parse(text); err != nil {
		return nil, fmt.Errorf("template %s: text: %w", name, err)
	}
	if html != "" {
		if t.html, err = htmltemplate.New(name + ".html").Parse(html); err != nil {
			return nil, fmt.Errorf("template %s: html: %w", name, err)
		}
	}
	return t, nil
}

// Render fills in subject and bodies of a Message. The recipient is left for
// the caller.
func (t *Template) Render(data TemplateData) (Message, error) {
	var subject, text, html bytes.Buffer
	if err := t.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	if t.html != nil {
		if err := t.html.Execute(&html, data); err != nil {
			return Message{}, fmt.Errorf("render html body: %w", err)
		}
	}
	return Message{
		Subject:  subject.String(),
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

// ContactTemplate returns the built-in template for portfolio contact mail.
func ContactTemplate() *Template {
	t, err := NewTemplate(ContactTemplateID, contactSubject, contactHTML, contactText)
	if err != nil {
		panic(err)
	}
	return t
}

const contactSubject = `[{{.AppName}}] New message from {{.Name}}`

const contactText = `New message from your {{.AppName}} contact form

Name:  {{.Name}}
Email: {{.Email}}

{{.Message}}

- Reply to this email to answer {{.Name}} directly.`

const contactHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>New contact message</title>
</head>
<body style="margin:0;padding:0;font-family:-apple-system,BlinkMacSystemFont,'Segoe UI',Roboto,Helvetica,Arial,sans-serif;background-color:#050816;">
<table width="100%" cellpadding="0" cellspacing="0" style="background-color:#050816;padding:40px 0;">
<tr><td align="center">
<table width="520" cellpadding="0" cellspacing="0" style="background-color:#090325;border-radius:8px;overflow:hidden;">
  <tr><td style="padding:32px 40px 16px;">
    <p style="margin:0;font-size:13px;color:#a1a1aa;letter-spacing:2px;">GET IN TOUCH</p>
    <h1 style="margin:8px 0 0;font-size:26px;color:#ffffff;">New message from {{.Name}}</h1>
  </td></tr>
  <tr><td style="padding:0 40px 8px;">
    <p style="margin:0;font-size:14px;color:#d4d4d8;">
      <a href="mailto:{{.Email}}" style="color:#925eff;">{{.Email}}</a>
    </p>
  </td></tr>
  <tr><td style="padding:16px 40px 32px;">
    <div style="background-color:#151030;border-radius:6px;padding:16px;font-size:15px;color:#f4f4f5;line-height:1.6;white-space:pre-wrap;">{{.Message}}</div>
  </td></tr>
  <tr><td style="padding:16px 40px;border-top:1px solid #1f1a3d;">
    <p style="margin:0;font-size:12px;color:#71717a;text-align:center;">
      Sent by the {{.AppName}} contact form. Reply to answer directly.
    </p>
  </td></tr>
</table>
</td></tr>
</table>
</body>
</html>`
