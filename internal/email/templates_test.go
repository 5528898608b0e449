package email

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactTemplateRender(t *testing.T) {
	msg, err := ContactTemplate().Render(TemplateData{
		AppName: "Folio",
		Name:    "Grace",
		Email:   "grace@example.com",
		Message: "Let's build <something>",
	})
	require.NoError(t, err)

	assert.Equal(t, "[Folio] New message from Grace", msg.Subject)
	assert.Contains(t, msg.TextBody, "Email: grace@example.com")
	assert.Contains(t, msg.TextBody, "Let's build <something>")
	assert.Contains(t, msg.HTMLBody, "Let&#39;s build &lt;something&gt;")
	assert.Empty(t, msg.To)
}

func TestNewTemplateTextOnly(t *testing.T) {
	tmpl, err := NewTemplate("plain", "Hi {{.Name}}", "", "{{.Message}}")
	require.NoError(t, err)

	msg, err := tmpl.Render(TemplateData{Name: "Lin", Message: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Lin", msg.Subject)
	assert.Equal(t, "body", msg.TextBody)
	assert.Empty(t, msg.HTMLBody)
}

func TestNewTemplateParseError(t *testing.T) {
	_, err := NewTemplate("broken", "{{.Name", "", "")
	assert.Error(t, err)
}

func TestBuildMIME(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	raw := string(buildMIME("Folio <site@example.com>", Message{
		To:       "owner@example.com",
		ReplyTo:  "visitor@example.com",
		Subject:  "Héllo",
		TextBody: "line one\nline two",
		HTMLBody: "<p>hi</p>",
	}, now))

	assert.Contains(t, raw, "From: Folio <site@example.com>\r\n")
	assert.Contains(t, raw, "Reply-To: visitor@example.com\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?H=C3=A9llo?=\r\n")
	assert.Contains(t, raw, "Date: Fri, 02 Jan 2026 03:04:05 +0000\r\n")
	assert.Contains(t, raw, "Message-ID: <")
	assert.Contains(t, raw, "@example.com>\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "Content-Transfer-Encoding: quoted-printable\r\n")
	assert.Contains(t, raw, "line one\r\nline two")
	assert.NotContains(t, strings.ReplaceAll(raw, "\r\n", ""), "\n")
}

func TestBuildMIMEEncodesHeaderBreaks(t *testing.T) {
	raw := string(buildMIME("site@example.com", Message{
		To:       "owner@example.com",
		Subject:  "hi\r\nBcc: victim@example.com",
		TextBody: "x",
	}, time.Now()))

	assert.NotContains(t, raw, "\r\nBcc:")
}

func TestExtractDomain(t *testing.T) {
	assert.Equal(t, "example.com", extractDomain("Folio <site@Example.com>"))
	assert.Equal(t, "example.com", extractDomain("site@example.com"))
	assert.Equal(t, "", extractDomain("nobody"))
}

func TestBuildMIMEVisitorCannotForgeParts(t *testing.T) {
	injected := "hi\n--boundary_folio_contact\nContent-Type: text/html\n\n<h1>INJECTED</h1>\n--boundary_folio_contact--\n" +
		strings.Repeat("x", 2000)

	msg, err := ContactTemplate().Render(TemplateData{
		AppName: "Folio",
		Name:    "Eve",
		Email:   "eve@example.com",
		Message: injected,
	})
	require.NoError(t, err)
	msg.To = "owner@example.com"

	raw := buildMIME("site@example.com", msg, time.Now())
	for _, line := range strings.Split(string(raw), "\r\n") {
		require.LessOrEqual(t, len(line), 998)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/alternative", mediaType)
	assert.NotEqual(t, "boundary_folio_contact", params["boundary"])

	var parts []string
	var types []string
	mr := multipart.NewReader(parsed.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, string(body))
		types = append(types, p.Header.Get("Content-Type"))
	}

	require.Len(t, parts, 2)
	assert.Equal(t, "text/plain; charset=UTF-8", types[0])
	assert.Equal(t, "text/html; charset=UTF-8", types[1])

	// The whole visitor message stays inside the text part.
	assert.Contains(t, parts[0], "<h1>INJECTED</h1>")
	assert.Contains(t, parts[0], strings.Repeat("x", 2000))

	// The rendered HTML part is intact and carries the message escaped.
	assert.Contains(t, parts[1], "GET IN TOUCH")
	assert.Contains(t, parts[1], "&lt;h1&gt;INJECTED&lt;/h1&gt;")
	assert.NotContains(t, parts[1], "<h1>INJECTED</h1>")
}
