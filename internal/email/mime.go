package email

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
)

// formatAddress renders "Name <addr>" with the display name Q-encoded.
func formatAddress(name, addr string) string {
	if name == "" {
		return addr
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", name), addr)
}

// buildMIME renders msg as an RFC 5322 message with CRLF line endings.
// Bodies are quoted-printable; a multipart message gets a random boundary.
func buildMIME(from string, msg Message, now time.Time) []byte {
	var buf bytes.Buffer
	header := func(key, value string) {
		buf.WriteString(key + ": " + value + "\r\n")
	}

	header("From", from)
	header("To", msg.To)
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID(from))
	header("MIME-Version", "1.0")

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		// Multipart alternative (HTML + text)
		mw := multipart.NewWriter(&buf)
		header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		buf.WriteString("\r\n")
		writePart(mw, "text/plain; charset=UTF-8", msg.TextBody)
		writePart(mw, "text/html; charset=UTF-8", msg.HTMLBody)
		mw.Close()
	case msg.HTMLBody != "":
		header("Content-Type", "text/html; charset=UTF-8")
		header("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, msg.HTMLBody)
	default:
		header("Content-Type", "text/plain; charset=UTF-8")
		header("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, msg.TextBody)
	}

	return buf.Bytes()
}

func writePart(mw *multipart.Writer, contentType, body string) {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	// Writes into a bytes.Buffer cannot fail
	pw, _ := mw.CreatePart(h)
	writeQuotedPrintable(pw, body)
}

func writeQuotedPrintable(w io.Writer, body string) {
	qp := quotedprintable.NewWriter(w)
	qp.Write([]byte(normalizeCRLF(body)))
	qp.Close()
}

func messageID(from string) string {
	domain := extractDomain(from)
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", uuid.New().String(), domain)
}

// normalizeCRLF converts bare LF line endings, as found in template output,
// to CRLF.
func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func extractDomain(address string) string {
	address = strings.TrimSpace(address)
	if i := strings.LastIndex(address, "<"); i >= 0 {
		address = strings.TrimSuffix(address[i+1:], ">")
	}
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}
