package publishers

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// mailTransport submits a finished message.
type mailTransport interface {
	Send(ctx context.Context, from string, to []string, msg []byte) error
}

// emailPublisher mails the report as an attachment.
type emailPublisher struct {
	id        string
	from      string
	to        []string
	subject   string
	body      string
	transport mailTransport
	log       Logger
}

func newEmailPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Email == nil {
		return nil, fmt.Errorf("publisher %q missing email configuration", cfg.ID)
	}
	c := *cfg.Email
	return &emailPublisher{
		id:      cfg.ID,
		from:    c.From,
		to:      c.Recipients(),
		subject: c.Subject,
		body:    c.Body,
		transport: &smtpTransport{
			host:     c.Host,
			port:     c.Port,
			security: c.Security,
			username: c.Username,
			password: c.Password,
			timeout:  time.Duration(c.TimeoutSeconds) * time.Second,
		},
		log: ensureLogger(log),
	}, nil
}

func (e *emailPublisher) ID() string   { return e.id }
func (e *emailPublisher) Type() string { return TypeEmail }

// Publish builds a multipart message with the report attached and sends it.
func (e *emailPublisher) Publish(ctx context.Context, d Delivery) error {
	msg, err := buildMessage(e.from, e.to, e.subject, e.body, d)
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}
	if err := e.transport.Send(ctx, e.from, e.to, msg); err != nil {
		e.log.ErrorObj("email publisher send failed", "publisher_email_error", map[string]any{
			"publisher_id": e.id,
			"recipients":   len(e.to),
			"error":        err.Error(),
		})
		return fmt.Errorf("send email: %w", err)
	}
	e.log.InfoObj("email publisher delivered report", "publisher_email_delivery", map[string]any{
		"publisher_id": e.id,
		"recipients":   len(e.to),
		"rows":         d.Rows,
	})
	return nil
}

// buildMessage renders an RFC 5322 message: the report as a base64
// application/octet-stream attachment followed by a plain text body.
func buildMessage(from string, to []string, subject, body string, d Delivery) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	date := d.GeneratedAt
	if date.IsZero() {
		date = time.Now()
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", date.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mw.Boundary())

	attachment, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"application/octet-stream"},
		"Content-Transfer-Encoding": {"base64"},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": d.Filename})},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(attachment, d.Body); err != nil {
		return nil, err
	}

	text, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {`text/plain; charset="utf-8"`},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	qp := quotedprintable.NewWriter(text)
	if _, err := qp.Write([]byte(body)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBase64Lines(w io.Writer, data []byte) error {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(lineLen, len(encoded))
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

// smtpTransport speaks SMTP over implicit TLS, STARTTLS or plain TCP.
type smtpTransport struct {
	host     string
	port     int
	security string
	username string
	password string
	timeout  time.Duration
}

func (s *smtpTransport) Send(ctx context.Context, from string, to []string, msg []byte) error {
	if len(to) == 0 {
		return errors.New("no recipients")
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.security == SecuritySTARTTLS {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp server does not support STARTTLS")
		}
		if err := c.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}

	if s.password != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp server does not support AUTH")
		}
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("smtp write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp finish message: %w", err)
	}
	return c.Quit()
}

func (s *smtpTransport) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	nd := &net.Dialer{Timeout: s.timeout}

	if s.security == SecuritySSL {
		td := &tls.Dialer{NetDialer: nd, Config: &tls.Config{ServerName: s.host}}
		conn, err := td.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("dial smtp %s over tls: %w", addr, err)
		}
		return conn, nil
	}

	conn, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	return conn, nil
}
