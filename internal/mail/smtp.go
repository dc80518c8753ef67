package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"
)

// SMTPSender для локальной разработки (mailhog, mailpit и т.п.).
type SMTPSender struct {
	addr     string
	host     string
	username string
	password string

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(host string, port int, username, password string) *SMTPSender {
	return &SMTPSender{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		username: username,
		password: password,
		sendMail: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := BuildMIME(msg)
	if err != nil {
		return "", err
	}

	// без логина отправляем без AUTH
	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if err := s.sendMail(s.addr, auth, msg.From, []string{msg.To}, raw); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}
	return fmt.Sprintf("smtp-%d", time.Now().UnixNano()), nil
}
