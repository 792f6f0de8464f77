package notifier

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"qd-market-sentry/pkg/types"
)

// notifyEmail SMTP发送，正文为纯文本+HTML双格式
// 465端口或显式开启SSL时走隐式TLS，否则按配置使用STARTTLS
func (d *Dispatcher) notifyEmail(targets *types.ChannelTargets, rendered *types.RenderedMessage) (bool, string) {
	to := strings.TrimSpace(targets.Email)
	if to == "" {
		return false, "missing_email_target"
	}
	smtpCfg := d.cfg.SMTP
	if smtpCfg.Host == "" {
		return false, "missing_SMTP_HOST"
	}
	if smtpCfg.From == "" {
		return false, "missing_SMTP_FROM"
	}

	msg := buildMIMEMessage(smtpCfg.From, to, rendered)
	addr := fmt.Sprintf("%s:%d", smtpCfg.Host, smtpCfg.Port)

	var auth smtp.Auth
	if smtpCfg.Username != "" {
		auth = smtp.PlainAuth("", smtpCfg.Username, smtpCfg.Password, smtpCfg.Host)
	}

	if smtpCfg.UseSSL || smtpCfg.Port == 465 {
		if err := sendImplicitTLS(addr, smtpCfg.Host, auth, smtpCfg.From, to, msg); err != nil {
			return false, err.Error()
		}
		return true, ""
	}

	client, err := smtp.Dial(addr)
	if err != nil {
		return false, err.Error()
	}
	defer client.Close()

	if smtpCfg.UseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: smtpCfg.Host}); err != nil {
			return false, "starttls_failed:" + err.Error()
		}
	}
	if err := submitMessage(client, auth, smtpCfg.From, to, msg); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// sendImplicitTLS 隐式TLS连接，常见于465端口
func sendImplicitTLS(addr, host string, auth smtp.Auth, from, to string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()
	return submitMessage(client, auth, from, to, msg)
}

func submitMessage(client *smtp.Client, auth smtp.Auth, from, to string, msg []byte) error {
	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp_auth_failed: %w", err)
			}
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildMIMEMessage 组装multipart/alternative邮件
func buildMIMEMessage(from, to string, rendered *types.RenderedMessage) []byte {
	boundary := "qd-signal-boundary-9c4e1a"
	var b strings.Builder

	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", rendered.Title) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(rendered.Plain + "\r\n\r\n")

	if rendered.EmailHTML != "" {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(rendered.EmailHTML + "\r\n\r\n")
	}

	b.WriteString("--" + boundary + "--\r\n")
	return []byte(b.String())
}
