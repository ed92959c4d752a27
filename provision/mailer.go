package provision

import (
	"fmt"
	"net/url"

	gomail "gopkg.in/gomail.v2"
)

// Mailer emails redemption tokens for renewal requests over SMTP.
type Mailer struct {
	dialer    *gomail.Dialer
	from      string
	serverURL string
}

var _ Notifier = (*Mailer)(nil)

// NewMailer creates a Mailer. serverURL is the public base URL of the
// daemon, embedded in the redemption link.
func NewMailer(host string, port int, username, password, from, serverURL string) *Mailer {
	return &Mailer{
		dialer:    gomail.NewDialer(host, port, username, password),
		from:      from,
		serverURL: serverURL,
	}
}

// RenewalNotice sends the one-time redemption link for a pending client
// renewal.
func (m *Mailer) RenewalNotice(name, email, tokenString string) error {
	return m.send(email, "OpenVPN Config Renewal",
		clientRenewalBody(m.serverURL, name, tokenString))
}

// ServerRenewalNotice sends the redemption token for a pending server
// renewal. The server bundle is retrieved with the token at
// POST /server/config, not through the client redemption page, so the
// message carries the raw token instead of a page link.
func (m *Mailer) ServerRenewalNotice(email, tokenString string) error {
	return m.send(email, "OpenVPN Server Config Renewal",
		serverRenewalBody(m.serverURL, tokenString))
}

func (m *Mailer) send(email, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("sending renewal notice to %s: %w", email, err)
	}
	return nil
}

func clientRenewalBody(serverURL, name, tokenString string) string {
	link := fmt.Sprintf("%s/redeem_client_config.html?clientName=%s&token=%s",
		serverURL, url.QueryEscape(name), url.QueryEscape(tokenString))
	return fmt.Sprintf(
		"Your OpenVPN config will expire soon.<br>"+
			"Warning: you can only use the following url once.<br>"+
			"Please connect to the VPN and then visit <a href='%s'>%s</a> "+
			"to renew your OpenVPN config for %s.<br>"+
			"This url is valid for one hour.",
		link, serverURL, name)
}

func serverRenewalBody(serverURL, tokenString string) string {
	return fmt.Sprintf(
		"The OpenVPN server config will expire soon.<br>"+
			"A renewal request is pending. Retrieve the new server bundle by "+
			"posting the token below to %s/server/config:<br>"+
			"<pre>%s</pre>"+
			"Warning: the token redeems the bundle once and is valid for one hour.",
		serverURL, tokenString)
}
