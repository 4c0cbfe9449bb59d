package services

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"log"
	"net/smtp"
	"strings"

	"github.com/domodwyer/mailyak/v3"
	pubnub "github.com/pubnub/go/v7"

	"raffle-system/config"
	"raffle-system/internal/status"
	"raffle-system/models"
)

// Notifier delivers purchase confirmations and winner certificates, and
// publishes completed purchases to the realtime feed.
type Notifier interface {
	SendConfirmation(p *models.Purchase) error
	SendCertificate(toEmail, toName, ticketImage string) error
	PublishPurchase(p *models.Purchase)
}

const confirmationTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Thank you, {{.Name}}!</h2>
  <p>Your {{.RaffleName}} raffle purchase is confirmed.</p>
  <p><strong>Your ticket number{{if gt (len .Tickets) 1}}s{{end}}:</strong></p>
  <ul>
  {{range .Tickets}}<li style="font-family: monospace; font-size: 1.2em;">{{.}}</li>
  {{end}}</ul>
  <p>Amount paid: ${{.Amount}}</p>
  <p>{{.EventDetails}}</p>
  <p>Save this email as your receipt. The drawing will reference these ticket numbers.</p>
</body>
</html>`

const certificateTemplate = `<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2>Congratulations, {{.Name}}!</h2>
  <p>Your ticket won the {{.RaffleName}} raffle. Your winner certificate is attached.</p>
  <p>{{.EventDetails}}</p>
</body>
</html>`

// EmailNotifier sends over plain SMTP and publishes to PubNub when keys are
// configured. Both channels are optional; missing configuration downgrades
// to a log line rather than an error at construction time.
type EmailNotifier struct {
	cfg          *config.Config
	confirmation *template.Template
	certificate  *template.Template
	pn           *pubnub.PubNub
}

func NewEmailNotifier(cfg *config.Config) *EmailNotifier {
	n := &EmailNotifier{
		cfg:          cfg,
		confirmation: template.Must(template.New("confirmation").Parse(confirmationTemplate)),
		certificate:  template.Must(template.New("certificate").Parse(certificateTemplate)),
	}

	if cfg.PubNubPublishKey != "" && cfg.PubNubSubscribeKey != "" {
		pnconfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUUID))
		pnconfig.PublishKey = cfg.PubNubPublishKey
		pnconfig.SubscribeKey = cfg.PubNubSubscribeKey
		n.pn = pubnub.NewPubNub(pnconfig)
	} else {
		log.Println("PubNub keys not set, realtime purchase feed disabled")
	}

	return n
}

func (n *EmailNotifier) configured() bool {
	return n.cfg.SMTPUser != "" && n.cfg.SMTPPassword != ""
}

func (n *EmailNotifier) newMail() *mailyak.MailYak {
	addr := fmt.Sprintf("%s:%s", n.cfg.SMTPHost, n.cfg.SMTPPort)
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPassword, n.cfg.SMTPHost)
	mail := mailyak.New(addr, auth)

	from := n.cfg.EmailFrom
	if from == "" {
		from = n.cfg.SMTPUser
	}
	mail.From(from)
	mail.FromName(n.cfg.EmailFromName)
	return mail
}

// SendConfirmation emails the buyer their ticket numbers.
func (n *EmailNotifier) SendConfirmation(p *models.Purchase) error {
	if !n.configured() {
		return fmt.Errorf("SendConfirmation: SMTP credentials not set: %w", status.ErrNotificationFailed)
	}

	var body bytes.Buffer
	err := n.confirmation.Execute(&body, map[string]any{
		"Name":         p.Name,
		"RaffleName":   n.cfg.RaffleName,
		"Tickets":      p.TicketNumbers,
		"Amount":       fmt.Sprintf("%.2f", float64(p.Amount)/100),
		"EventDetails": n.cfg.EventDetails,
	})
	if err != nil {
		return fmt.Errorf("SendConfirmation: render: %v: %w", err, status.ErrNotificationFailed)
	}

	mail := n.newMail()
	mail.To(p.Email)
	mail.Subject(fmt.Sprintf("Your %s Raffle Tickets: %s", n.cfg.RaffleName, strings.Join(p.TicketNumbers, ", ")))
	mail.HTML().Set(body.String())

	if err := mail.Send(); err != nil {
		return fmt.Errorf("SendConfirmation: %s: %v: %w", p.ID, err, status.ErrNotificationFailed)
	}
	return nil
}

// SendCertificate emails a winner their certificate image. ticketImage is a
// base64-encoded PNG, optionally carrying a data-URL prefix.
func (n *EmailNotifier) SendCertificate(toEmail, toName, ticketImage string) error {
	if !n.configured() {
		return fmt.Errorf("SendCertificate: SMTP credentials not set: %w", status.ErrNotificationFailed)
	}

	raw := ticketImage
	if idx := strings.Index(raw, ","); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+1:]
	}
	img, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("SendCertificate: decode image: %v: %w", err, status.ErrValidation)
	}

	var body bytes.Buffer
	err = n.certificate.Execute(&body, map[string]any{
		"Name":         toName,
		"RaffleName":   n.cfg.RaffleName,
		"EventDetails": n.cfg.EventDetails,
	})
	if err != nil {
		return fmt.Errorf("SendCertificate: render: %v: %w", err, status.ErrNotificationFailed)
	}

	mail := n.newMail()
	mail.To(toEmail)
	mail.Subject(fmt.Sprintf("%s Raffle Winner Certificate", n.cfg.RaffleName))
	mail.HTML().Set(body.String())
	mail.Attach("certificate.png", bytes.NewReader(img))

	if err := mail.Send(); err != nil {
		return fmt.Errorf("SendCertificate: %s: %v: %w", toEmail, err, status.ErrNotificationFailed)
	}
	return nil
}

// PublishPurchase pushes a completed purchase onto the realtime channel.
// Failures are logged and swallowed; the feed is advisory.
func (n *EmailNotifier) PublishPurchase(p *models.Purchase) {
	if n.pn == nil {
		return
	}

	_, _, err := n.pn.Publish().
		Channel(n.cfg.PubNubChannel).
		Message(map[string]any{
			"type":        "purchase_completed",
			"purchaseId":  p.ID,
			"provider":    p.Provider,
			"ticketCount": p.TicketCount,
		}).
		Execute()
	if err != nil {
		log.Printf("PublishPurchase: %s: %v", p.ID, err)
	}
}
