package notify

/*
Email delivery for service events. Three kinds of mail leave this package:
a startup note when the receiver comes up, an SOS on a critical processing
failure and a digest of devices that went silent. Developers get everything;
the production list only gets the offline digest.
*/

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/alitagps/tk103/cli/receiver/config"
	"github.com/alitagps/tk103/cli/receiver/queue"
	"github.com/alitagps/tk103/cli/receiver/types"
)

const (
	subjectStartup     = "Alita is waking up"
	subjectCritical    = "SOS !"
	subjectDeviceDown  = "Wanna see offline devices ?"
	subjectUnspecified = "Alita notification"
)

var templates = template.Must(template.New("mail").Parse(mailTemplates))

// Notifier consumes the event queue and turns every message into email.
// A failed delivery is logged and dropped, never retried; the queue must
// keep draining.
type Notifier struct {
	Events *queue.Events
	Mail   config.Mail
}

func (n *Notifier) Run(ctx context.Context) {
	log.Info("Notification service started")
	for {
		msg, err := n.Events.Take(ctx)
		if err != nil {
			log.Info("Notification service stopped")
			return
		}
		n.deliver(msg)
	}
}

func (n *Notifier) deliver(msg types.Message) {
	recipients := n.recipients(msg.Type)
	if len(recipients) == 0 {
		log.WithField("type", msg.Type).Debug("No enabled recipients, dropping message")
		return
	}

	subject, body, err := Render(msg)
	if err != nil {
		log.WithField("err", err).Error("Failed to render notification")
		return
	}

	if err := n.send(recipients, subject, body); err != nil {
		log.WithField("err", err).Error("Failed to deliver notification")
		return
	}
	log.WithFields(log.Fields{"subject": subject, "to": recipients}).Info("Notification delivered")
}

// recipients picks the mailing lists for an event kind. Developers receive
// every kind; the production list only sees offline-device digests.
func (n *Notifier) recipients(kind types.MessageType) []string {
	var to []string
	if n.Mail.DevsEnable {
		to = append(to, n.Mail.Devs...)
	}
	if n.Mail.ProductionEnable && kind == types.DeviceDown {
		to = append(to, n.Mail.Production...)
	}
	return to
}

func (n *Notifier) send(to []string, subject, htmlBody string) error {
	headers := []string{
		"From: " + sanitizeHeader(n.Mail.Sender),
		"To: " + sanitizeHeader(strings.Join(to, ", ")),
		"Subject: " + sanitizeHeader(subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
		"",
		htmlBody,
	}
	body := []byte(strings.Join(headers, "\r\n"))

	addr := n.Mail.Host + ":" + n.Mail.Port
	auth := smtp.PlainAuth("", n.Mail.SenderID, n.Mail.SenderPasswd, n.Mail.Host)
	return smtp.SendMail(addr, auth, n.Mail.Sender, to, body)
}

// Render produces the subject line and HTML body for a message.
func Render(msg types.Message) (string, string, error) {
	var subject, name string
	switch msg.Type {
	case types.ServerStartup:
		subject, name = subjectStartup, "startup"
	case types.CriticalServerFailure:
		subject, name = subjectCritical, "critical"
	case types.DeviceDown:
		subject, name = subjectDeviceDown, "device_down"
	default:
		subject, name = subjectUnspecified, "generic"
	}

	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, msg); err != nil {
		return "", "", fmt.Errorf("failed to render %s mail: %v", name, err)
	}
	return subject, body.String(), nil
}

// Header values must never carry CRLF.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return strings.ReplaceAll(s, "\n", "")
}

const mailTemplates = `
{{define "startup"}}
<html><body>
<h3>Receiver is up</h3>
<p>Listening on <b>{{.ServerAddr}}</b>, primary store at <b>{{.DBAddr}}</b>.</p>
<p><small>{{.Timestamp.Format "2006-01-02 15:04:05"}}</small></p>
</body></html>
{{end}}

{{define "critical"}}
<html><body>
<h3>Critical failure while processing requests</h3>
<p>{{.Text}}</p>
<p><small>{{.Timestamp.Format "2006-01-02 15:04:05"}}</small></p>
</body></html>
{{end}}

{{define "device_down"}}
<html><body>
<h3>Devices that stopped reporting</h3>
<table border="1" cellpadding="4">
<tr><th>Plate</th><th>Owner</th><th>IMEI</th><th>SIM</th></tr>
{{range .Vehicles}}<tr><td>{{.Plate}}</td><td>{{.Owner}}</td><td>{{.IMEI}}</td><td>{{.SimNumber}}</td></tr>
{{end}}</table>
<p><small>{{.Timestamp.Format "2006-01-02 15:04:05"}}</small></p>
</body></html>
{{end}}

{{define "generic"}}
<html><body><p>{{.Text}}</p></body></html>
{{end}}
`
