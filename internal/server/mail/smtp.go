package mail

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dkravets/backoffice/internal/logging"
	gomail "github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var subjects = map[string]string{
	TemplateVerification: "Confirm your registration",
	TemplateRoleChange:   "Confirm the role change",
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPDispatcher renders embedded HTML templates and delivers them over
// SMTP from a background queue.
type SMTPDispatcher struct {
	client    *gomail.Client
	from      string
	templates *template.Template
	log       logging.Logger
	queue     *queue
}

// NewSMTPDispatcher builds a dispatcher for the given SMTP settings.
func NewSMTPDispatcher(cfg SMTPConfig, log logging.Logger) (*SMTPDispatcher, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(10 * time.Second),
	}
	if cfg.User != "" && cfg.Password != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}

	from := cfg.From
	if from == "" {
		from = cfg.User
	}

	d := &SMTPDispatcher{
		client:    client,
		from:      from,
		templates: templates,
		log:       log,
	}
	d.queue = newQueue(64, d.send)

	return d, nil
}

// Send queues a message for delivery and returns immediately.
func (d *SMTPDispatcher) Send(templateName, recipient string, params Params) {
	d.queue.enqueue(message{template: templateName, recipient: recipient, params: params})
}

// Close drains the queue and stops the delivery goroutine.
func (d *SMTPDispatcher) Close() {
	d.queue.close()
}

func (d *SMTPDispatcher) send(ctx context.Context, m message) {
	var body strings.Builder
	if err := d.templates.ExecuteTemplate(&body, m.template+".html", m.params); err != nil {
		d.log.Error(ctx, "mail template render failed", "template", m.template, "error", err)
		return
	}

	msg := gomail.NewMsg()
	if err := msg.From(d.from); err != nil {
		d.log.Error(ctx, "mail sender rejected", "from", d.from, "error", err)
		return
	}
	if err := msg.To(m.recipient); err != nil {
		d.log.Error(ctx, "mail recipient rejected", "error", err)
		return
	}
	msg.Subject(subjects[m.template])
	msg.SetBodyString(gomail.TypeTextHTML, body.String())

	if err := d.client.DialAndSendWithContext(ctx, msg); err != nil {
		d.log.Error(ctx, "mail delivery failed", "template", m.template, "error", err)
	}
}
