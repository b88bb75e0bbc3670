package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
	"stockalert/internal/templatefmt"
)

// emailTemplate is one compiled subject/body pair.
type emailTemplate struct {
	subject *template.Template
	body    *template.Template
}

// defaultEmailTemplates hold built-in wording per condition kind.
var defaultEmailTemplates = map[domain.ConditionKind]config.EmailTemplate{
	domain.KindLowStock: {
		Subject: "Low Stock Alert: {{.Product.Name}}",
		Body: `The following product is running low on stock:

{{.Product.Name}}
SKU: {{.Product.SKU}}
Current Stock: {{.Product.Quantity}}
Threshold: {{.Product.LowStockThreshold}}

Please reorder this product soon to avoid stockouts.
`,
	},
	domain.KindOutOfStock: {
		Subject: "Out of Stock Alert: {{.Product.Name}}",
		Body: `The following product is now out of stock:

{{.Product.Name}}
SKU: {{.Product.SKU}}
Current Stock: 0

Immediate action required! This product needs to be restocked urgently.
`,
	},
	domain.KindExpiry: {
		Subject: "Expiry Alert: {{.Product.Name}}",
		Body: `The following perishable product is approaching its expiry date:

{{.Product.Name}}
SKU: {{.Product.SKU}}
Expiry Date: {{date .Product.ExpiryDate}}
Days Until Expiry: {{days (index .Notification.Metadata "daysUntilExpiry")}}
Quantity: {{.Product.Quantity}}

Please take appropriate action to minimize waste.
`,
	},
	domain.KindReorder: {
		Subject: "Reorder Reminder: {{.Product.Name}}",
		Body: `It's time to reorder the following product:

{{.Product.Name}}
SKU: {{.Product.SKU}}
Current Stock: {{.Product.Quantity}}
{{with .Product.ReorderPoint}}Reorder Point: {{.}}
{{end}}{{with .Product.ReorderQuantity}}Suggested Quantity: {{.}}
{{end}}
Stock has reached the reorder point. Place an order to maintain optimal inventory levels.
`,
	},
}

// SMTPEmailNotifier renders per-kind templates and sends them over SMTP.
// Params: SMTP endpoint, optional PLAIN credentials, sender, timeout, and templates.
// Returns: EmailNotifier implementation.
type SMTPEmailNotifier struct {
	addr      string
	host      string
	from      string
	header    string
	auth      smtp.Auth
	timeout   time.Duration
	templates map[domain.ConditionKind]emailTemplate
	now       func() time.Time
}

// NewSMTPEmailNotifier compiles templates and validates sender address.
// Params: email config after defaults and clock function (nil means time.Now).
// Returns: notifier or configuration error.
func NewSMTPEmailNotifier(cfg config.EmailConfig, now func() time.Time) (*SMTPEmailNotifier, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	sender, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("parse smtp from address: %w", err)
	}
	templates, err := compileEmailTemplates(cfg.Template)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	notifier := &SMTPEmailNotifier{
		addr:      net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		host:      host,
		from:      sender.Address,
		header:    sender.String(),
		timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		templates: templates,
		now:       now,
	}
	if cfg.Username != "" {
		notifier.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return notifier, nil
}

// compileEmailTemplates overlays configured templates on built-in wording.
func compileEmailTemplates(overrides map[string]config.EmailTemplate) (map[domain.ConditionKind]emailTemplate, error) {
	merged := make(map[domain.ConditionKind]config.EmailTemplate, len(defaultEmailTemplates))
	for kind, tpl := range defaultEmailTemplates {
		merged[kind] = tpl
	}
	for name, tpl := range overrides {
		kind, err := domain.ParseConditionKind(name)
		if err != nil {
			return nil, fmt.Errorf("email template %q: %w", name, err)
		}
		current := merged[kind]
		if tpl.Subject != "" {
			current.Subject = tpl.Subject
		}
		if tpl.Body != "" {
			current.Body = tpl.Body
		}
		merged[kind] = current
	}

	compiled := make(map[domain.ConditionKind]emailTemplate, len(merged))
	for kind, tpl := range merged {
		subject, err := templatefmt.ParseNotificationTemplate("email."+string(kind)+".subject", tpl.Subject)
		if err != nil {
			return nil, err
		}
		body, err := templatefmt.ParseNotificationTemplate("email."+string(kind)+".body", tpl.Body)
		if err != nil {
			return nil, err
		}
		compiled[kind] = emailTemplate{subject: subject, body: body}
	}
	return compiled, nil
}

// SendEmail renders alert and delivers one message to all recipients.
// Params: context, recipient addresses, and alert.
// Returns: render, dial, or SMTP protocol error.
func (n *SMTPEmailNotifier) SendEmail(ctx context.Context, recipients []string, alert Alert) error {
	if len(recipients) == 0 {
		return errors.New("no email recipients")
	}
	subject, body, err := n.render(alert)
	if err != nil {
		return err
	}
	message := n.buildMessage(recipients, subject, body)

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	return n.deliver(ctx, recipients, message)
}

func (n *SMTPEmailNotifier) render(alert Alert) (string, string, error) {
	tpl, ok := n.templates[alert.Notification.Kind]
	if !ok {
		return "", "", fmt.Errorf("no email template for kind %q", alert.Notification.Kind)
	}
	subject, err := templatefmt.Render(tpl.subject, alert)
	if err != nil {
		return "", "", err
	}
	body, err := templatefmt.Render(tpl.body, alert)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), body, nil
}

// buildMessage assembles RFC 5322 headers and plain-text body.
func (n *SMTPEmailNotifier) buildMessage(recipients []string, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + n.header + "\n")
	b.WriteString("To: " + strings.Join(recipients, ", ") + "\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\n")
	b.WriteString("Date: " + n.now().UTC().Format(time.RFC1123Z) + "\n")
	b.WriteString("MIME-Version: 1.0\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\n")
	b.WriteString("\n")
	b.WriteString(body)
	return []byte(b.String())
}

// deliver runs one SMTP session honoring ctx deadline.
func (n *SMTPEmailNotifier) deliver(ctx context.Context, recipients []string, message []byte) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", n.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", n.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, n.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: n.host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if n.auth != nil {
		if err := client.Auth(n.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(n.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(message); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp finish body: %w", err)
	}
	return client.Quit()
}
