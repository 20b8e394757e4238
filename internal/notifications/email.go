package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/trydo/wts-backend/pkg/mailer"
)

const licenseSubject = "Your What The Speech License Key"

var licenseHTML = template.Must(template.New("license").Parse(`<div style="font-family: sans-serif; padding: 20px; color: #333;">
  <h2>Thank you for your purchase!</h2>
  <p>Your license key for What The Speech is below:</p>
  <div style="background: #f4f4f4; padding: 15px; margin: 20px 0; border-radius: 5px;">
    <code style="font-size: 20px; font-weight: bold; letter-spacing: 2px;">{{.LicenseKey}}</code>
  </div>
  <p>To activate, open the app, go to Settings, and enter this key.</p>
  {{- if .TempPassword}}
  <p>An account was created for {{.Email}}. Your temporary password is <code>{{.TempPassword}}</code>.</p>
  {{- end}}
  <p>Payment ID: {{.PaymentID}}</p>
  <p>- WTS By Trydo Team</p>
</div>`))

// LicenseEmail carries everything the license email renders.
type LicenseEmail struct {
	Email        string
	LicenseKey   string
	PaymentID    string
	TempPassword string
}

// ComposeLicenseEmail renders the license delivery message.
func ComposeLicenseEmail(in LicenseEmail) (mailer.Message, error) {
	var html bytes.Buffer
	if err := licenseHTML.Execute(&html, in); err != nil {
		return mailer.Message{}, fmt.Errorf("render license email: %w", err)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Thank you for your purchase!\n\nYour license key: %s\n\n", in.LicenseKey)
	text.WriteString("To activate, open the app, go to Settings, and enter this key.\n")
	if in.TempPassword != "" {
		fmt.Fprintf(&text, "Temporary password for %s: %s\n", in.Email, in.TempPassword)
	}
	fmt.Fprintf(&text, "Payment ID: %s\n\n- WTS By Trydo Team\n", in.PaymentID)

	return mailer.Message{
		To:      in.Email,
		Subject: licenseSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
