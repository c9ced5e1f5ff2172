package mail

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/kursadbilgin/donation-engine/internal/domain"
)

type dripCopy struct {
	subject string
	lead    string
	body    string
}

var dripMessages = map[domain.DripStep]dripCopy{
	domain.DripStepFirst: {
		subject: "What we have been working on",
		lead:    "Thank you for joining our newsletter.",
		body:    "Over the last few days we have published new projects and events. Take a look at what our volunteers are doing and how you can get involved.",
	},
	domain.DripStepSecond: {
		subject: "You can help us grow",
		lead:    "It has been a few days since you signed up.",
		body:    "Every donation funds our projects directly. If our work matters to you, consider supporting it with a one-off donation.",
	},
}

// DripMessage builds the campaign email a subscriber receives on entering step.
func DripMessage(step domain.DripStep, to string, siteURL string) (Message, error) {
	content, ok := dripMessages[step]
	if !ok {
		return Message{}, fmt.Errorf("%w: no drip message for step %d", domain.ErrValidation, step)
	}

	siteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
	unsubscribeURL := siteURL + "/newsletter/unsubscribe?email=" + url.QueryEscape(strings.TrimSpace(to))

	text := fmt.Sprintf("%s\n\n%s\n\n%s\n\nUnsubscribe: %s\n", content.lead, content.body, siteURL, unsubscribeURL)
	htmlBody := fmt.Sprintf(
		`<p>%s</p><p>%s</p><p><a href="%s">%s</a></p><p style="font-size:12px"><a href="%s">Unsubscribe</a></p>`,
		html.EscapeString(content.lead),
		html.EscapeString(content.body),
		html.EscapeString(siteURL),
		html.EscapeString(siteURL),
		html.EscapeString(unsubscribeURL),
	)

	return Message{To: to, Subject: content.subject, Text: text, HTML: htmlBody}, nil
}

// ThankYouMessage builds the receipt sent after a donation completes.
func ThankYouMessage(donation domain.Donation) Message {
	amount := domain.FormatAmount(donation.Amount, donation.Currency)
	text := fmt.Sprintf(
		"Thank you for your donation of %s.\n\nPayment reference: %s\n",
		amount,
		donation.SessionID,
	)
	htmlBody := fmt.Sprintf(
		`<p>Thank you for your donation of <strong>%s</strong>.</p><p>Payment reference: %s</p>`,
		html.EscapeString(amount),
		html.EscapeString(donation.SessionID),
	)

	return Message{
		To:      donation.Email,
		Subject: "Thank you for your donation",
		Text:    text,
		HTML:    htmlBody,
	}
}
