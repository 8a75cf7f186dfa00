// Package template renders per-stage email subjects and bodies.
//
// Placeholders use {{key}} syntax and resolve from a string map. Missing
// keys render as the empty string; that is a contract callers rely on, not
// an accident.
package template

import (
	"context"
	"regexp"
	"strings"

	"coldreach/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Substitute resolves {{key}} placeholders in text from data.
func Substitute(text string, data map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		return data[key]
	})
}

// Variables lists the placeholder keys used in a template text, for
// validating operator templates against available lead columns.
func Variables(text string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		key := strings.TrimSpace(m[1])
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	return keys
}

// Overrides is the subset of the store the renderer needs.
type Overrides interface {
	Template(ctx context.Context, stage models.Stage) (*models.Template, error)
}

type Renderer struct {
	Overrides Overrides // nil = built-in defaults only
}

// Render produces the subject and body for a stage. Operator-saved templates
// take precedence over the built-in defaults.
func (r *Renderer) Render(ctx context.Context, stage models.Stage, data map[string]string) (string, string, error) {
	subject, body := defaultTemplate(stage)

	if r.Overrides != nil {
		saved, err := r.Overrides.Template(ctx, stage)
		if err != nil {
			return "", "", err
		}
		if saved != nil {
			subject, body = saved.Subject, saved.Body
		}
	}

	return Substitute(subject, data), Substitute(body, data), nil
}

func defaultTemplate(stage models.Stage) (subject, body string) {
	switch stage {
	case models.StageInitial:
		return "Quick question, {{first_name}}",
			"Hi {{first_name}},\n\n" +
				"I came across {{company}} and wanted to reach out. We help teams " +
				"like yours save hours every week on outreach.\n\n" +
				"Would you be open to a short call this week?\n\n" +
				"Best regards"

	case models.StageFollowup1:
		return "Following up, {{first_name}}",
			"Hi {{first_name}},\n\n" +
				"Just floating this back to the top of your inbox in case it got " +
				"buried. Still happy to show you what this could look like for " +
				"{{company}}.\n\n" +
				"Best regards"

	case models.StageFollowup2:
		return "Last note from me, {{first_name}}",
			"Hi {{first_name}},\n\n" +
				"I won't keep nudging - this is my last note. If the timing is ever " +
				"right for {{company}}, just reply to this email.\n\n" +
				"Best regards"

	default: // reply-autoresponse
		return "Let's schedule a call!",
			"Hi {{first_name}},\n\n" +
				"Thanks for your reply! I'd love to connect with you.\n\n" +
				"Please book a time that works best for you here:\n" +
				"{{calendar_link}}\n\n" +
				"Looking forward to our conversation!\n\n" +
				"Best regards"
	}
}
