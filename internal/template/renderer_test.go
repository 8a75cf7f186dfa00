package template

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldreach/internal/models"
)

func TestSubstitute(t *testing.T) {
	data := map[string]string{
		"first_name": "Ada",
		"company":    "Initech",
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "no placeholders", "no placeholders"},
		{"simple", "Hi {{first_name}}", "Hi Ada"},
		{"multiple", "{{first_name}} at {{company}}", "Ada at Initech"},
		{"whitespace", "Hi {{ first_name }}", "Hi Ada"},
		{"missing key is empty", "Hi {{nickname}}!", "Hi !"},
		{"repeated", "{{company}}, {{company}}", "Initech, Initech"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.in, data))
		})
	}
}

func TestVariables(t *testing.T) {
	vars := Variables("Hi {{first_name}}, {{ company }} and {{first_name}} again")
	assert.Equal(t, []string{"first_name", "company"}, vars)
}

type fakeOverrides struct {
	templates map[models.Stage]*models.Template
}

func (f *fakeOverrides) Template(_ context.Context, stage models.Stage) (*models.Template, error) {
	return f.templates[stage], nil
}

func TestRenderDefaults(t *testing.T) {
	r := &Renderer{}

	subject, body, err := r.Render(context.Background(), models.StageInitial, map[string]string{
		"first_name": "Ada",
		"company":    "Initech",
	})
	require.NoError(t, err)
	assert.Equal(t, "Quick question, Ada", subject)
	assert.Contains(t, body, "Initech")

	subject, body, err = r.Render(context.Background(), models.StageAutoResponse, map[string]string{
		"first_name":    "Ada",
		"calendar_link": "https://calendly.com/acme",
	})
	require.NoError(t, err)
	assert.Equal(t, "Let's schedule a call!", subject)
	assert.Contains(t, body, "https://calendly.com/acme")
}

func TestRenderPrefersOverrides(t *testing.T) {
	r := &Renderer{Overrides: &fakeOverrides{templates: map[models.Stage]*models.Template{
		models.StageFollowup1: {
			Stage:     models.StageFollowup1,
			Subject:   "Custom: {{company}}",
			Body:      "Hello {{first_name}}",
			UpdatedAt: time.Now(),
		},
	}}}

	subject, body, err := r.Render(context.Background(), models.StageFollowup1, map[string]string{
		"first_name": "Ada",
		"company":    "Initech",
	})
	require.NoError(t, err)
	assert.Equal(t, "Custom: Initech", subject)
	assert.Equal(t, "Hello Ada", body)

	// Stages without an override keep the built-in.
	subject, _, err = r.Render(context.Background(), models.StageFollowup2, map[string]string{"first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "Last note from me, Ada", subject)
}
