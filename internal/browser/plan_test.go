package browser

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formweaver/formweaver/api/schemas"
)

func field(name, typ string) schemas.FieldDescriptor {
	return schemas.FieldDescriptor{Name: name, Type: typ}
}

func patternRule(pattern, suggest string) schemas.MappingRule {
	return schemas.MappingRule{
		Field:   schemas.PatternMatcher(regexp.MustCompile("(?i)" + pattern)),
		Suggest: suggest,
	}
}

func TestNormalizeRow(t *testing.T) {
	tests := []struct {
		name    string
		row     any
		want    map[string]string
		wantErr bool
	}{
		{
			name: "string map passes through",
			row:  map[string]string{"email": "a@b.c"},
			want: map[string]string{"email": "a@b.c"},
		},
		{
			name: "any map is stringified",
			row:  map[string]any{"age": 41, "name": "Ada"},
			want: map[string]string{"age": "41", "name": "Ada"},
		},
		{
			name: "struct rows flatten through json tags",
			row: struct {
				Email string `json:"email"`
			}{Email: "x@y.z"},
			want: map[string]string{"email": "x@y.z"},
		},
		{name: "nil row fails", row: nil, wantErr: true},
		{name: "scalar row fails", row: 42, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeRow(tc.row)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPlanSubmissionFirstFormWins(t *testing.T) {
	forms := []schemas.FormDescriptor{
		{ID: "newsletter", Fields: []schemas.FieldDescriptor{field("email", "email")}},
		{ID: "contact", Fields: []schemas.FieldDescriptor{field("email", "email"), field("message", "textarea")}},
	}
	rules := []schemas.MappingRule{patternRule("email", "userEmail")}
	row := map[string]string{"userEmail": "a@b.c"}

	plan, err := PlanSubmission(forms, rules, row)
	require.NoError(t, err)
	assert.Equal(t, "newsletter", plan.Form.ID, "the first fillable form wins")
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, "a@b.c", plan.Actions[0].Value)
}

func TestPlanSubmissionSkipsUnfillableForms(t *testing.T) {
	forms := []schemas.FormDescriptor{
		{ID: "search", Fields: []schemas.FieldDescriptor{field("q", "search")}},
		{ID: "signup", Fields: []schemas.FieldDescriptor{field("email", "email")}},
	}
	rules := []schemas.MappingRule{patternRule("email", "userEmail")}
	row := map[string]string{"userEmail": "a@b.c"}

	plan, err := PlanSubmission(forms, rules, row)
	require.NoError(t, err)
	assert.Equal(t, "signup", plan.Form.ID)
}

func TestPlanSubmissionMappedColumnMissingFromRow(t *testing.T) {
	forms := []schemas.FormDescriptor{
		{ID: "signup", Fields: []schemas.FieldDescriptor{field("email", "email")}},
	}
	rules := []schemas.MappingRule{patternRule("email", "userEmail")}

	// The rule matches, but the row has no userEmail column.
	_, err := PlanSubmission(forms, rules, map[string]string{"other": "x"})
	assert.ErrorIs(t, err, ErrNoFillableForm)
}

func TestPlanSubmissionNoForms(t *testing.T) {
	_, err := PlanSubmission(nil, []schemas.MappingRule{patternRule("email", "e")}, map[string]string{"e": "v"})
	assert.ErrorIs(t, err, ErrNoFillableForm)
}

func TestSelectorForPrefersID(t *testing.T) {
	assert.Equal(t, `[id="user-email"]`, selectorFor(schemas.FieldDescriptor{ID: "user-email", Name: "email"}))
	assert.Equal(t, `[name="email"]`, selectorFor(schemas.FieldDescriptor{Name: "email"}))
}

func TestLooksLikeCaptcha(t *testing.T) {
	assert.True(t, looksLikeCaptcha(`<div class="g-recaptcha" data-sitekey="x"></div>`))
	assert.True(t, looksLikeCaptcha(`<iframe src="https://hcaptcha.com/widget"></iframe>`))
	assert.True(t, looksLikeCaptcha(`<div class="cf-turnstile"></div>`))
	assert.True(t, looksLikeCaptcha(`<script src="https://www.google.com/recaptcha/api.js"></script>`))
	assert.False(t, looksLikeCaptcha(`<form><input name="email"></form>`))

	// Pages that merely talk about CAPTCHAs are not CAPTCHA walls.
	assert.False(t, looksLikeCaptcha(`<p>What is a CAPTCHA and why do sites use captchas?</p>`))
	assert.False(t, looksLikeCaptcha(`<script src="/blog/assets/captcha-history.js"></script>`))
}

func TestToSnapshotDropsUnaddressableControls(t *testing.T) {
	entries := []controlEntry{
		{Name: "email", Type: "email", X: 10, Y: 20, W: 200, H: 30},
		{Type: "text", X: 10, Y: 60, W: 200, H: 30},
		{ID: "note", Type: "textarea", X: 10, Y: 100, W: 200, H: 80},
	}
	snap := toSnapshot(entries)
	require.Len(t, snap.Controls, 2)
	assert.Equal(t, "email", snap.Controls[0].Field.Name)
	assert.Equal(t, "note", snap.Controls[1].Field.ID)
	assert.Equal(t, 30.0, snap.Controls[0].Box.Height)
}

func TestStaticProfiles(t *testing.T) {
	src := StaticProfiles{"p1": {Name: "p1", URL: "https://example.test/form"}}

	p, err := src.ProfileFor("p1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/form", p.URL)

	_, err = src.ProfileFor("missing")
	assert.Error(t, err)
}
