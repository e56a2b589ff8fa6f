package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCommentText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"Valid", "nice clip", false},
		{"Empty", "", true},
		{"Whitespace Only", "   ", true},
		{"Exactly Max", strings.Repeat("a", MaxCommentLen), false},
		{"Too Long", strings.Repeat("a", MaxCommentLen+1), true},
		{"Multibyte At Max", strings.Repeat("é", MaxCommentLen), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCommentText(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePostFields(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidatePostTitle("Sunset run"))
	assert.Error(t, ValidatePostTitle("ab"))
	assert.Error(t, ValidatePostTitle(strings.Repeat("t", MaxTitleLen+1)))

	assert.NoError(t, ValidatePostDescription(""))
	assert.Error(t, ValidatePostDescription(strings.Repeat("d", MaxDescriptionLen+1)))
}

func TestValidateVideoURL(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{name: "https", url: "https://cdn.example.com/v/1.mp4", ok: true},
		{name: "gcs", url: "gs://reelhub-media/v/1.mp4", ok: true},
		{name: "empty", url: "", ok: false},
		{name: "relative", url: "/v/1.mp4", ok: false},
		{name: "ftp", url: "ftp://example.com/v.mp4", ok: false},
		{name: "no host", url: "https:///v.mp4", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateVideoURL(tc.url)
			if tc.ok && err != nil {
				t.Fatalf("expected valid url, got error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("expected invalid url, got nil error")
			}
		})
	}

	assert.NoError(t, ValidateOptionalURL("thumbnail_url", ""))
	assert.Error(t, ValidateOptionalURL("thumbnail_url", "not a url"))
}

func TestValidateUserName(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateUserName("clip_master"))
	assert.Error(t, ValidateUserName("ab"))
	assert.Error(t, ValidateUserName("has space"))
	assert.Error(t, ValidateUserName("Admin"))
	assert.Error(t, ValidateUserName(strings.Repeat("u", MaxUserNameLen+1)))
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateEmail("viewer@example.com"))
	assert.Error(t, ValidateEmail("viewer"))
	assert.Error(t, ValidateEmail("Viewer <viewer@example.com>"))
}
