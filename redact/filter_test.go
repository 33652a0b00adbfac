package redact

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestFilter_MaskTypes(t *testing.T) {
	f := MustNew()

	tests := []struct {
		name  string
		in    string
		want  string
	}{
		{"email", "contact me at alice@example.com please", "contact me at [REDACTED:email] please"},
		{"phone", "call 010-1234-5678 now", "call [REDACTED:phone] now"},
		{"national id", "id 900101-1234567 on file", "id [REDACTED:national_id] on file"},
		{"ipv4", "host is 192.168.0.12 internal", "host is [REDACTED:ipv4] internal"},
		{"date", "met on 2024-03-15 at noon", "met on [REDACTED:date] at noon"},
		{"clean", "nothing sensitive here", "nothing sensitive here"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Mask(tt.in))
		})
	}
}

func TestFilter_MaskMultiple(t *testing.T) {
	f := MustNew()
	in := "alice@example.com met bob@example.org on 2024-01-02"
	got := f.Mask(in)
	assert.Equal(t, "[REDACTED:email] met [REDACTED:email] on [REDACTED:date]", got)
}

func TestFilter_Idempotent(t *testing.T) {
	f := MustNew()
	once := f.Mask("mail alice@example.com, ip 10.0.0.1, born 1990-01-01")
	twice := f.Mask(once)
	assert.Equal(t, once, twice)
}

func TestFilter_Detect(t *testing.T) {
	f := MustNew()
	matches := f.Detect("alice@example.com and 10.0.0.1")
	require.Len(t, matches, 2)
	assert.Equal(t, "email", matches[0].Type)
	assert.Equal(t, "alice@example.com", matches[0].Value)
	assert.Equal(t, 0, matches[0].Position)
	assert.Equal(t, "ipv4", matches[1].Type)

	// Already-masked content reports nothing.
	assert.Empty(t, f.Detect(f.Mask("alice@example.com")))
}

func TestNew_RejectsBadPatterns(t *testing.T) {
	_, err := New(Pattern{Name: "", Regex: regexp.MustCompile(`x`)})
	assert.Error(t, err)

	_, err = New(
		Pattern{Name: "a", Regex: regexp.MustCompile(`x`)},
		Pattern{Name: "a", Regex: regexp.MustCompile(`y`)},
	)
	assert.Error(t, err)

	// A rule matching its own placeholder would loop forever in spirit.
	_, err = New(Pattern{Name: "greedy", Regex: regexp.MustCompile(`\[RED.*\]`)})
	assert.Error(t, err)
}

func TestFilter_MaskAll(t *testing.T) {
	f := MustNew()
	out := f.MaskAll([]string{"alice@example.com", "clean"})
	assert.Equal(t, []string{"[REDACTED:email]", "clean"}, out)
}

// Masking any input twice must equal masking it once, and the mask must
// remove every generated PII value.
func TestProperty_Filter_MaskIdempotent(t *testing.T) {
	f := MustNew()

	rapid.Check(t, func(rt *rapid.T) {
		emailUser := rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "emailUser")
		emailDomain := rapid.StringMatching(`[a-z]{3,8}`).Draw(rt, "emailDomain")
		email := emailUser + "@" + emailDomain + ".com"

		mid := rapid.SampledFrom([]string{"1234", "5678", "9012"}).Draw(rt, "mid")
		phone := "010-" + mid + "-4321"

		words := make([]string, rapid.IntRange(1, 6).Draw(rt, "wordCount"))
		for i := range words {
			words[i] = rapid.StringMatching(`[a-zA-Z]{2,8}`).Draw(rt, fmt.Sprintf("word_%d", i))
		}
		content := strings.Join(words, " ") + " " + email + " " + phone

		once := f.Mask(content)
		assert.NotContains(t, once, email)
		assert.NotContains(t, once, phone)
		assert.Contains(t, once, "[REDACTED:email]")
		assert.Contains(t, once, "[REDACTED:phone]")

		twice := f.Mask(once)
		assert.Equal(t, once, twice, "mask must be idempotent")
	})
}
