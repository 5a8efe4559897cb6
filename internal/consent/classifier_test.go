package consent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/docchat/internal/canonical"
)

func pad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return s + strings.Repeat(" lorem", (n-len(s))/6+1)[:n-len(s)]
}

func TestShortAnswerNeedsConsent(t *testing.T) {
	text := strings.Repeat("a", 50)
	d := Classify(text, nil)
	assert.Equal(t, TierLow, d.Tier)
	assert.True(t, d.NeedsConsent)
}

func TestLongPositiveAnswerIsTrusted(t *testing.T) {
	text := pad("The budget allocation for the road is 40 crore.", 400)
	assert.Len(t, text, 400)
	d := Classify(text, nil)
	assert.Equal(t, TierHigh, d.Tier)
	assert.True(t, d.HasPositive)
	assert.False(t, d.NeedsConsent)
}

func TestNegativePhraseNeedsConsentAtAnyLength(t *testing.T) {
	for _, n := range []int{40, 200, 600} {
		text := pad("This detail was not found in the documents.", n)
		assert.True(t, NeedsConsent(text, nil), "length %d", n)
	}
}

func TestNegativeOverridesPositive(t *testing.T) {
	text := pad("According to the documents there is no information about the helipad count.", 400)
	d := Classify(text, nil)
	assert.True(t, d.HasPositive)
	assert.True(t, d.HasNegative)
	assert.Equal(t, TierLow, d.Tier)
	assert.True(t, d.NeedsConsent)
}

func TestDeflectionOverridesPositive(t *testing.T) {
	text := pad("The project includes roads, but the documents primarily focus on bridges.", 400)
	d := Classify(text, nil)
	assert.Equal(t, TierLow, d.Tier)
	assert.True(t, d.NeedsConsent)
}

func TestCitationsAlwaysTrusted(t *testing.T) {
	cites := []canonical.Citation{canonical.DocumentCitation("Assam Road Project.pdf")}
	for _, text := range []string{
		"short",
		"not found in the documents",
		"the documents do not provide this",
	} {
		d := Classify(text, cites)
		assert.False(t, d.NeedsConsent, text)
		assert.Equal(t, TierHigh, d.Tier)
	}
}

func TestMediumTier(t *testing.T) {
	neutral := pad("The road connects two districts and passes several villages.", 200)
	d := Classify(neutral, nil)
	assert.Equal(t, TierMedium, d.Tier)
	assert.False(t, d.NeedsConsent)
}

func TestKeywordOverlap(t *testing.T) {
	// "CM" implies a chief minister question; the answer never names one.
	text := pad("The CM visited the site during the inauguration of the road.", 400)
	d := Classify(text, nil)
	assert.Equal(t, []string{"chief minister"}, d.Keywords)
	assert.Equal(t, TierLow, d.Tier)
	assert.True(t, d.NeedsConsent)

	text = pad("The Chief Minister visited the site during the inauguration.", 400)
	d = Classify(text, nil)
	assert.Equal(t, TierHigh, d.Tier)
	assert.False(t, d.NeedsConsent)
}

func TestKeywordTriggersAreCaseSensitive(t *testing.T) {
	assert.Empty(t, questionKeywords("BUDGET and Timeline"))
	assert.Equal(t, []string{"thought", "opinion", "budget"}, questionKeywords("opinion on the budget"))
}

func TestGenericNonAnswer(t *testing.T) {
	text := pad("The documents provided do not contain the tender dates. The project includes roads.", 400)
	d := Classify(text, nil)
	assert.True(t, d.HasNegative)
	assert.Equal(t, TierLow, d.Tier)
	assert.True(t, d.NeedsConsent)
}

func TestCaseInsensitivePhrases(t *testing.T) {
	assert.True(t, NeedsConsent(pad("NOT FOUND IN THE DOCUMENTS", 400), nil))
}
