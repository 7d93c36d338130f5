package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"example.com/enrichment/internal/activity"
)

func newParser() *Parser {
	return New(DefaultConfig())
}

func TestParseMaterialsAndInstructionsSections(t *testing.T) {
	p := newParser()
	got, ok := p.Parse(Content{
		Title: "Rope Hunt",
		Body:  "Materials: rope, treats, mat\nInstructions: 1. Tie the rope. 2. Hide treats. 3. Let dog search.",
	})
	require.True(t, ok)

	want := Parsed{
		Title:          "Rope Hunt",
		Pillar:         activity.PillarInstinctual,
		DurationMin:    15,
		Difficulty:     activity.DifficultyMedium,
		Materials:      []string{"rope", "treats", "mat"},
		Instructions:   []string{"Tie the rope.", "Hide treats.", "Let dog search."},
		Benefits:       "Provides enrichment for your dog.",
		EmotionalGoals: []string{"Provides enrichment"},
		Tags:           []string{"instinctual", "food-based"},
		AgeGroup:       AgeAll,
		EnergyLevel:    EnergyMedium,
		Confidence:     0.9,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parsed record mismatch (-want +got):\n%s", diff)
	}
	for _, step := range got.Instructions {
		require.Greater(t, len(step), 10)
	}
}

func TestParseSectionsOnOneLine(t *testing.T) {
	p := newParser()
	got := p.Analyze(Content{Body: "Materials: rope, treats, mat. Instructions: 1. Tie the rope. 2. Hide treats. 3. Let dog search."})
	require.Equal(t, []string{"rope", "treats", "mat"}, got.Materials)
	require.Len(t, got.Instructions, 3)
}

func TestSectionEndsAtBlankLine(t *testing.T) {
	p := newParser()
	got := p.Analyze(Content{Body: "Materials: rope\n\nSome prose, with commas, that is not a list."})
	require.Equal(t, []string{"rope"}, got.Materials)
}

func TestParseRejectsLowConfidence(t *testing.T) {
	p := newParser()
	got, ok := p.Parse(Content{Body: "Just a short note."})
	require.False(t, ok)
	require.Equal(t, 0.5, got.Confidence)
	require.Equal(t, "Just a short note.", got.Title)
	require.Empty(t, got.Materials)
	require.Equal(t, []string{DefaultConfig().FallbackInstruction}, got.Instructions)
}

func TestParseFallbackMaterialsCanPassGate(t *testing.T) {
	p := newParser()
	got, ok := p.Parse(Content{Body: "Hide some treats inside a cardboard box and let your pup find them with a ball nearby."})
	require.True(t, ok)
	require.Equal(t, []string{"treats", "ball", "cardboard box"}, got.Materials)
	require.Equal(t, 0.7, got.Confidence)
}

func TestConfidenceWithinRangeAndGated(t *testing.T) {
	p := newParser()
	inputs := []Content{
		{},
		{Body: "   "},
		{Body: "Benefits: " + strings.Repeat("calming and enriching ", 5)},
		{Body: "Materials: a, b, c, d, e, f, g, h\nSteps:\n- first long step here\n- second long step here\n- third long step here\n\nBenefits: builds confidence and focus while keeping your dog calm and busy"},
		{Title: "!!!", Body: "1. 2. 3."},
	}
	for _, in := range inputs {
		parsed, ok := p.Parse(in)
		require.GreaterOrEqual(t, parsed.Confidence, 0.0)
		require.LessOrEqual(t, parsed.Confidence, 1.0)
		require.Equal(t, parsed.Confidence >= 0.6, ok)
	}

	full := p.Analyze(inputs[3])
	require.Equal(t, 1.0, full.Confidence)
	require.Len(t, full.Materials, 6)
}

func TestPillarTieBreakFollowsDeclaredOrder(t *testing.T) {
	p := newParser()
	tests := []struct {
		body string
		want activity.Pillar
	}{
		{body: "hello world", want: activity.PillarMental},
		{body: "puzzle and fetch", want: activity.PillarMental},
		{body: "fetch then sniff", want: activity.PillarPhysical},
		{body: "sniff, sniff and fetch", want: activity.PillarInstinctual},
		{body: "explore a new texture and surface with friends", want: activity.PillarEnvironmental},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, p.Analyze(Content{Body: tc.body}).Pillar, tc.body)
	}
}

func TestDuration(t *testing.T) {
	p := newParser()
	tests := []struct {
		body string
		want int
	}{
		{body: "Play for 2 hours", want: 120},
		{body: "About 1.5 hours of fun", want: 90},
		{body: "Only 20 mins needed", want: 20},
		{body: "Takes 0 minutes", want: 15},
		{body: "No timing given", want: 15},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, p.Analyze(Content{Body: tc.body}).DurationMin, tc.body)
	}
}

func TestDifficultyAgeAndEnergy(t *testing.T) {
	p := newParser()

	got := p.Analyze(Content{Body: "A simple game for senior dogs, keep it gentle."})
	require.Equal(t, activity.DifficultyEasy, got.Difficulty)
	require.Equal(t, AgeSenior, got.AgeGroup)
	require.Equal(t, EnergyLow, got.EnergyLevel)

	got = p.Analyze(Content{Body: "An advanced trick for your puppy."})
	require.Equal(t, activity.DifficultyHard, got.Difficulty)
	require.Equal(t, AgePuppy, got.AgeGroup)

	got = p.Analyze(Content{Body: "Fetch and agility in the yard."})
	require.Equal(t, activity.PillarPhysical, got.Pillar)
	require.Equal(t, EnergyHigh, got.EnergyLevel)

	got = p.Analyze(Content{Body: "Hold the bold toy."})
	require.Equal(t, AgeAll, got.AgeGroup)
}

func TestEmotionalGoalsAndTags(t *testing.T) {
	p := newParser()
	got := p.Analyze(Content{Body: "Helps with anxiety and focus. A DIY puzzle you can play indoor or outdoor with a treat and a good sniff."})
	require.Equal(t, []string{"Reduces anxiety", "Improves focus"}, got.EmotionalGoals)
	require.Len(t, got.Tags, 5)
	require.Equal(t, string(got.Pillar), got.Tags[0])
	require.Equal(t, []string{"DIY", "indoor", "outdoor", "puzzle"}, got.Tags[1:])
}

func TestTitleFallbacks(t *testing.T) {
	p := newParser()

	long := "A very long first line that definitely goes beyond sixty characters in total length"
	got := p.Analyze(Content{Body: "\n\n  " + long + "\nsecond line"})
	require.LessOrEqual(t, len([]rune(got.Title)), 60)
	require.True(t, strings.HasPrefix(long, got.Title))

	require.Equal(t, "Untitled Activity", p.Analyze(Content{}).Title)
	require.Equal(t, "Given", p.Analyze(Content{Title: "  Given ", Body: "ignored first line"}).Title)
}

func TestTitleFallbackSkipsSectionHeaders(t *testing.T) {
	p := newParser()

	tests := []struct {
		body string
		want string
	}{
		{body: "Instructions:\n1. Hide treats.\n2. Let dog search.", want: "1. Hide treats."},
		{body: "Materials: rope, treats, mat\nRope Hunt\nInstructions: tie the rope", want: "Rope Hunt"},
		{body: "  What you need: towel\nHow To: roll it up", want: "Untitled Activity"},
		{body: "Steps to a calmer evening\nInstructions: sniff", want: "Steps to a calmer evening"},
		{body: "Rope Hunt. Materials: rope", want: "Rope Hunt. Materials: rope"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, p.Analyze(Content{Body: tt.body}).Title, tt.body)
	}
}

func TestBenefitsTruncated(t *testing.T) {
	p := newParser()
	got := p.Analyze(Content{Body: "Benefits: " + strings.Repeat("x", 300)})
	require.Len(t, got.Benefits, 200)
	require.Equal(t, 0.6, got.Confidence)
}

func TestToActivityBuildsApprovedDiscovery(t *testing.T) {
	p := newParser()
	parsed, ok := p.Parse(Content{
		Title:     "Rope Hunt",
		Body:      "Materials: rope, treats, mat\nInstructions: 1. Tie the rope. 2. Hide treats. 3. Let dog search.",
		SourceURL: "https://example.com/rope-hunt",
	})
	require.True(t, ok)

	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	a := parsed.ToActivity("act-1", "owner-1", now)
	require.NoError(t, a.Validate())
	require.True(t, a.IsDiscovered())
	require.True(t, a.Discovery.Approved)
	require.Equal(t, parsed.Confidence, a.Discovery.QualityScore)
	require.Equal(t, "https://example.com/rope-hunt", a.Discovery.SourceURL)
	require.Equal(t, now, a.Discovery.DiscoveredAt)
}
