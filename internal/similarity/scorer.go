// Package similarity scores how alike two enrichment activities are.
package similarity

import (
	"sort"
	"strings"
	"unicode"

	"example.com/enrichment/internal/activity"
)

// Config tunes keyword extraction and the content similarity blend.
type Config struct {
	StopWords       []string `yaml:"stop_words"`
	MinTokenLength  int      `yaml:"min_token_length"`
	MaxKeywords     int      `yaml:"max_keywords"`
	KeywordWeight   float64  `yaml:"keyword_weight"`
	PillarWeight    float64  `yaml:"pillar_weight"`
	MaterialWeight  float64  `yaml:"material_weight"`
	IgnoreWordOrder bool     `yaml:"ignore_word_order"`
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		StopWords: []string{
			"the", "and", "for", "with", "your", "you", "this", "that", "these", "those",
			"from", "are", "was", "were", "been", "have", "has", "had", "does", "did",
			"will", "would", "could", "should", "may", "might", "can", "into", "its",
			"our", "their", "they", "them", "then", "than", "but", "not", "all", "any",
			"each", "also", "very", "just", "while", "when", "what", "which", "who", "how",
			"dog", "dogs",
		},
		MinTokenLength:  3,
		MaxKeywords:     20,
		KeywordWeight:   0.6,
		PillarWeight:    0.2,
		MaterialWeight:  0.2,
		IgnoreWordOrder: true,
	}
}

// Scorer computes title and content similarity. It holds no mutable state.
type Scorer struct {
	cfg       Config
	stopWords map[string]struct{}
}

// NewScorer builds a Scorer from cfg.
func NewScorer(cfg Config) *Scorer {
	stop := make(map[string]struct{}, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Scorer{cfg: cfg, stopWords: stop}
}

// TitleSimilarity returns 1 - levenshtein/maxLen over the normalised titles.
// Two empty titles are identical. With IgnoreWordOrder the ratio of the sorted tokens is used
// when higher, so reordered titles such as "Ball Toss" and "Toss Ball" score 1.
func (s *Scorer) TitleSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	score := editRatio(na, nb)
	if s.cfg.IgnoreWordOrder && score < 1 {
		if sorted := editRatio(sortTokens(na), sortTokens(nb)); sorted > score {
			score = sorted
		}
	}
	return score
}

// ContentSimilarity blends keyword overlap, pillar equality and material overlap.
func (s *Scorer) ContentSimilarity(a, b activity.Activity) float64 {
	score := s.cfg.KeywordWeight * Jaccard(s.Keywords(a), s.Keywords(b))
	if a.Pillar == b.Pillar {
		score += s.cfg.PillarWeight
	}
	score += s.cfg.MaterialWeight * MaterialOverlap(a.Materials, b.Materials)
	return clamp01(score)
}

// Keywords extracts up to MaxKeywords distinct tokens from the title, benefits and tags,
// in first-occurrence order.
func (s *Scorer) Keywords(a activity.Activity) []string {
	text := a.Title + " " + a.Benefits + " " + strings.Join(a.Tags, " ")
	seen := make(map[string]struct{})
	out := make([]string, 0, s.cfg.MaxKeywords)
	for _, token := range strings.Fields(Normalize(text)) {
		if s.cfg.MaxKeywords > 0 && len(out) >= s.cfg.MaxKeywords {
			break
		}
		if len([]rune(token)) < s.cfg.MinTokenLength {
			continue
		}
		if _, stop := s.stopWords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Normalize lowercases, strips punctuation and collapses whitespace.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Jaccard returns |a ∩ b| / |a ∪ b|. Two empty sets score 0.
func Jaccard(a, b []string) float64 {
	setA := make(map[string]struct{}, len(a))
	for _, v := range a {
		setA[v] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, v := range b {
		setB[v] = struct{}{}
	}
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	intersection := 0
	for v := range setA {
		if _, ok := setB[v]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// MaterialOverlap counts materials in a that match one in b (case-insensitive, either one
// containing the other) and divides by the longer list length.
func MaterialOverlap(a, b []string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 || len(a) == 0 || len(b) == 0 {
		return 0
	}
	normB := make([]string, 0, len(b))
	for _, m := range b {
		if clean := strings.ToLower(strings.TrimSpace(m)); clean != "" {
			normB = append(normB, clean)
		}
	}
	matches := 0
	for _, m := range a {
		clean := strings.ToLower(strings.TrimSpace(m))
		if clean == "" {
			continue
		}
		for _, other := range normB {
			if strings.Contains(clean, other) || strings.Contains(other, clean) {
				matches++
				break
			}
		}
	}
	return clamp01(float64(matches) / float64(longest))
}

func editRatio(a, b string) float64 {
	maxLen := max(len([]rune(a)), len([]rune(b)))
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(maxLen)
}

func sortTokens(text string) string {
	tokens := strings.Fields(text)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
