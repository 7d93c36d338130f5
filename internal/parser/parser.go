// Package parser turns scraped or generated free text into structured activity records.
//
// Every extraction step has a fallback, so Analyze always produces a complete record. The only
// rejection is a confidence below Config.MinConfidence, reported by Parse as ok=false.
package parser

import (
	"math"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"example.com/enrichment/internal/activity"
)

// Content is one raw text block handed to the parser.
type Content struct {
	Title     string `json:"title,omitempty"`
	Body      string `json:"content"`
	SourceURL string `json:"source_url,omitempty"`
}

// Parsed is the structured record extracted from Content.
type Parsed struct {
	Title          string              `json:"title"`
	Pillar         activity.Pillar     `json:"pillar"`
	DurationMin    int                 `json:"duration_min"`
	Difficulty     activity.Difficulty `json:"difficulty"`
	Materials      []string            `json:"materials"`
	Instructions   []string            `json:"instructions"`
	Benefits       string              `json:"benefits"`
	EmotionalGoals []string            `json:"emotional_goals"`
	Tags           []string            `json:"tags"`
	AgeGroup       string              `json:"age_group"`
	EnergyLevel    string              `json:"energy_level"`
	Confidence     float64             `json:"confidence"`
	SourceURL      string              `json:"source_url,omitempty"`
}

// ToActivity builds the discovered activity for a parsed record. Discovered content is
// auto-approved.
func (p Parsed) ToActivity(id, ownerID string, now time.Time) activity.Activity {
	return activity.Activity{
		ID:           id,
		Kind:         activity.KindDiscovered,
		OwnerID:      ownerID,
		Title:        p.Title,
		Pillar:       p.Pillar,
		Difficulty:   p.Difficulty,
		DurationMin:  p.DurationMin,
		Materials:    append([]string(nil), p.Materials...),
		Instructions: append(activity.Instructions(nil), p.Instructions...),
		Benefits:     p.Benefits,
		Tags:         append([]string(nil), p.Tags...),
		Discovery: &activity.Discovery{
			Source:       activity.SourceDiscovered,
			QualityScore: p.Confidence,
			DiscoveredAt: now.UTC(),
			Approved:     true,
			SourceURL:    p.SourceURL,
		},
	}
}

type section int

const (
	sectionMaterials section = iota
	sectionInstructions
	sectionBenefits
)

var (
	durationPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours?|hrs?|minutes?|mins?)\b`)
	stepMarker      = regexp.MustCompile(`(?:^|\s)(?:\d+[.)]|[-*•])\s+`)
	bulletPrefix    = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
	blankLine       = regexp.MustCompile(`\n[ \t]*\n`)
	listSeparator   = regexp.MustCompile(`[,;\n]`)
)

// Parser extracts activities using the keyword tables in its Config. It is safe for concurrent use.
type Parser struct {
	cfg      Config
	headers  *regexp.Regexp
	sections map[string]section

	easy, hard            *regexp.Regexp
	puppy, senior         *regexp.Regexp
	highEnergy, lowEnergy *regexp.Regexp
}

// New compiles cfg into a Parser.
func New(cfg Config) *Parser {
	p := &Parser{cfg: cfg, sections: make(map[string]section)}

	var names []string
	register := func(kind section, headers []string) {
		for _, h := range headers {
			h = strings.ToLower(strings.TrimSpace(h))
			if h == "" {
				continue
			}
			p.sections[h] = kind
			names = append(names, h)
		}
	}
	register(sectionMaterials, cfg.MaterialHeaders)
	register(sectionInstructions, cfg.InstructionHeaders)
	register(sectionBenefits, cfg.BenefitHeaders)
	if len(names) > 0 {
		// Longest alternatives first so "how to" is not shadowed by a shorter prefix.
		sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
		quoted := make([]string, len(names))
		for i, n := range names {
			quoted[i] = regexp.QuoteMeta(n)
		}
		p.headers = regexp.MustCompile(`(?i)(?:^|[\s.;])(` + strings.Join(quoted, "|") + `)\s*:`)
	}

	p.easy = wordPattern(cfg.EasyWords)
	p.hard = wordPattern(cfg.HardWords)
	p.puppy = wordPattern(cfg.PuppyWords)
	p.senior = wordPattern(cfg.SeniorWords)
	p.highEnergy = wordPattern(cfg.HighEnergyWords)
	p.lowEnergy = wordPattern(cfg.LowEnergyWords)
	return p
}

// Parse returns the parsed record, or ok=false when its confidence is below MinConfidence.
func (p *Parser) Parse(content Content) (Parsed, bool) {
	parsed := p.Analyze(content)
	if parsed.Confidence < p.cfg.MinConfidence {
		return parsed, false
	}
	return parsed, true
}

// Analyze runs every extraction step and always returns a populated record.
func (p *Parser) Analyze(content Content) Parsed {
	body := strings.ReplaceAll(content.Body, "\r\n", "\n")
	lower := strings.ToLower(content.Title + "\n" + body)
	sections := p.splitSections(body)

	out := Parsed{
		Title:       p.title(content.Title, body),
		Pillar:      p.pillar(lower),
		DurationMin: p.duration(body),
		Difficulty:  p.difficulty(lower),
		SourceURL:   strings.TrimSpace(content.SourceURL),
	}
	out.Materials = p.materials(sections[sectionMaterials], lower)
	out.Instructions = p.instructions(sections[sectionInstructions])
	out.Benefits = p.benefits(sections[sectionBenefits])
	out.EmotionalGoals = p.emotionalGoals(lower)
	out.Tags = p.tags(out.Pillar, lower)
	out.AgeGroup = p.ageGroup(lower)
	out.EnergyLevel = p.energyLevel(out.Pillar, lower)
	out.Confidence = p.confidence(out)
	return out
}

func (p *Parser) title(provided, body string) string {
	if t := strings.TrimSpace(provided); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		if line = strings.TrimSpace(line); line != "" && !p.startsWithHeader(line) {
			return truncate(line, p.cfg.MaxTitleLength)
		}
	}
	return p.cfg.UntitledTitle
}

// startsWithHeader reports whether line opens with a section header such as "Materials:".
func (p *Parser) startsWithHeader(line string) bool {
	if p.headers == nil {
		return false
	}
	loc := p.headers.FindStringSubmatchIndex(line)
	return loc != nil && loc[2] == 0
}

// pillar scores each pillar by keyword occurrences. Ties and all-zero scores resolve by the
// order of activity.Pillars.
func (p *Parser) pillar(lower string) activity.Pillar {
	best, bestScore := activity.Pillars[0], 0
	for _, pillar := range activity.Pillars {
		score := 0
		for _, kw := range p.cfg.PillarKeywords[pillar] {
			if kw = strings.ToLower(kw); kw != "" {
				score += strings.Count(lower, kw)
			}
		}
		if score > bestScore {
			best, bestScore = pillar, score
		}
	}
	return best
}

func (p *Parser) duration(body string) int {
	m := durationPattern.FindStringSubmatch(body)
	if m == nil {
		return p.cfg.DefaultDuration
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value <= 0 {
		return p.cfg.DefaultDuration
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "h") {
		value *= 60
	}
	minutes := int(math.Round(value))
	if minutes <= 0 {
		return p.cfg.DefaultDuration
	}
	return minutes
}

func (p *Parser) difficulty(lower string) activity.Difficulty {
	switch {
	case matches(p.easy, lower):
		return activity.DifficultyEasy
	case matches(p.hard, lower):
		return activity.DifficultyHard
	default:
		return activity.DifficultyMedium
	}
}

func (p *Parser) materials(text, lower string) []string {
	var out []string
	if text != "" {
		for _, item := range listSeparator.Split(text, -1) {
			item = cleanItem(item)
			if item == "" {
				continue
			}
			out = append(out, item)
			if len(out) == p.cfg.MaxMaterials {
				break
			}
		}
	}
	if len(out) > 0 {
		return out
	}

	out = []string{}
	for _, noun := range p.cfg.MaterialNouns {
		noun = strings.ToLower(strings.TrimSpace(noun))
		if noun == "" || !strings.Contains(lower, noun) || coveredBy(noun, out) {
			continue
		}
		out = append(out, noun)
		if len(out) == p.cfg.MaxFallbackMaterials {
			break
		}
	}
	return out
}

func (p *Parser) instructions(text string) []string {
	var steps []string
	for _, fragment := range stepMarker.Split(text, -1) {
		for _, line := range strings.Split(fragment, "\n") {
			line = strings.TrimSpace(bulletPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
			if len([]rune(line)) <= p.cfg.MinInstructionLength {
				continue
			}
			steps = append(steps, line)
			if len(steps) == p.cfg.MaxInstructions {
				return steps
			}
		}
	}
	if len(steps) == 0 {
		return []string{p.cfg.FallbackInstruction}
	}
	return steps
}

func (p *Parser) benefits(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return p.cfg.FallbackBenefits
	}
	return truncate(text, p.cfg.MaxBenefitsLength)
}

func (p *Parser) emotionalGoals(lower string) []string {
	var goals []string
	for _, rule := range p.cfg.EmotionalGoals {
		if containsAny(lower, rule.Keywords) {
			goals = append(goals, rule.Label)
		}
	}
	if len(goals) == 0 {
		return []string{p.cfg.FallbackEmotionalGoal}
	}
	return goals
}

func (p *Parser) tags(pillar activity.Pillar, lower string) []string {
	tags := []string{string(pillar)}
	for _, rule := range p.cfg.TagRules {
		if len(tags) >= p.cfg.MaxTags {
			break
		}
		if containsAny(lower, rule.Keywords) && !slices.Contains(tags, rule.Label) {
			tags = append(tags, rule.Label)
		}
	}
	return tags
}

func (p *Parser) ageGroup(lower string) string {
	switch {
	case matches(p.puppy, lower):
		return AgePuppy
	case matches(p.senior, lower):
		return AgeSenior
	default:
		return AgeAll
	}
}

func (p *Parser) energyLevel(pillar activity.Pillar, lower string) string {
	switch {
	case pillar == activity.PillarPhysical || matches(p.highEnergy, lower):
		return EnergyHigh
	case matches(p.lowEnergy, lower):
		return EnergyLow
	default:
		return EnergyMedium
	}
}

func (p *Parser) confidence(out Parsed) float64 {
	score := 0.5
	if len(out.Materials) >= 2 {
		score += 0.2
	}
	if len(out.Instructions) >= 3 {
		score += 0.2
	}
	if len([]rune(out.Benefits)) > 50 {
		score += 0.1
	}
	// Rounded so 0.5+0.1 compares equal to the 0.6 gate.
	return math.Min(1, math.Round(score*100)/100)
}

// splitSections returns the text following each known header, up to the next header or blank line.
// The first occurrence of a section wins.
func (p *Parser) splitSections(body string) map[section]string {
	out := make(map[section]string)
	if p.headers == nil {
		return out
	}
	found := p.headers.FindAllStringSubmatchIndex(body, -1)
	for i, m := range found {
		kind := p.sections[strings.ToLower(body[m[2]:m[3]])]
		if _, seen := out[kind]; seen {
			continue
		}
		end := len(body)
		if i+1 < len(found) {
			end = found[i+1][2]
		}
		text := body[m[1]:end]
		if loc := blankLine.FindStringIndex(text); loc != nil {
			text = text[:loc[0]]
		}
		out[kind] = strings.TrimSpace(text)
	}
	return out
}

func wordPattern(words []string) *regexp.Regexp {
	var quoted []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(w)))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func matches(re *regexp.Regexp, text string) bool {
	return re != nil && re.MatchString(text)
}

func cleanItem(item string) string {
	item = strings.TrimSpace(item)
	item = bulletPrefix.ReplaceAllString(item, "")
	return strings.TrimSpace(strings.TrimRight(item, ".:;! "))
}

func coveredBy(noun string, found []string) bool {
	for _, f := range found {
		if strings.Contains(f, noun) {
			return true
		}
	}
	return false
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw = strings.ToLower(kw); kw != "" && strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimSpace(string(runes[:limit]))
}
