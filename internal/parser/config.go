package parser

import "example.com/enrichment/internal/activity"

// Age groups reported on parsed activities.
const (
	AgePuppy  = "Puppy"
	AgeSenior = "Senior"
	AgeAll    = "All Ages"
)

// Energy levels reported on parsed activities.
const (
	EnergyHigh   = "High"
	EnergyMedium = "Medium"
	EnergyLow    = "Low"
)

// Rule maps a set of trigger keywords to a label.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Config holds every heuristic table the parser consults.
type Config struct {
	PillarKeywords map[activity.Pillar][]string `yaml:"pillar_keywords"`

	MaterialHeaders    []string `yaml:"material_headers"`
	InstructionHeaders []string `yaml:"instruction_headers"`
	BenefitHeaders     []string `yaml:"benefit_headers"`

	MaterialNouns []string `yaml:"material_nouns"`
	EasyWords     []string `yaml:"easy_words"`
	HardWords     []string `yaml:"hard_words"`

	EmotionalGoals []Rule `yaml:"emotional_goals"`
	TagRules       []Rule `yaml:"tag_rules"`

	PuppyWords      []string `yaml:"puppy_words"`
	SeniorWords     []string `yaml:"senior_words"`
	HighEnergyWords []string `yaml:"high_energy_words"`
	LowEnergyWords  []string `yaml:"low_energy_words"`

	DefaultDuration      int `yaml:"default_duration"`
	MaxTitleLength       int `yaml:"max_title_length"`
	MaxMaterials         int `yaml:"max_materials"`
	MaxFallbackMaterials int `yaml:"max_fallback_materials"`
	MaxInstructions      int `yaml:"max_instructions"`
	MinInstructionLength int `yaml:"min_instruction_length"`
	MaxBenefitsLength    int `yaml:"max_benefits_length"`
	MaxTags              int `yaml:"max_tags"`

	UntitledTitle         string `yaml:"untitled_title"`
	FallbackInstruction   string `yaml:"fallback_instruction"`
	FallbackBenefits      string `yaml:"fallback_benefits"`
	FallbackEmotionalGoal string `yaml:"fallback_emotional_goal"`

	MinConfidence float64 `yaml:"min_confidence"`
}

// DefaultConfig returns the production keyword tables and limits.
func DefaultConfig() Config {
	return Config{
		PillarKeywords: map[activity.Pillar][]string{
			activity.PillarMental: {
				"puzzle", "problem solving", "think", "brain", "mental", "training",
				"trick", "learn", "cognitive", "memory",
			},
			activity.PillarPhysical: {
				"exercise", "fetch", "agility", "physical", "running", "hike",
				"swim", "tug", "jump", "workout",
			},
			activity.PillarSocial: {
				"social", "friend", "playdate", "play date", "people", "meet",
				"together", "other dogs", "bond", "family",
			},
			activity.PillarEnvironmental: {
				"environment", "explore", "new place", "texture", "surface",
				"sound", "novel", "adventure", "sensory", "outing",
			},
			activity.PillarInstinctual: {
				"sniff", "scent", "nose", "forage", "dig", "chew", "hunt",
				"instinct", "lick", "shred",
			},
		},
		MaterialHeaders:    []string{"materials", "supplies", "what you need", "you'll need", "you will need"},
		InstructionHeaders: []string{"instructions", "steps", "how to", "directions"},
		BenefitHeaders:     []string{"benefits"},
		MaterialNouns: []string{
			"treats", "kibble", "peanut butter", "kong", "snuffle mat", "muffin tin",
			"tennis ball", "ball", "rope", "towel", "blanket", "cardboard box", "box",
			"paper bag", "plastic bottle", "cones", "leash", "toy",
		},
		EasyWords: []string{"easy", "simple", "beginner"},
		HardWords: []string{"hard", "advanced", "challenging"},
		EmotionalGoals: []Rule{
			{Label: "Reduces anxiety", Keywords: []string{"anxiety", "anxious", "calm"}},
			{Label: "Builds confidence", Keywords: []string{"confidence", "confident"}},
			{Label: "Reduces boredom", Keywords: []string{"boredom", "bored", "stimulation"}},
			{Label: "Strengthens bond", Keywords: []string{"bond", "relationship"}},
			{Label: "Improves focus", Keywords: []string{"focus", "attention"}},
		},
		TagRules: []Rule{
			{Label: "DIY", Keywords: []string{"diy", "homemade", "make your own", "cardboard"}},
			{Label: "indoor", Keywords: []string{"indoor", "inside", "living room"}},
			{Label: "outdoor", Keywords: []string{"outdoor", "outside", "yard", "park", "garden"}},
			{Label: "puzzle", Keywords: []string{"puzzle"}},
			{Label: "food-based", Keywords: []string{"treat", "food", "kibble", "peanut butter"}},
			{Label: "scent-work", Keywords: []string{"scent", "sniff", "nose"}},
		},
		PuppyWords:      []string{"puppy", "puppies", "young"},
		SeniorWords:     []string{"senior", "old", "older", "elderly"},
		HighEnergyWords: []string{"high energy", "high-energy", "active"},
		LowEnergyWords:  []string{"calm", "gentle", "low energy", "low-energy"},

		DefaultDuration:      15,
		MaxTitleLength:       60,
		MaxMaterials:         6,
		MaxFallbackMaterials: 4,
		MaxInstructions:      6,
		MinInstructionLength: 10,
		MaxBenefitsLength:    200,
		MaxTags:              5,

		UntitledTitle:         "Untitled Activity",
		FallbackInstruction:   "Follow the activity description and supervise your dog throughout.",
		FallbackBenefits:      "Provides enrichment for your dog.",
		FallbackEmotionalGoal: "Provides enrichment",

		MinConfidence: 0.6,
	}
}
