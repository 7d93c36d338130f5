package activity

// library is the hand-authored catalog every owner starts with.
var library = []Activity{
	{
		ID:          "lib-frozen-kong",
		Title:       "Frozen Kong Treat Puzzle",
		Pillar:      PillarMental,
		Difficulty:  DifficultyEasy,
		DurationMin: 20,
		Materials:   []string{"kong", "treats", "peanut butter"},
		Instructions: Instructions{
			"Stuff the kong with treats and a layer of peanut butter.",
			"Freeze the kong overnight.",
			"Give the frozen kong to your dog on a washable surface.",
		},
		Benefits: "Slows eating, soothes teething puppies and keeps your dog busy problem solving.",
		Tags:     []string{"mental", "food-based", "puzzle", "indoor"},
	},
	{
		ID:          "lib-snuffle-mat",
		Title:       "Snuffle Mat Foraging",
		Pillar:      PillarInstinctual,
		Difficulty:  DifficultyEasy,
		DurationMin: 15,
		Materials:   []string{"snuffle mat", "kibble"},
		Instructions: Instructions{
			"Scatter a handful of kibble deep into the snuffle mat.",
			"Let your dog sniff out every piece at their own pace.",
		},
		Benefits: "Lets your dog use their nose to forage, which is calming and satisfies natural instincts.",
		Tags:     []string{"instinctual", "scent-work", "food-based", "indoor"},
	},
	{
		ID:          "lib-flirt-pole",
		Title:       "Flirt Pole Chase",
		Pillar:      PillarPhysical,
		Difficulty:  DifficultyMedium,
		DurationMin: 10,
		Materials:   []string{"flirt pole"},
		Instructions: Instructions{
			"Drag the lure along the ground in wide circles.",
			"Let your dog catch the lure every few rounds.",
			"Finish with a calm drop-it cue.",
		},
		Benefits: "Burns energy quickly and builds impulse control through start and stop play.",
		Tags:     []string{"physical", "outdoor"},
	},
	{
		ID:          "lib-puppy-playdate",
		Title:       "Structured Playdate",
		Pillar:      PillarSocial,
		Difficulty:  DifficultyMedium,
		DurationMin: 30,
		Materials:   []string{"leash", "treats"},
		Instructions: Instructions{
			"Meet the other dog on neutral ground with both dogs leashed.",
			"Walk side by side before allowing off-leash play.",
			"Interrupt play with short breaks every few minutes.",
		},
		Benefits: "Builds confidence around other dogs and strengthens social skills.",
		Tags:     []string{"social", "outdoor"},
	},
	{
		ID:          "lib-texture-walk",
		Title:       "Texture Walk Adventure",
		Pillar:      PillarEnvironmental,
		Difficulty:  DifficultyEasy,
		DurationMin: 20,
		Materials:   []string{"towel", "cardboard", "blanket"},
		Instructions: Instructions{
			"Lay out different surfaces in a line across the floor.",
			"Lure your dog across each surface with a treat.",
			"Reward calm exploration of every new texture.",
		},
		Benefits: "Introduces novel surfaces in a safe way and reduces anxiety about new environments.",
		Tags:     []string{"environmental", "indoor", "DIY"},
	},
	{
		ID:          "lib-find-it",
		Title:       "Find It Scent Game",
		Pillar:      PillarInstinctual,
		Difficulty:  DifficultyMedium,
		DurationMin: 15,
		Materials:   []string{"treats", "box"},
		Instructions: Instructions{
			"Ask your dog to wait while you hide a treat in a box.",
			"Release with the cue find it and let them search.",
			"Increase the number of boxes as your dog improves.",
		},
		Benefits: "Channels the urge to hunt into a focused nose work game.",
		Tags:     []string{"instinctual", "scent-work", "food-based"},
	},
}

// Library returns a copy of the built-in library catalog.
func Library() []Activity {
	out := make([]Activity, 0, len(library))
	for _, a := range library {
		a.Kind = KindLibrary
		a.Materials = append([]string(nil), a.Materials...)
		a.Instructions = append(Instructions(nil), a.Instructions...)
		a.Tags = append([]string(nil), a.Tags...)
		out = append(out, a)
	}
	return out
}
