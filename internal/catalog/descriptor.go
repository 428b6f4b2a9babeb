package catalog

// Descriptor is the single description of a model every collaborator
// produces at its boundary.
type Descriptor struct {
	ID             string  `json:"id" yaml:"id" toml:"id"`
	Name           string  `json:"name" yaml:"name" toml:"name"`
	Family         Family  `json:"family" yaml:"family" toml:"family"`
	ExpectedVRAMMB float64 `json:"expected_vram_mb,omitempty" yaml:"expected_vram_mb,omitempty" toml:"expected_vram_mb,omitempty"`
	Description    string  `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
}

// DisplayName falls back to the id when no name is set.
func (d Descriptor) DisplayName() string {
	if d.Name == "" {
		return d.ID
	}
	return d.Name
}

// Builtin returns the stock model line-up.
func Builtin() []Descriptor {
	return []Descriptor{
		{ID: "moondream-2", Name: "Moondream 2", Family: FamilyCaptioner, ExpectedVRAMMB: 2600},
		{ID: "moondream-3", Name: "Moondream 3", Family: FamilyCaptioner, ExpectedVRAMMB: 2600},
		{ID: "joycaption-alpha-2", Name: "JoyCaption Alpha 2", Family: FamilyCaptioner, ExpectedVRAMMB: 4500},
		{ID: "florence-2-large", Name: "Florence-2 Large", Family: FamilyCaptioner, ExpectedVRAMMB: 1500},
		{ID: "florence-2-large-4bit", Name: "Florence-2 Large (4-bit)", Family: FamilyCaptioner,
			Description: "Microsoft Florence-2 Large with 4-bit quantization."},
		{ID: "wd14-vit-v2", Name: "WD14 ViT Tagger v2", Family: FamilyTagger, ExpectedVRAMMB: 450},
		{ID: "wd-vit-tagger-v3", Name: "WD14 ViT Tagger v3", Family: FamilyTagger,
			Description: "SmilingWolf WD Tagger V3."},
		{ID: "nsfw-detector", Name: "NSFW Detector", Family: FamilyDetector, ExpectedVRAMMB: 800},
		{ID: "juggernaut-xl", Name: "Juggernaut XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000,
			Description: "Cinematic lighting and composition."},
		{ID: "realvisxl-v5", Name: "RealVisXL V5", Family: FamilyDiffusion, ExpectedVRAMMB: 6000,
			Description: "Raw photography and imperfect realism."},
		{ID: "cyberrealistic-xl", Name: "CyberRealistic XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000,
			Description: "Skin texture and portraits."},
		{ID: "epicrealism-xl", Name: "epiCRealism XL PureFix", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "epicella-xl", Name: "epiCella XL Photo", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "zavychroma-xl", Name: "ZavyChroma XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "helloworld-xl", Name: "HelloWorld XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "nightvision-xl", Name: "NightVision XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "albedobase-xl", Name: "AlbedoBase XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "copax-timeless-xl", Name: "Copax Timeless XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "dreamshaper-xl", Name: "DreamShaper XL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl", Name: "SDXL", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl-base", Name: "SDXL Base", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl-realism", Name: "SDXL Realism", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl-anime", Name: "SDXL Anime", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
		{ID: "sdxl-surreal", Name: "SDXL Surreal", Family: FamilyDiffusion, ExpectedVRAMMB: 6000},
	}
}
