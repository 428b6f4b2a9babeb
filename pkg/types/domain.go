package types

// Model is a registered model as exposed by GET /v1/models.
type Model struct {
	// Stable identifier for the model.
	// example: juggernaut-xl
	ID string `json:"id" example:"juggernaut-xl"`
	// Human-friendly name.
	// example: Juggernaut XL
	Name string `json:"name" example:"Juggernaut XL"`
	// Model family served by one loader backend.
	// example: diffusion
	Family string `json:"family" example:"diffusion"`
	// Expected VRAM footprint from the catalog, in MB.
	// example: 6000
	ExpectedVRAMMB float64 `json:"expected_vram_mb" example:"6000"`
	// Last attributed VRAM in MB; falls back to the expected footprint when
	// the model was never measured.
	// example: 6120.5
	LastKnownVRAMMB float64 `json:"last_known_vram_mb" example:"6120.5"`
	// Whether the model is currently resident.
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Optional description.
	Description string `json:"description,omitempty"`
}

// LoadedModel is one entry of the residency table.
type LoadedModel struct {
	// example: juggernaut-xl
	ID string `json:"id" example:"juggernaut-xl"`
	// example: Juggernaut XL
	Name string `json:"name" example:"Juggernaut XL"`
	// Attributed VRAM in MB (approximate).
	// example: 6200
	VRAMMB float64 `json:"vram_mb" example:"6200"`
	// Attributed process RAM in MB (approximate).
	// example: 850
	RAMMB float64 `json:"ram_mb" example:"850"`
	// Load time (unix seconds).
	// example: 1700000000
	LoadedAtUnix int64 `json:"loaded_at_unix" example:"1700000000"`
}
