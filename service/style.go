package service

// DefaultStyleID is used when a request names no style and as the fallback fragment for unknown ids.
const DefaultStyleID = "noir"

type Style struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

var comicStyles = []Style{
	{
		ID:     "american-modern",
		Name:   "American Modern",
		Prompt: "contemporary American superhero comic style, bold vibrant colors, dynamic heroic poses, detailed muscular anatomy, cinematic action scenes, modern digital art",
	},
	{
		ID:     "manga",
		Name:   "Manga",
		Prompt: "Japanese manga style, clean precise black linework, screen tone shading, expressive eyes, dynamic speed lines, black and white with impact effects",
	},
	{
		ID:     "noir",
		Name:   "Noir",
		Prompt: "film noir style, high contrast black and white, deep dramatic shadows, 1940s detective aesthetic, heavy bold inking, moody atmospheric lighting",
	},
	{
		ID:     "vintage",
		Name:   "Vintage",
		Prompt: "Golden Age 1950s comic style, visible halftone Ben-Day dots, limited retro color palette, nostalgic warm tones, classic adventure comics",
	},
}

// Styles returns a copy of the catalog in display order.
func Styles() []Style {
	out := make([]Style, len(comicStyles))
	copy(out, comicStyles)
	return out
}

func lookupStyle(id string) (Style, bool) {
	for _, s := range comicStyles {
		if s.ID == id {
			return s, true
		}
	}
	return Style{}, false
}

// StylePrompt returns the art direction for id, or the noir fragment when id is unknown.
func StylePrompt(id string) string {
	if s, ok := lookupStyle(id); ok {
		return s.Prompt
	}
	s, _ := lookupStyle(DefaultStyleID)
	return s.Prompt
}

// ModelMode pairs a provider model with its fixed output size.
type ModelMode struct {
	ID               string `json:"id"`
	Model            string `json:"model"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	EstimatedSeconds int    `json:"estimatedSeconds"`
}

var modelModes = map[string]ModelMode{
	"fast": {ID: "fast", Model: "google/flash-image-2.5", Width: 864, Height: 1184, EstimatedSeconds: 15},
	"pro":  {ID: "pro", Model: "google/gemini-3-pro-image", Width: 896, Height: 1200, EstimatedSeconds: 30},
}

// ModelModes lists the supported modes, fast first.
func ModelModes() []ModelMode {
	return []ModelMode{modelModes["fast"], modelModes["pro"]}
}

// ResolveModelMode returns the named mode, falling back to fallback and then to fast.
func ResolveModelMode(id, fallback string) ModelMode {
	if m, ok := modelModes[id]; ok {
		return m
	}
	if m, ok := modelModes[fallback]; ok {
		return m
	}
	return modelModes["fast"]
}
