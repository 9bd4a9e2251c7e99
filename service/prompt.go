package service

import (
	"fmt"
	"strings"
)

// PromptInput is everything that influences the page prompt. Equal inputs give byte-identical prompts.
type PromptInput struct {
	Story           string
	StyleID         string
	CharacterCount  int
	IsContinuation  bool
	PreviousContext string
}

const promptPreamble = "Professional comic book page illustration."

const continuationTemplate = "\nCONTINUATION CONTEXT:\nThis is a continuation of an existing story. The previous page showed: %s\nMaintain visual consistency with the previous panels. Continue the narrative naturally.\n"

const singleCharacterTemplate = `
CRITICAL FACE CONSISTENCY INSTRUCTIONS:
- REFERENCE CHARACTER: Use the uploaded image as EXACT reference for the protagonist's face and appearance
- FACE MATCHING: The character's face must be IDENTICAL to the reference image - same eyes, nose, mouth, hair, facial structure
- APPEARANCE PRESERVATION: Maintain exact skin tone, hair color/style, eye color, and distinctive facial features
- CHARACTER CONSISTENCY: This exact same character must appear in ALL 5 panels with the same face throughout
- STYLE APPLICATION: Apply %s comic art style to the body/pose/action but KEEP THE FACE EXACTLY AS IN THE REFERENCE IMAGE
- NO VARIATION: Do not alter, modify, or change the character's face in any way from the reference`

const dualCharacterTemplate = `
CRITICAL DUAL CHARACTER FACE CONSISTENCY INSTRUCTIONS:
- CHARACTER 1 REFERENCE: Use the FIRST uploaded image as EXACT reference for Character 1's face and appearance
- CHARACTER 2 REFERENCE: Use the SECOND uploaded image as EXACT reference for Character 2's face and appearance
- FACE MATCHING: Both characters' faces must be IDENTICAL to their respective reference images
- VISUAL DISTINCTION: Keep both characters clearly visually distinct with their unique faces, hair, and features
- CONSISTENT PRESENCE: Both characters must appear together in at least 4 of the 5 panels
- STYLE APPLICATION: Apply %s comic art style while maintaining EXACT facial features from references
- NO FACE VARIATION: Never alter or modify either character's face from their reference images`

const rulesAndLayout = `CHARACTER CONSISTENCY RULES (HIGHEST PRIORITY):
- If reference images are provided, the characters' FACES must be 100% identical to the reference images
- Never change hair color, eye color, facial structure, or distinctive features
- Apply comic style to body/pose/action but preserve exact facial appearance
- Same character must look identical across all panels they appear in

TEXT AND LETTERING (CRITICAL):
- All text in speech bubbles must be PERFECTLY CLEAR, LEGIBLE, and correctly spelled
- Use bold clean comic book lettering, large and easy to read
- Speech bubbles: crisp white fill, solid black outline, pointed tail toward speaker
- Keep dialogue SHORT: maximum 1-2 sentences per bubble
- NO blurry, warped, or unreadable text

PAGE LAYOUT:
5-panel comic page arranged as:
[Panel 1] [Panel 2] — top row, 2 equal panels
[    Panel 3      ] — middle row, 1 large cinematic hero panel
[Panel 4] [Panel 5] — bottom row, 2 equal panels
- Solid black panel borders with clean white gutters between panels
- Each panel clearly separated and distinct`

const compositionGuidance = `COMPOSITION:
- Vary camera angles across panels: close-up, medium shot, wide establishing shot
- Natural visual flow: left-to-right, top-to-bottom reading order
- Dynamic character poses with clear expressive acting
- Detailed backgrounds matching the scene and mood`

// continuationSection is empty unless the request continues a story with known context.
func continuationSection(in PromptInput) string {
	if !in.IsContinuation || in.PreviousContext == "" {
		return ""
	}
	return fmt.Sprintf(continuationTemplate, in.PreviousContext)
}

// characterSection binds reference images to characters. Only counts 1 and 2 produce a block.
func characterSection(in PromptInput) string {
	switch in.CharacterCount {
	case 1:
		return fmt.Sprintf(singleCharacterTemplate, in.StyleID)
	case 2:
		return fmt.Sprintf(dualCharacterTemplate, in.StyleID)
	default:
		return ""
	}
}

// ComposePrompt assembles the full generation directive. The character block is emitted
// twice, before the rules and again after the art style.
func ComposePrompt(in PromptInput) string {
	characters := characterSection(in)

	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n")
	b.WriteString(continuationSection(in))
	b.WriteString("\n")
	b.WriteString(characters)
	b.WriteString("\n\n")
	b.WriteString(rulesAndLayout)
	b.WriteString("\n\nART STYLE:\n")
	b.WriteString(StylePrompt(in.StyleID))
	b.WriteString("\n")
	b.WriteString(characters)
	b.WriteString("\n\n")
	b.WriteString(compositionGuidance)
	b.WriteString("\n\nSTORY:\n")
	b.WriteString(in.Story)
	return b.String()
}
