package prompt

import "strings"

// schema is the compact single-line shape the model must reproduce.
// Small local models follow one-line examples better than indented ones.
const schema = `{"medication_schedule":[{"medicine":"","dosage":"","timing":"","instructions":""}],` +
	`"harmful_combinations":[{"medicines":[""],"risk":"","recommendation":""}],` +
	`"overdose_warnings":[{"medicine":"","warning":"","max_daily_dose":""}],` +
	`"side_effects":{"common":[{"medicine":"","effects":[""]}],"serious":[{"medicine":"","effects":[""],"action_required":""}]},` +
	`"food_interactions":[{"medicine":"","food_item":"","interaction":"","recommendation":""}],` +
	`"lifestyle_advice":[{"medicine":"","advice":"","restrictions":[""]}],` +
	`"general_tips":[""]}`

// VisionInstruction is sent with prescription images to the vision model.
const VisionInstruction = "Extract all text from this prescription image. Return only the prescription text exactly as it appears, " +
	"including medication names, dosages, instructions, and any other relevant information. " +
	"Do not add any interpretation or analysis, just extract the raw text."

// BuildPrompt wraps prescription text in the analysis instructions. The text
// is embedded verbatim; the result depends on nothing but its input.
func BuildPrompt(prescriptionText string) string {
	var b strings.Builder
	b.Grow(len(prescriptionText) + len(schema) + 512)
	b.WriteString("You are a medical safety assistant. Analyze the prescription below and respond ONLY with one valid JSON object. ")
	b.WriteString("Do not include any text before or after the JSON.\n\n")
	b.WriteString("Prescription:\n")
	b.WriteString(prescriptionText)
	b.WriteString("\n\nReturn a JSON object with exactly this structure:\n")
	b.WriteString(schema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Return ONLY valid JSON: no markdown, no code fences, no explanations\n")
	b.WriteString("- Use an empty array when a section has no findings\n")
	b.WriteString("- Use empty strings for missing values, never null\n")
	b.WriteString("- Be thorough and accurate in your medical analysis")
	return b.String()
}
