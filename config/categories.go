package config

// CategoryStyle is the display configuration for an activity category
type CategoryStyle struct {
	Label string
	Icon  string
	Color string
}

var categoryStyles = map[string]CategoryStyle{
	"agent":     {Label: "Agent", Icon: "robot", Color: "#7c3aed"},
	"tool":      {Label: "Tool", Icon: "wrench", Color: "#0ea5e9"},
	"business":  {Label: "Business", Icon: "briefcase", Color: "#64748b"},
	"llm":       {Label: "LLM", Icon: "sparkles", Color: "#f59e0b"},
	"challenge": {Label: "Challenge", Icon: "flag", Color: "#16a34a"},
	"badge":     {Label: "Badge", Icon: "medal", Color: "#eab308"},
}

var defaultCategoryStyle = CategoryStyle{Label: "Activity", Icon: "circle", Color: "#94a3b8"}

// StyleForCategory resolves the display style for a category, falling back to
// a neutral default for unknown values
func StyleForCategory(category string) CategoryStyle {
	if style, exists := categoryStyles[category]; exists {
		return style
	}
	return defaultCategoryStyle
}
