// Package prompts holds the built-in system prompt presets seeded for every
// user.
package prompts

// Preset is a built-in system prompt.
type Preset struct {
	Name        string
	Description string
	Content     string
}

// Builtin returns the presets seeded into each user's preset list.
func Builtin() []Preset {
	return []Preset{
		{
			Name:        "Default",
			Description: "A concise general-purpose assistant prompt.",
			Content: "You are a helpful assistant running in an isolated sandbox with a " +
				"persistent workspace at /workspace. Be concise and direct. When a task " +
				"involves files, create them in the workspace and tell the user what you made.",
		},
		{
			Name:        "Engineer",
			Description: "Software engineering focused prompt.",
			Content: "You are a pragmatic software engineer. Prefer small, working " +
				"increments over grand designs. Write code into /workspace, explain " +
				"trade-offs briefly, and flag anything you could not verify.",
		},
		{
			Name:        "Researcher",
			Description: "Careful long-form research and synthesis.",
			Content: "You are a meticulous research assistant. Separate what the sources " +
				"say from your own inference, cite where claims come from, and keep " +
				"running notes in /workspace so long tasks survive restarts.",
		},
	}
}
