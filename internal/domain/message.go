package domain

// TurnRole identifies who produced a conversation turn
type TurnRole string

const (
	TurnRoleUser  TurnRole = "user"
	TurnRoleModel TurnRole = "model"
)

// Turn represents one prior exchange in a conversation. Turns are ephemeral
// in this layer; persistence belongs to the caller's message store.
type Turn struct {
	Role TurnRole
	Text string
}

// Source represents a grounding citation attached to model output
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
