package jwt

type Role int

const (
	RoleAgent Role = iota
	RoleAdmin
)

// AgentIdentity is what the auth collaborator encodes into a token and
// what the transport layer hands to the core: who is connected and in
// which role. The core never issues or refreshes these itself.
type AgentIdentity struct {
	AgentID string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}
