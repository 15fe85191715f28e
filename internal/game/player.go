package game

import (
	"encoding/json"

	"github.com/google/uuid"
)

type Role int

const (
	RoleNone Role = iota
	RoleExplorer
	RoleProtector
)

func (r Role) String() string {
	switch r {
	case RoleExplorer:
		return "explorer"
	case RoleProtector:
		return "protector"
	default:
		return "none"
	}
}

// MarshalJSON serializes Role as a string.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes Role from a string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "explorer":
		*r = RoleExplorer
	case "protector":
		*r = RoleProtector
	default:
		*r = RoleNone
	}
	return nil
}

// ParseRole maps a wire role name to a Role; unknown names are RoleNone.
func ParseRole(s string) Role {
	switch s {
	case "explorer":
		return RoleExplorer
	case "protector":
		return RoleProtector
	default:
		return RoleNone
	}
}

type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
	Ready    bool   `json:"ready"`
}

func NewPlayer(nickname string) *Player {
	return &Player{
		ID:       uuid.New().String(),
		Nickname: nickname,
		Role:     RoleNone,
	}
}

func (p *Player) SetRole(role Role) {
	p.Role = role
}

// Reset clears per-match state, keeping identity and role.
func (p *Player) Reset() {
	p.Ready = false
}
