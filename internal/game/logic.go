package game

// RolesFilled returns true if the lineup is exactly one explorer and
// one protector.
func RolesFilled(players []*Player) bool {
	explorers := 0
	protectors := 0
	for _, p := range players {
		switch p.Role {
		case RoleExplorer:
			explorers++
		case RoleProtector:
			protectors++
		}
	}
	return explorers == 1 && protectors == 1
}

// ReadyToStart returns true if the roles are filled and every player
// has readied up.
func ReadyToStart(players []*Player) bool {
	if len(players) < MinPlayers {
		return false
	}
	for _, p := range players {
		if !p.Ready {
			return false
		}
	}
	return RolesFilled(players)
}
