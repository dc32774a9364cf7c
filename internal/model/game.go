package model

// GameInfo holds the identity of a game. DisplayName is the canonical join
// key between the priority list, the dashboard and the inventory.
type GameInfo struct {
	ID          string
	Name        string
	DisplayName string
	Slug        string
}

// String returns the most presentable name available.
func (g GameInfo) String() string {
	if g.DisplayName != "" {
		return g.DisplayName
	}
	return g.Name
}
