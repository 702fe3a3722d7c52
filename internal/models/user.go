package models

import "strings"

// Profile is the minimal display data the leaderboard joins onto aggregates.
type Profile struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	PhotoURL string `json:"photo_url"`
}

// DisplayName returns "FirstName L." format (first name + last initial).
func (p Profile) DisplayName() string {
	parts := strings.Fields(p.Name)
	if len(parts) <= 1 {
		return strings.TrimSpace(p.Name)
	}
	lastName := []rune(parts[len(parts)-1])
	if len(lastName) > 0 {
		return parts[0] + " " + string(lastName[0]) + "."
	}
	return parts[0]
}

type ErrorResponse struct {
	Error string `json:"error"`
}
