package events

import "slices"

// Admins is a list of user ids allowed to run admin commands
type Admins []int64

// IsAdmin checks if user id in the list
func (a Admins) IsAdmin(userID int64) bool {
	return userID != 0 && slices.Contains(a, userID)
}
