package domain

import "time"

// StartingCoins is granted the first time a user is seen by get_userdata.
const StartingCoins = 1000

// WinsPerLevel is the number of wins required to advance one level.
const WinsPerLevel = 10

// User is the persisted profile tracked by the user store.
type User struct {
	UserID           string    `json:"user_id"`
	UserName         string    `json:"user_name"`
	Coins            int64     `json:"coins"`
	WinCount         int64     `json:"win_count"`
	LostCount        int64     `json:"lost_count"`
	TotalGamesPlayed int64     `json:"total_games_played"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdate       time.Time `json:"last_update"`
}

// NewUser creates a freshly seeded profile with the starting coin grant.
func NewUser(userID, userName string) *User {
	now := time.Now()
	return &User{
		UserID:     userID,
		UserName:   userName,
		Coins:      StartingCoins,
		CreatedAt:  now,
		LastUpdate: now,
	}
}

// Level is derived from win count, never stored directly.
func (u *User) Level() int64 {
	return 1 + u.WinCount/WinsPerLevel
}
