package stats

type DaysStat struct {
	Period        string `json:"period"` // "week", "month", "year", "all_time"
	DaysCompleted int    `json:"days_completed" db:"days_completed"`
	TotalDays     int    `json:"total_days"`
}

// Snapshot carries every scalar the badge engine can evaluate against.
// Time-of-day and weekly/monthly counters are precomputed from raw
// completion timestamps before the snapshot is handed to the engine;
// the engine itself does no date arithmetic.
type Snapshot struct {
	ChallengesCompleted  int `json:"challenges_completed"`
	Level                int `json:"level"`
	Streak               int `json:"streak"`
	Reflections          int `json:"reflections"`
	Shares               int `json:"shares"`
	LikesGiven           int `json:"likes_given"`
	LikesReceived        int `json:"likes_received"`
	Comments             int `json:"comments"`
	PacksCompleted       int `json:"packs_completed"`
	EarlyBirdCompletions int `json:"early_bird_completions"`
	CompletionsThisWeek  int `json:"completions_this_week"`
	CompletionsThisMonth int `json:"completions_this_month"`
}

type UserStats struct {
	TodayCompleted   bool    `json:"today_completed"`
	DaysThisWeek     int     `json:"days_this_week"`
	DaysThisMonth    int     `json:"days_this_month"`
	DaysThisYear     int     `json:"days_this_year"`
	TotalCompletions int     `json:"total_completions"`
	CurrentStreak    int     `json:"current_streak"`
	LongestStreak    int     `json:"longest_streak"`
	XP               int     `json:"xp"`
	Level            int     `json:"level"`
	BadgesCount      int     `json:"badges_count"`
	FriendsCount     int     `json:"friends_count"`
	EngagementScore  float64 `json:"engagement_score"`
	Rank             int     `json:"rank"`
}
