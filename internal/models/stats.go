package models

// StatusCount — число постов в статусе.
type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CategoryRank — категория в топе по числу постов.
type CategoryRank struct {
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	TotalPosts int64  `json:"totalPosts"`
}

// CommentedPost — пост в топе по числу видимых комментариев.
type CommentedPost struct {
	Title    string `json:"title"`
	Comments int64  `json:"comments"`
}

// DayActivity — число постов, созданных за день (YYYY-MM-DD).
type DayActivity struct {
	Day   string `json:"day"`
	Posts int64  `json:"posts"`
}

// Dashboard — сводная статистика платформы.
type Dashboard struct {
	ActiveUsers        int64           `json:"activeUsers"`
	PostsByStatus      []StatusCount   `json:"postsByStatus"`
	TopCategories      []CategoryRank  `json:"topCategories"`
	MostCommented      []CommentedPost `json:"mostCommented"`
	ActivityLast30Days []DayActivity   `json:"activityLast30Days"`
}
