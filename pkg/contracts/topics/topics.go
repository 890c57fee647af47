package topics

const (
	// Resultados
	MatchFinalized = "match_finalized"

	// Pontuação
	ScoringCompleted = "scoring_completed"

	// Canal Redis pub/sub do ranking (WS do pool-api)
	LeaderboardBroadcast = "leaderboard_broadcast"
)
