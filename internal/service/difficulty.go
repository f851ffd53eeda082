package service

const (
	MinDifficulty  = 1.0
	MaxDifficulty  = 10.0
	difficultyStep = 0.5

	// 分数阈值：>=7 加难度，<=4 降难度，其余保持
	raiseScoreThreshold = 7
	lowerScoreThreshold = 4
)

// NextDifficulty 纯函数：根据上一题得分调整难度，结果收敛在[1,10]
func NextDifficulty(current float64, lastScore int) float64 {
	next := current
	switch {
	case lastScore >= raiseScoreThreshold:
		next = current + difficultyStep
	case lastScore <= lowerScoreThreshold:
		next = current - difficultyStep
	}

	if next > MaxDifficulty {
		next = MaxDifficulty
	}
	if next < MinDifficulty {
		next = MinDifficulty
	}
	return next
}
