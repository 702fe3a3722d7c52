package gamification

// DefaultLevelThresholds is the cumulative points needed to reach each level.
// Index 0 is level 1.
var DefaultLevelThresholds = []int64{0, 50, 150, 300, 500, 800, 1200, 1700, 2300, 3000}

// LevelSystem maps accumulated points to a level. It is immutable after
// construction and safe to share.
type LevelSystem struct {
	thresholds []int64
}

// NewLevelSystem copies thresholds, which must start at 0 and be strictly ascending.
func NewLevelSystem(thresholds []int64) (*LevelSystem, error) {
	if len(thresholds) == 0 || thresholds[0] != 0 {
		return nil, validationf("level table must start at 0 points")
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, validationf("level thresholds must be strictly ascending (level %d)", i+1)
		}
	}
	t := make([]int64, len(thresholds))
	copy(t, thresholds)
	return &LevelSystem{thresholds: t}, nil
}

// MustLevelSystem is NewLevelSystem for tables known at compile time.
func MustLevelSystem(thresholds []int64) *LevelSystem {
	l, err := NewLevelSystem(thresholds)
	if err != nil {
		panic(err)
	}
	return l
}

// MaxLevel returns the highest level in the table.
func (l *LevelSystem) MaxLevel() int {
	return len(l.thresholds)
}

// Threshold returns the points required to reach level.
func (l *LevelSystem) Threshold(level int) int64 {
	if level <= 1 {
		return 0
	}
	if level > len(l.thresholds) {
		return l.thresholds[len(l.thresholds)-1]
	}
	return l.thresholds[level-1]
}

// LevelFor returns the highest level whose threshold is <= points.
func (l *LevelSystem) LevelFor(points int64) int {
	level := 1
	for i, t := range l.thresholds {
		if points < t {
			break
		}
		level = i + 1
	}
	return level
}

// PointsForNextLevel returns the threshold of currentLevel+1, or the top
// threshold when currentLevel is already the maximum.
func (l *LevelSystem) PointsForNextLevel(currentLevel int) int64 {
	if currentLevel >= l.MaxLevel() {
		return l.thresholds[len(l.thresholds)-1]
	}
	return l.Threshold(currentLevel + 1)
}

// ProgressToNextLevel returns progress through the current level in [0, 1].
// At the top level the span is zero and progress reads as complete.
func (l *LevelSystem) ProgressToNextLevel(points int64, currentLevel int) float64 {
	base := l.Threshold(currentLevel)
	span := l.PointsForNextLevel(currentLevel) - base
	if span <= 0 {
		return 1.0
	}
	progress := float64(points-base) / float64(span)
	if progress < 0 {
		return 0
	}
	if progress > 1 {
		return 1
	}
	return progress
}
