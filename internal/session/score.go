package session

import (
	"math"
	"strconv"
)

// Scoring constants. They define the published scoring contract and must
// not be tuned.
const (
	DefaultScore = 50.0  // score of a zero-length session
	MinScore     = 15.0  // lower clamp of the weighted score
	MaxScore     = 100.0 // upper clamp of the weighted score

	ComponentFloor = 10.0  // lowest motion or sound component score
	MaxPenalty     = 100.0 // largest penalty subtracted from a component

	MotionPenaltyPerPercent = 1.5 // penalty per percent of time in motion
	SoundPenaltyPerPeakHour = 5.0 // penalty per sound peak per hour

	HighMotionPercent  = 50.0 // motion percentage above which motion dominates
	HighSoundFrequency = 20.0 // peaks per hour above which sound dominates
)

// Weights splits the final score between the motion and sound components.
type Weights struct {
	Motion float64
	Sound  float64
}

var (
	DefaultWeights    = Weights{Motion: 0.6, Sound: 0.4}
	HighMotionWeights = Weights{Motion: 0.7, Sound: 0.3}
	HighSoundWeights  = Weights{Motion: 0.4, Sound: 0.6}
)

// MotionScore maps the percentage of time in motion to a component score.
func MotionScore(motionPercentage float64) float64 {
	return math.Max(100-math.Min(motionPercentage*MotionPenaltyPerPercent, MaxPenalty), ComponentFloor)
}

// SoundScore maps sound peaks per hour to a component score.
func SoundScore(soundFrequency float64) float64 {
	return math.Max(100-math.Min(soundFrequency*SoundPenaltyPerPeakHour, MaxPenalty), ComponentFloor)
}

// SelectWeights picks the weight set. The high-motion branch is checked
// first and both thresholds are strict.
func SelectWeights(motionPercentage, soundFrequency float64) Weights {
	switch {
	case motionPercentage > HighMotionPercent:
		return HighMotionWeights
	case soundFrequency > HighSoundFrequency:
		return HighSoundWeights
	default:
		return DefaultWeights
	}
}

// Stats are the inputs of the score.
type Stats struct {
	TotalHours  float64
	MotionHours float64
	SoundPeaks  int
}

// MotionPercentage is the share of monitored time spent in motion, or 0 for
// an empty session.
func (s Stats) MotionPercentage() float64 {
	if s.TotalHours <= 0 {
		return 0
	}
	return s.MotionHours / s.TotalHours * 100
}

// SoundFrequency is sound peaks per hour, or 0 for an empty session.
func (s Stats) SoundFrequency() float64 {
	if s.TotalHours <= 0 {
		return 0
	}
	return float64(s.SoundPeaks) / s.TotalHours
}

// CalculateScore computes the sleep score in [MinScore, MaxScore], rounded
// to two decimals. Sessions with no positive duration score DefaultScore.
func CalculateScore(s Stats) float64 {
	if s.TotalHours <= 0 {
		return DefaultScore
	}

	mp := s.MotionPercentage()
	sf := s.SoundFrequency()
	w := SelectWeights(mp, sf)

	score := MotionScore(mp)*w.Motion + SoundScore(sf)*w.Sound
	return Round2(math.Min(math.Max(score, MinScore), MaxScore))
}

// Round2 rounds to two decimals, halves to even on the exact binary value.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
