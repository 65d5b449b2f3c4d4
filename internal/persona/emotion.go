package persona

import (
	"fmt"
	"strings"
)

// Emotion names, in the order used to break ties.
const (
	Trust        = "trust"
	Fear         = "fear"
	Anger        = "anger"
	Anticipation = "anticipation"
	Sadness      = "sadness"
	Disgust      = "disgust"
	Surprise     = "surprise"
	Joy          = "joy"
)

// MaxEmotion is the upper bound of every emotion value.
const MaxEmotion = 10.0

var emotionOrder = []string{Trust, Fear, Anger, Anticipation, Sadness, Disgust, Surprise, Joy}

// Emotion is an agent's inner emotional state, each value in 0..10.
type Emotion struct {
	Trust        float64 `yaml:"trust"        json:"trust"`
	Fear         float64 `yaml:"fear"         json:"fear"`
	Anger        float64 `yaml:"anger"        json:"anger"`
	Anticipation float64 `yaml:"anticipation" json:"anticipation"`
	Sadness      float64 `yaml:"sadness"      json:"sadness"`
	Disgust      float64 `yaml:"disgust"      json:"disgust"`
	Surprise     float64 `yaml:"surprise"     json:"surprise"`
	Joy          float64 `yaml:"joy"          json:"joy"`
}

func (e Emotion) values() []float64 {
	return []float64{e.Trust, e.Fear, e.Anger, e.Anticipation, e.Sadness, e.Disgust, e.Surprise, e.Joy}
}

// Validate checks that every value lies in 0..MaxEmotion.
func (e Emotion) Validate() error {
	var bad []string
	for i, v := range e.values() {
		if v < 0 || v > MaxEmotion {
			bad = append(bad, fmt.Sprintf("%s=%v", emotionOrder[i], v))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("emotion values out of range 0..%v: %s", MaxEmotion, strings.Join(bad, ", "))
	}
	return nil
}

// Extreme returns the strongest emotion. Ties go to the emotion listed first.
func (e Emotion) Extreme() (string, float64) {
	values := e.values()
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return emotionOrder[best], values[best]
}

// IsPositive reports whether name is one of trust, joy, anticipation or surprise.
func IsPositive(name string) bool {
	switch name {
	case Trust, Joy, Anticipation, Surprise:
		return true
	}
	return false
}
