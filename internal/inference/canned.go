package inference

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/verte-zerg/readaid/internal/model"
)

// Canned estimation weights.
const (
	cannedLongWordRunes   = 9
	cannedAssistThreshold = 0.6
)

// Canned synthesizes a verdict locally from the request alone.
// Long words, long reading times and regressions raise the score.
func Canned(req model.AnalysisRequest) model.AnalysisResult {
	words := strings.Fields(req.Text)
	if len(words) == 0 {
		return model.AnalysisResult{Explanation: "Offline estimate: no text."}
	}

	long := 0
	for _, w := range words {
		if utf8.RuneCountInString(w) >= cannedLongWordRunes {
			long++
		}
	}
	lexical := float64(long) / float64(len(words))

	// Roughly 4 words per second is a comfortable reading pace.
	expected := float64(len(words)) / 4
	pace := 0.0
	if expected > 0 && req.ReadingTimeSeconds > expected {
		pace = math.Min(1, (req.ReadingTimeSeconds-expected)/expected)
	}

	regress := 0.0
	if req.GazeMetrics != nil {
		regress = math.Min(1, float64(req.GazeMetrics.RegressionCount)/5)
	}

	difficulty := clamp01(0.5*lexical + 0.3*pace + 0.2*regress)
	confusion := clamp01(0.4*lexical + 0.3*pace + 0.3*regress)
	needs := confusion > cannedAssistThreshold
	explanation := fmt.Sprintf("Offline estimate: %d of %d words are long", long, len(words))
	if regress > 0 {
		explanation += fmt.Sprintf(", %d regressions", req.GazeMetrics.RegressionCount)
	}
	explanation += "."
	return model.AnalysisResult{
		DifficultyScore:      difficulty,
		ConfusionProbability: confusion,
		NeedsAssistance:      needs,
		Explanation:          explanation,
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
