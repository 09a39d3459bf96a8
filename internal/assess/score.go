package assess

import "math"

// MapEngineScores converts the engine's four sub-scores (each 0-100) into
// the normalized score contract. Rounding is half-up: an overall score of
// 90 maps to stars = round(4.5) = 5.
func MapEngineScores(recognizedText string, accuracy, fluency, completeness, pronunciation float64, words []WordScore) Result {
	accuracyScore := math.Round(accuracy)
	fluencyScore := math.Round(fluency)
	completenessScore := math.Round(completeness)
	pronunciationScore := math.Round(pronunciation)

	overall := math.Round((accuracyScore + fluencyScore + completenessScore + pronunciationScore) / 4)
	stars := clampStars(int(math.Round(overall / 20)))

	return Result{
		Stars:        stars,
		ToneScore:    accuracyScore,
		ClarityScore: pronunciationScore,
		Feedback:     FeedbackForStars(stars),
		Simulated:    false,
		Engine: &EngineData{
			RecognizedText:     recognizedText,
			AccuracyScore:      accuracyScore,
			PronunciationScore: pronunciationScore,
			CompletenessScore:  completenessScore,
			FluencyScore:       fluencyScore,
			OverallScore:       overall,
			Words:              words,
		},
	}
}

// FeedbackForStars is the fixed five-bucket feedback ladder keyed on stars.
func FeedbackForStars(stars int) string {
	switch {
	case stars >= 5:
		return "Perfect! Excellent pronunciation!"
	case stars >= 4:
		return "Great job! Very close to perfect!"
	case stars >= 3:
		return "Good effort! Keep practicing!"
	case stars >= 2:
		return "Nice try! Practice makes perfect!"
	default:
		return "Keep going! Try again!"
	}
}

func clampStars(stars int) int {
	if stars < 1 {
		return 1
	}
	if stars > 5 {
		return 5
	}
	return stars
}
