package speakers

import (
	"voice-analyze/voice"
)

// Match is the outcome of an identification query.
type Match struct {
	Speaker string  `json:"speaker"`
	Score   float64 `json:"score"`
	Found   bool    `json:"found"`
}

// Name returns the matched speaker or voice.UnknownSpeaker.
func (m Match) Name() string {
	if !m.Found {
		return voice.UnknownSpeaker
	}
	return m.Speaker
}

// Identify scores each speaker by the best cosine similarity between query
// and any of its vectors, and returns the best-scoring speaker. Groups whose
// dimension differs from the query are skipped. Ties go to the speaker
// enrolled first. An empty database, or one with no comparable group,
// yields an unfound match with score 0.
func Identify(db *Database, query []float64) Match {
	var best Match
	db.Each(func(id string, vectors [][]float64) bool {
		if len(vectors) == 0 || len(vectors[0]) != len(query) {
			return true
		}

		speakerScore := 0.0
		for i, v := range vectors {
			sim := voice.CosineSimilarity(query, v)
			if i == 0 || sim > speakerScore {
				speakerScore = sim
			}
		}

		if !best.Found || speakerScore > best.Score {
			best = Match{Speaker: id, Score: speakerScore, Found: true}
		}
		return true
	})
	return best
}

// IdentifyWithThreshold behaves like Identify but reports no speaker when the
// best score is below minScore. The score is still returned.
func IdentifyWithThreshold(db *Database, query []float64, minScore float64) Match {
	m := Identify(db, query)
	if m.Found && m.Score < minScore {
		return Match{Score: m.Score}
	}
	return m
}
