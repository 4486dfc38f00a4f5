package ingest

import (
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

const (
	// structuralBonus is added when a header row has a provider-specific shape.
	structuralBonus = 8
	// matrixBonus is added to AWS for Cost Explorer "Service View" exports.
	matrixBonus = 14
	// minWinningScore is the lowest score that can win detection.
	minWinningScore = 8
	// minWinningLead is how far the winner must be ahead of the runner-up.
	minWinningLead = 3
)

// Detection is the outcome of scoring a header row against the registry.
type Detection struct {
	// Provider is the winner, or empty when detection is ambiguous.
	Provider domain.Provider
	Scores   map[domain.Provider]int
	// Matrix marks an AWS pivot export with one column per service.
	Matrix bool
}

// Confident reports whether a provider won detection.
func (d Detection) Confident() bool {
	return d.Provider != ""
}

// Detect scores headers for every registered provider. The result depends
// only on the header row.
func Detect(headers []string) Detection {
	norm := normalizeHeaders(headers)
	det := Detection{
		Scores: make(map[domain.Provider]int, len(domain.Providers)),
		Matrix: isMatrixHeader(norm),
	}

	for _, p := range domain.Providers {
		schema := Registry[p]
		score := 0
		for _, f := range scoredFields {
			if matchesAny(norm, schema.Candidates[f]) {
				score += fieldWeights[f]
			}
		}
		if schema.Structural != nil && schema.Structural(norm) {
			score += structuralBonus
		}
		if p == domain.ProviderAWS && det.Matrix {
			score += matrixBonus
		}
		det.Scores[p] = score
	}

	var best, runnerUp domain.Provider
	for _, p := range domain.Providers {
		switch {
		case best == "" || det.Scores[p] > det.Scores[best]:
			runnerUp = best
			best = p
		case runnerUp == "" || det.Scores[p] > det.Scores[runnerUp]:
			runnerUp = p
		}
	}

	lead := det.Scores[best]
	if runnerUp != "" {
		lead -= det.Scores[runnerUp]
	}
	if det.Scores[best] >= minWinningScore && lead >= minWinningLead {
		det.Provider = best
	}

	return det
}

// isMatrixHeader recognises the AWS Cost Explorer pivot layout: the first
// column is literally "service" and one column holds the total costs.
func isMatrixHeader(norm []string) bool {
	if len(norm) < 2 || norm[0] != "service" {
		return false
	}
	return matrixTotalColumn(norm) > 0
}

func matrixTotalColumn(norm []string) int {
	for i, h := range norm {
		if strings.Contains(h, "total cost") {
			return i
		}
	}
	return -1
}
