// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Curio Contributors

package types

// Stage identifies where in the recommendation pipeline a request currently is.
type Stage string

const (
	// StageReceived is the initial state after request validation.
	StageReceived Stage = "received"
	// StageEmbedding is the query embedding call.
	StageEmbedding Stage = "embedding"
	// StageRetrieving is the vector index query plus corpus join.
	StageRetrieving Stage = "retrieving"
	// StageRanking is filtering and score combination.
	StageRanking Stage = "ranking"
	// StageGenerating is the optional explanation call.
	StageGenerating Stage = "generating"
	// StageCompleted is the terminal success state.
	StageCompleted Stage = "completed"
	// StageFailed is the terminal failure state.
	StageFailed Stage = "failed"
)

// Valid reports whether the stage is a known pipeline stage.
func (s Stage) Valid() bool {
	switch s {
	case StageReceived, StageEmbedding, StageRetrieving, StageRanking,
		StageGenerating, StageCompleted, StageFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether the stage ends the request.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}
