package model

import (
	"sync"

	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// ModelState は学習状態のスナップショットです。前処理ステップのgob状態にそのまま埋め込まれます。
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// StateManager は推定器・前処理ステップの学習状態を保持します。
// 学習済みモデルはリクエスト間で共有されるため、読み書きはRWMutexで保護します。
type StateManager struct {
	mu    sync.RWMutex
	state ModelState
}

// NewStateManager は未学習状態のStateManagerを返します。
func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Fitted
}

func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Fitted = true
}

// Reset は再学習の前に呼ばれ、状態を未学習に戻します。
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ModelState{}
}

// SetDimensions は学習時の特徴量数とサンプル数を記録します。
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NFeatures = nFeatures
	s.state.NSamples = nSamples
}

func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.NFeatures, s.state.NSamples
}

// RequireFitted は未学習ならmodelNameとmethodを含むNotFittedErrorを返します。
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return scigoerrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// GetState は現在の状態のコピーを返します。
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState はアーティファクトから復元した状態を設定します。
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
