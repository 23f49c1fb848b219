// Package lightgbm provides binary gradient-boosted decision trees in pure Go,
// trained leaf-wise like LightGBM and stored in LightGBM's text model format.
//
// Trees are grown leaf-wise: each step splits the leaf with the largest gain
// until num_leaves is reached or no split satisfies min_child_samples,
// min_child_weight and min_split_gain. Split search is exact and sparse-aware:
// rows without a stored value for a feature form an implicit group at zero,
// so TF-IDF matrices are handled without densifying them.
//
// # Basic Usage
//
//	clf := lightgbm.NewLGBMClassifier().
//		WithNumIterations(200).
//		WithLearningRate(0.05)
//	if err := clf.Fit(X, y); err != nil {
//		return err
//	}
//	labels, err := clf.Predict(XTest)
//
// # Model Files
//
// SaveText writes the same layout as Booster.save_model (version v3, one
// Tree=i block per tree, a parameters section), so a saved model can be
// inspected with LightGBM tooling. LoadText reads binary-objective models back.
// Only numerical splits with missing type "none" are supported; NaN is
// treated as zero.
package lightgbm
