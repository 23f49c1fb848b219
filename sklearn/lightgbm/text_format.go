package lightgbm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	scigoErrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// maxLineSize bounds a single line of a model file. Array lines of large trees
// exceed bufio.Scanner's 64KiB default.
const maxLineSize = 64 << 20

// SaveText writes the model in LightGBM's text model format (version v3), the
// format produced by Booster.save_model. Floats are written with the shortest
// representation that parses back to the same value.
func (m *Model) SaveText(w io.Writer) error {
	trees := make([][]byte, len(m.Trees))
	sizes := make([]int, len(m.Trees))
	for i := range m.Trees {
		var buf bytes.Buffer
		writeTree(&buf, i, &m.Trees[i])
		trees[i] = buf.Bytes()
		sizes[i] = buf.Len()
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "tree")
	fmt.Fprintln(bw, "version=v3")
	fmt.Fprintln(bw, "num_class=1")
	fmt.Fprintln(bw, "num_tree_per_iteration=1")
	fmt.Fprintln(bw, "label_index=0")
	fmt.Fprintf(bw, "max_feature_idx=%d\n", m.NumFeatures-1)
	fmt.Fprintf(bw, "objective=%s sigmoid:1\n", m.Objective)
	fmt.Fprintf(bw, "feature_names=%s\n", strings.Join(sanitizeNames(m.featureNames()), " "))
	fmt.Fprintf(bw, "feature_infos=%s\n", strings.TrimSpace(strings.Repeat("none ", m.NumFeatures)))
	fmt.Fprintf(bw, "tree_sizes=%s\n", joinInts(sizes))
	if len(m.Classes) > 0 {
		fmt.Fprintf(bw, "classes=%s\n", joinInts(m.Classes))
	}
	fmt.Fprintln(bw)

	for _, t := range trees {
		if _, err := bw.Write(t); err != nil {
			return scigoErrors.Wrap(err, "failed to write tree")
		}
	}

	fmt.Fprintln(bw, "end of trees")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "parameters:")
	for _, k := range m.sortedParameterKeys() {
		fmt.Fprintf(bw, "[%s: %s]\n", k, m.Parameters[k])
	}
	fmt.Fprintln(bw, "end of parameters")

	if err := bw.Flush(); err != nil {
		return scigoErrors.Wrap(err, "failed to write model")
	}
	return nil
}

func writeTree(w io.Writer, index int, t *Tree) {
	fmt.Fprintf(w, "Tree=%d\n", index)
	fmt.Fprintf(w, "num_leaves=%d\n", t.NumLeaves)
	fmt.Fprintln(w, "num_cat=0")
	fmt.Fprintf(w, "split_feature=%s\n", joinInts(t.SplitFeature))
	fmt.Fprintf(w, "split_gain=%s\n", joinFloats(t.SplitGain))
	fmt.Fprintf(w, "threshold=%s\n", joinFloats(t.Threshold))
	// decision_type 2: numerical split, default left, missing type none
	fmt.Fprintf(w, "decision_type=%s\n", strings.TrimSpace(strings.Repeat("2 ", t.NumNodes())))
	fmt.Fprintf(w, "left_child=%s\n", joinInts(t.LeftChild))
	fmt.Fprintf(w, "right_child=%s\n", joinInts(t.RightChild))
	fmt.Fprintf(w, "leaf_value=%s\n", joinFloats(t.LeafValue))
	fmt.Fprintf(w, "leaf_weight=%s\n", joinFloats(t.LeafWeight))
	fmt.Fprintf(w, "leaf_count=%s\n", joinInts(t.LeafCount))
	fmt.Fprintf(w, "internal_value=%s\n", joinFloats(t.InternalValue))
	fmt.Fprintf(w, "internal_weight=%s\n", joinFloats(t.InternalWeight))
	fmt.Fprintf(w, "internal_count=%s\n", joinInts(t.InternalCount))
	fmt.Fprintln(w, "is_linear=0")
	fmt.Fprintf(w, "shrinkage=%s\n", formatFloat(t.Shrinkage))
	fmt.Fprintln(w)
	fmt.Fprintln(w)
}

// LoadText reads a binary-objective model in LightGBM's text format.
func LoadText(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	header, err := readParamsUntilBlank(sc)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "failed to read model header")
	}
	if v := header["version"]; v != "v3" {
		return nil, scigoErrors.Newf("unsupported model version %q", v)
	}
	obj := strings.Fields(header["objective"])
	if len(obj) == 0 || ObjectiveType(obj[0]) != BinaryLogistic {
		return nil, scigoErrors.Newf("unsupported objective %q", header["objective"])
	}
	if n, _ := header.toInt("num_class"); n > 1 {
		return nil, scigoErrors.Newf("unsupported num_class %d", n)
	}

	m := NewModel()
	maxFeature, err := header.toInt("max_feature_idx")
	if err != nil {
		return nil, err
	}
	m.NumFeatures = maxFeature + 1
	if names := strings.Fields(header["feature_names"]); len(names) == m.NumFeatures {
		m.FeatureNames = names
	}
	m.Classes = []int{0, 1}
	if _, ok := header["classes"]; ok {
		if m.Classes, err = header.toIntSlice("classes"); err != nil {
			return nil, err
		}
		if len(m.Classes) != 2 {
			return nil, scigoErrors.Newf("expected 2 classes, got %d", len(m.Classes))
		}
	}

	nTrees := len(strings.Fields(header["tree_sizes"]))
	m.Trees = make([]Tree, 0, nTrees)
	for i := 0; i < nTrees; i++ {
		params, err := readParamsUntilBlank(sc)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "error reading tree %d", i)
		}
		tree, err := parseTree(params, m.NumFeatures)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "error reading tree %d", i)
		}
		m.Trees = append(m.Trees, tree)
	}

	inParams := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "parameters:":
			inParams = true
		case line == "end of parameters":
			inParams = false
		case inParams && strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
			kv := strings.SplitN(line[1:len(line)-1], ":", 2)
			if len(kv) == 2 {
				m.Parameters[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, scigoErrors.Wrap(err, "failed to read model")
	}
	return m, nil
}

func parseTree(p treeParams, numFeatures int) (Tree, error) {
	var t Tree
	var err error
	if t.NumLeaves, err = p.toInt("num_leaves"); err != nil {
		return t, err
	}
	if t.NumLeaves < 1 {
		return t, scigoErrors.New("num_leaves < 1")
	}
	if v, ok := p["shrinkage"]; ok {
		if t.Shrinkage, err = strconv.ParseFloat(v, 64); err != nil {
			return t, err
		}
	}

	ints := map[string]*[]int{
		"split_feature":  &t.SplitFeature,
		"left_child":     &t.LeftChild,
		"right_child":    &t.RightChild,
		"internal_count": &t.InternalCount,
		"leaf_count":     &t.LeafCount,
	}
	for key, dst := range ints {
		if *dst, err = p.toIntSlice(key); err != nil {
			return t, err
		}
	}
	floats := map[string]*[]float64{
		"split_gain":      &t.SplitGain,
		"threshold":       &t.Threshold,
		"internal_value":  &t.InternalValue,
		"internal_weight": &t.InternalWeight,
		"leaf_value":      &t.LeafValue,
		"leaf_weight":     &t.LeafWeight,
	}
	for key, dst := range floats {
		if *dst, err = p.toFloat64Slice(key); err != nil {
			return t, err
		}
	}

	nodes := t.NumLeaves - 1
	for key, n := range map[string]int{
		"split_feature": len(t.SplitFeature),
		"threshold":     len(t.Threshold),
		"left_child":    len(t.LeftChild),
		"right_child":   len(t.RightChild),
	} {
		if n != nodes {
			return t, scigoErrors.Newf("%s has %d entries, want %d", key, n, nodes)
		}
	}
	if len(t.LeafValue) != t.NumLeaves {
		return t, scigoErrors.Newf("leaf_value has %d entries, want %d", len(t.LeafValue), t.NumLeaves)
	}
	for k := 0; k < nodes; k++ {
		if f := t.SplitFeature[k]; f < 0 || f >= numFeatures {
			return t, scigoErrors.Newf("split_feature %d out of range", f)
		}
		for _, c := range []int{t.LeftChild[k], t.RightChild[k]} {
			if (c >= 0 && c >= nodes) || (c < 0 && ^c >= t.NumLeaves) {
				return t, scigoErrors.Newf("child %d out of range", c)
			}
		}
	}
	return t, nil
}

type treeParams map[string]string

// readParamsUntilBlank reads key=value lines up to the next blank line after
// at least one pair. Lines without '=' (the leading "tree") are skipped.
func readParamsUntilBlank(sc *bufio.Scanner) (treeParams, error) {
	params := make(treeParams)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if len(params) > 0 {
				return params, nil
			}
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok {
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(params) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return params, nil
}

func (p treeParams) toInt(key string) (int, error) {
	v, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("key %s not found", key)
	}
	return strconv.Atoi(v)
}

func (p treeParams) toIntSlice(key string) ([]int, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	parts := strings.Fields(v)
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		result = append(result, val)
	}
	return result, nil
}

func (p treeParams) toFloat64Slice(key string) ([]float64, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found", key)
	}
	parts := strings.Fields(v)
	result := make([]float64, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		result = append(result, val)
	}
	return result, nil
}

func sanitizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.Join(strings.Fields(n), "_")
		if out[i] == "" {
			out[i] = "Column_" + strconv.Itoa(i)
		}
	}
	return out
}

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = formatFloat(x)
	}
	return strings.Join(parts, " ")
}
