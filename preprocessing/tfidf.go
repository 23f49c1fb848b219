package preprocessing

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/core/parallel"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// TfidfName はTfidfVectorizerのレジストリ名です。
const TfidfName = "tfidf"

// parallelDocThreshold 未満の文書数では逐次処理します。
const parallelDocThreshold = 512

func init() {
	Register(TfidfName, func(params Params) (Preprocessor, error) {
		var opts TfidfOptions
		if err := decodeParams(TfidfName, params, &opts); err != nil {
			return nil, err
		}
		return NewTfidfVectorizer(opts)
	})
}

// TfidfOptions はTfidfVectorizerのパラメータです。ゼロ値の項目には既定値が使われます。
type TfidfOptions struct {
	// TextColumn は入力テキスト列の名前（既定値: "text"）
	TextColumn string `json:"text_column"`

	// ColumnsSuffix は出力列名の接尾辞（既定値: "_tfidf"）。出力列は "{語彙番号}{接尾辞}"。
	ColumnsSuffix string `json:"columns_suffix"`

	// Lowercase はトークン化の前に小文字化するか（既定値: true）
	Lowercase *bool `json:"lowercase"`

	// MinDF は語彙に含めるための最小文書頻度（件数、既定値: 1）
	MinDF int `json:"min_df"`

	// MaxDF は語彙に含めるための最大文書頻度（割合、既定値: 1.0）
	MaxDF float64 `json:"max_df"`

	// MaxFeatures が正の場合、コーパス全体の出現回数の上位のみを語彙に残します
	MaxFeatures int `json:"max_features"`

	// NgramRange は抽出する単語n-gramの範囲（既定値: [1, 1]）
	NgramRange [2]int `json:"ngram_range"`

	// SublinearTF は tf を 1 + log(tf) に置き換えます
	SublinearTF bool `json:"sublinear_tf"`

	// Norm は行の正規化方法 "l2"（既定値）、"l1"、"none"
	Norm string `json:"norm"`

	// SmoothIDF は文書頻度に1を加えてゼロ除算を防ぎます（既定値: true）
	SmoothIDF *bool `json:"smooth_idf"`
}

func (o *TfidfOptions) setDefaults() {
	if o.TextColumn == "" {
		o.TextColumn = "text"
	}
	if o.ColumnsSuffix == "" {
		o.ColumnsSuffix = "_tfidf"
	}
	if o.MinDF == 0 {
		o.MinDF = 1
	}
	if o.MaxDF == 0 {
		o.MaxDF = 1.0
	}
	if o.NgramRange == [2]int{} {
		o.NgramRange = [2]int{1, 1}
	}
	if o.Norm == "" {
		o.Norm = "l2"
	}
}

func (o *TfidfOptions) validate() error {
	switch {
	case o.MinDF < 1:
		return errors.NewConfigError("preprocessor", TfidfName, "min_df must be >= 1")
	case o.MaxDF <= 0 || o.MaxDF > 1:
		return errors.NewConfigError("preprocessor", TfidfName, "max_df must be in (0, 1]")
	case o.MaxFeatures < 0:
		return errors.NewConfigError("preprocessor", TfidfName, "max_features must be >= 0")
	case o.NgramRange[0] < 1 || o.NgramRange[1] < o.NgramRange[0]:
		return errors.NewConfigError("preprocessor", TfidfName, "ngram_range must satisfy 1 <= min <= max")
	}
	switch o.Norm {
	case "l1", "l2", "none":
	default:
		return errors.NewConfigError("preprocessor", TfidfName, fmt.Sprintf("unknown norm %q", o.Norm))
	}
	return nil
}

// TfidfVectorizer はテキスト列からTF-IDF特徴量を学習し、疎な数値列として追加します。
//
// scikit-learnの TfidfVectorizer と同じ定義です:
//   - 語彙は辞書順に番号付けされます
//   - idf = ln((1 + n) / (1 + df)) + 1（smooth_idf=true の場合）
//   - 各行は既定でL2正規化されます
//
// 元のテキスト列は残ります。後続の drop ステップで削除してください。
type TfidfVectorizer struct {
	opts       TfidfOptions
	vocabulary map[string]int
	idf        []float64
	state      *model.StateManager
	logger     log.Logger
}

// NewTfidfVectorizer は新しいTfidfVectorizerを作成します。
func NewTfidfVectorizer(opts TfidfOptions) (*TfidfVectorizer, error) {
	opts.setDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &TfidfVectorizer{
		opts:   opts,
		state:  model.NewStateManager(),
		logger: log.GetLoggerWithName("preprocessing").With(log.PreprocessorKey, TfidfName),
	}, nil
}

// Name は登録名を返します。
func (v *TfidfVectorizer) Name() string { return TfidfName }

// Vocabulary は学習済みの語彙（語→列番号）のコピーを返します。
func (v *TfidfVectorizer) Vocabulary() map[string]int {
	out := make(map[string]int, len(v.vocabulary))
	for k, i := range v.vocabulary {
		out[k] = i
	}
	return out
}

// IDF は学習済みのidfベクトルのコピーを返します。
func (v *TfidfVectorizer) IDF() []float64 {
	return append([]float64(nil), v.idf...)
}

// FeatureNames は出力列名を列番号順に返します。
func (v *TfidfVectorizer) FeatureNames() []string {
	names := make([]string, len(v.idf))
	for i := range names {
		names[i] = strconv.Itoa(i) + v.opts.ColumnsSuffix
	}
	return names
}

func (v *TfidfVectorizer) analyzer() analyzer {
	return analyzer{lowercase: boolOr(v.opts.Lowercase, true), ngramRange: v.opts.NgramRange}
}

func (v *TfidfVectorizer) textColumn(t *frame.Table, op string) (frame.Column, error) {
	col, ok := t.Column(v.opts.TextColumn)
	if !ok {
		return frame.Column{}, errors.NewValueError(op, fmt.Sprintf("column %q not found", v.opts.TextColumn))
	}
	if col.Kind() != frame.Text {
		return frame.Column{}, errors.NewValueError(op, fmt.Sprintf("column %q is %s, want text", v.opts.TextColumn, col.Kind()))
	}
	return col, nil
}

// Fit は文書頻度から語彙とidfを学習します。語彙が空になる場合は ValueError です。
func (v *TfidfVectorizer) Fit(t *frame.Table) error {
	col, err := v.textColumn(t, "TfidfVectorizer.Fit")
	if err != nil {
		return err
	}
	n := col.Len()
	if n == 0 {
		return errors.NewModelError("TfidfVectorizer.Fit", "empty data", errors.ErrEmptyData)
	}

	a := v.analyzer()
	caser := newCaser()
	df := make(map[string]int)
	tf := make(map[string]int)
	for i := 0; i < n; i++ {
		seen := make(map[string]struct{})
		for _, term := range a.analyze(col.Text(i), caser) {
			tf[term]++
			if _, dup := seen[term]; !dup {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	maxDocs := int(math.Floor(v.opts.MaxDF * float64(n)))
	terms := make([]string, 0, len(df))
	for term, count := range df {
		if count >= v.opts.MinDF && count <= maxDocs {
			terms = append(terms, term)
		}
	}
	if v.opts.MaxFeatures > 0 && len(terms) > v.opts.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:v.opts.MaxFeatures]
	}
	if len(terms) == 0 {
		return errors.NewValueError("TfidfVectorizer.Fit", "empty vocabulary; perhaps the documents only contain stop words or very short tokens")
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	smooth := 0.0
	if boolOr(v.opts.SmoothIDF, true) {
		smooth = 1
	}
	for i, term := range terms {
		vocabulary[term] = i
		idf[i] = math.Log((float64(n)+smooth)/(float64(df[term])+smooth)) + 1
	}

	v.vocabulary = vocabulary
	v.idf = idf
	v.state.SetDimensions(len(terms), n)
	v.state.SetFitted()

	v.logger.Debug("TF-IDF vocabulary fitted", log.SamplesKey, n, log.VocabularyKey, len(terms))
	return nil
}

type docVector struct {
	idx  []int
	vals []float64
}

// Transform はTF-IDF列を入力の末尾に追加した新しいテーブルを返します。
func (v *TfidfVectorizer) Transform(t *frame.Table) (*frame.Table, error) {
	if err := v.state.RequireFitted("TfidfVectorizer", "Transform"); err != nil {
		return nil, err
	}
	col, err := v.textColumn(t, "TfidfVectorizer.Transform")
	if err != nil {
		return nil, err
	}

	n := col.Len()
	docs := make([]docVector, n)
	a := v.analyzer()
	parallel.ParallelizeWithThreshold(n, parallelDocThreshold, func(start, end int) {
		caser := newCaser()
		for i := start; i < end; i++ {
			docs[i] = v.vectorize(a.analyze(col.Text(i), caser))
		}
	})

	nFeatures := len(v.idf)
	counts := make([]int, nFeatures)
	for _, d := range docs {
		for _, j := range d.idx {
			counts[j]++
		}
	}
	rows := make([][]int, nFeatures)
	vals := make([][]float64, nFeatures)
	for j, c := range counts {
		rows[j] = make([]int, 0, c)
		vals[j] = make([]float64, 0, c)
	}
	for i, d := range docs {
		for k, j := range d.idx {
			rows[j] = append(rows[j], i)
			vals[j] = append(vals[j], d.vals[k])
		}
	}

	names := v.FeatureNames()
	cols := make([]frame.Column, nFeatures)
	for j := range cols {
		cols[j] = frame.SparseColumnFromSorted(names[j], n, rows[j], vals[j])
	}
	return t.Append(cols...)
}

// vectorize は1文書の単語列を正規化済みの疎な行に変換します。
func (v *TfidfVectorizer) vectorize(terms []string) docVector {
	counts := make(map[int]float64)
	for _, term := range terms {
		if j, ok := v.vocabulary[term]; ok {
			counts[j]++
		}
	}
	if len(counts) == 0 {
		return docVector{}
	}
	idx := make([]int, 0, len(counts))
	for j := range counts {
		idx = append(idx, j)
	}
	sort.Ints(idx)

	vals := make([]float64, len(idx))
	for k, j := range idx {
		tf := counts[j]
		if v.opts.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		vals[k] = tf * v.idf[j]
	}

	var norm float64
	switch v.opts.Norm {
	case "l2":
		norm = floats.Norm(vals, 2)
	case "l1":
		norm = floats.Norm(vals, 1)
	}
	if norm > 0 {
		floats.Scale(1/norm, vals)
	}
	return docVector{idx: idx, vals: vals}
}

type tfidfState struct {
	Options    TfidfOptions
	Vocabulary map[string]int
	IDF        []float64
	Fitted     model.ModelState
}

// MarshalBinary は学習済み状態をgobで符号化します。
func (v *TfidfVectorizer) MarshalBinary() ([]byte, error) {
	return model.MarshalGob(tfidfState{
		Options:    v.opts,
		Vocabulary: v.vocabulary,
		IDF:        v.idf,
		Fitted:     v.state.GetState(),
	})
}

// UnmarshalBinary はMarshalBinaryの出力から状態を復元します。
func (v *TfidfVectorizer) UnmarshalBinary(data []byte) error {
	var s tfidfState
	if err := model.UnmarshalGob(data, &s); err != nil {
		return err
	}
	if s.Fitted.Fitted && len(s.IDF) != len(s.Vocabulary) {
		return errors.NewValueError("TfidfVectorizer.UnmarshalBinary", "vocabulary and idf sizes differ")
	}
	v.opts = s.Options
	v.vocabulary = s.Vocabulary
	v.idf = s.IDF
	v.state.SetState(s.Fitted)
	return nil
}
