package preprocessing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/frame"
	scigoerrors "github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

func textTable(docs ...string) *frame.Table {
	return frame.MustNew(frame.TextColumn("text", docs))
}

func tfidfThenDrop() ComposeConfig {
	return ComposeConfig{Preprocessors: []Config{
		{Name: TfidfName},
		{Name: DropName, Params: Params{"columns": []any{"text"}}},
	}}
}

func TestRegistry_Builtins(t *testing.T) {
	names := Names()
	for _, want := range []string{ComposeName, DropName, TfidfName, TextStatsName} {
		assert.Contains(t, names, want)
	}

	_, err := New(Config{Name: "nonexistent"})
	var cfgErr *scigoerrors.ConfigError
	require.True(t, scigoerrors.As(err, &cfgErr))
	assert.Equal(t, "nonexistent", cfgErr.Name)

	_, err = New(Config{Name: TfidfName, Params: Params{"no_such_param": 1}})
	assert.True(t, scigoerrors.As(err, &cfgErr))

	_, err = New(Config{Name: TfidfName, Params: Params{"norm": "l3"}})
	assert.True(t, scigoerrors.As(err, &cfgErr))

	assert.Panics(t, func() { Register(DropName, nil) })
}

func TestCompose_UnknownStepFailsWhole(t *testing.T) {
	c, err := NewCompose(ComposeConfig{Preprocessors: []Config{
		{Name: TfidfName},
		{Name: "nonexistent"},
	}})
	assert.Nil(t, c)
	var cfgErr *scigoerrors.ConfigError
	assert.True(t, scigoerrors.As(err, &cfgErr))
}

func TestCompose_Empty(t *testing.T) {
	c, err := NewCompose(ComposeConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())

	in := textTable("a", "b")
	out, err := c.FitTransform(in)
	require.NoError(t, err)
	assert.Equal(t, in.Names(), out.Names())
}

func TestCompose_FitTransform(t *testing.T) {
	c, err := NewCompose(tfidfThenDrop())
	require.NoError(t, err)
	assert.Equal(t, []string{TfidfName, DropName}, c.Steps())

	in := textTable("good movie", "bad movie")
	out, err := c.FitTransform(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"0_tfidf", "1_tfidf", "2_tfidf"}, out.Names())

	// input untouched
	assert.Equal(t, []string{"text"}, in.Names())

	// same input, same shape
	again, err := c.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, out.Names(), again.Names())
	assert.Equal(t, out.NumRows(), again.NumRows())
}

// Every step is fitted on the original input: tfidf still sees the text column
// at fit time even though the preceding drop removes it during transform.
func TestCompose_FitsEveryStepOnOriginalInput(t *testing.T) {
	c, err := NewCompose(ComposeConfig{Preprocessors: []Config{
		{Name: DropName, Params: Params{"columns": []any{"text"}}},
		{Name: TfidfName},
	}})
	require.NoError(t, err)

	in := textTable("good movie", "bad movie")
	require.NoError(t, c.Fit(in))

	_, err = c.Transform(in)
	var valErr *scigoerrors.ValueError
	assert.True(t, scigoerrors.As(err, &valErr))
}

func TestCompose_TransformBeforeFit(t *testing.T) {
	c, err := NewCompose(tfidfThenDrop())
	require.NoError(t, err)

	_, err = c.Transform(textTable("a b"))
	var nfErr *scigoerrors.NotFittedError
	assert.True(t, scigoerrors.As(err, &nfErr))
}

func TestCompose_EncodeDecode(t *testing.T) {
	c, err := NewCompose(ComposeConfig{Preprocessors: []Config{
		{Name: TfidfName, Params: Params{"ngram_range": []any{1, 2}}},
		{Name: TextStatsName},
		{Name: DropName, Params: Params{"columns": []any{"text"}}},
	}})
	require.NoError(t, err)

	train := textTable("the cat sat", "the dog ran", "a cat ran")
	want, err := c.FitTransform(train)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.Encode(&buf))

	restored, err := DecodeCompose(&buf)
	require.NoError(t, err)
	assert.Equal(t, c.Steps(), restored.Steps())

	got, err := restored.Transform(train)
	require.NoError(t, err)
	require.Equal(t, want.Names(), got.Names())
	for i := 0; i < want.NumCols(); i++ {
		wc, gc := want.ColumnAt(i), got.ColumnAt(i)
		for r := 0; r < want.NumRows(); r++ {
			assert.InDelta(t, wc.Float(r), gc.Float(r), 1e-12, "column %s row %d", wc.Name(), r)
		}
	}
}

func TestDrop(t *testing.T) {
	d := NewDrop("text")
	require.NoError(t, d.Fit(nil))

	in := frame.MustNew(
		frame.TextColumn("text", []string{"a"}),
		frame.DenseColumn("x", []float64{1}),
	)
	out, err := d.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, out.Names())

	_, err = NewDrop("missing").Transform(in)
	var valErr *scigoerrors.ValueError
	assert.True(t, scigoerrors.As(err, &valErr))
}

func TestTfidf_Values(t *testing.T) {
	v, err := NewTfidfVectorizer(TfidfOptions{})
	require.NoError(t, err)

	out, err := FitTransform(v, textTable("good movie", "bad movie"))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"bad": 0, "good": 1, "movie": 2}, v.Vocabulary())

	rare := math.Log(3.0/2.0) + 1
	idf := v.IDF()
	assert.InDelta(t, rare, idf[0], 1e-12)
	assert.InDelta(t, rare, idf[1], 1e-12)
	assert.InDelta(t, 1.0, idf[2], 1e-12)

	norm := math.Hypot(rare, 1)
	good, _ := out.Column("1_tfidf")
	movie, _ := out.Column("2_tfidf")
	bad, _ := out.Column("0_tfidf")
	assert.Equal(t, frame.Sparse, good.Kind())
	assert.InDelta(t, rare/norm, good.Float(0), 1e-12)
	assert.InDelta(t, 1/norm, movie.Float(0), 1e-12)
	assert.Equal(t, 0.0, bad.Float(0))
	assert.InDelta(t, rare/norm, bad.Float(1), 1e-12)

	// unseen words contribute nothing
	unseen, err := v.Transform(textTable("zebra"))
	require.NoError(t, err)
	dropped, err := unseen.Drop("text")
	require.NoError(t, err)
	m, _, err := dropped.Matrix()
	require.NoError(t, err)
	assert.Equal(t, 0, m.NNZ())
}

func TestTfidf_Options(t *testing.T) {
	tests := []struct {
		name  string
		opts  TfidfOptions
		docs  []string
		vocab []string
	}{
		{
			name:  "lowercase and unicode",
			opts:  TfidfOptions{},
			docs:  []string{"Привет МИР", "привет друг"},
			vocab: []string{"друг", "мир", "привет"},
		},
		{
			name:  "min_df",
			opts:  TfidfOptions{MinDF: 2},
			docs:  []string{"aa bb", "aa cc"},
			vocab: []string{"aa"},
		},
		{
			name:  "max_df",
			opts:  TfidfOptions{MaxDF: 0.5},
			docs:  []string{"aa bb", "aa cc"},
			vocab: []string{"bb", "cc"},
		},
		{
			name:  "max_features keeps most frequent",
			opts:  TfidfOptions{MaxFeatures: 1},
			docs:  []string{"aa bb bb", "cc bb"},
			vocab: []string{"bb"},
		},
		{
			name:  "bigrams",
			opts:  TfidfOptions{NgramRange: [2]int{1, 2}},
			docs:  []string{"aa bb"},
			vocab: []string{"aa", "aa bb", "bb"},
		},
		{
			name:  "short tokens ignored",
			opts:  TfidfOptions{},
			docs:  []string{"a bb c"},
			vocab: []string{"bb"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewTfidfVectorizer(tt.opts)
			require.NoError(t, err)
			require.NoError(t, v.Fit(textTable(tt.docs...)))

			vocab := v.Vocabulary()
			assert.Len(t, vocab, len(tt.vocab))
			for i, term := range tt.vocab {
				assert.Equal(t, i, vocab[term], term)
			}
		})
	}
}

func TestTfidf_Errors(t *testing.T) {
	v, err := NewTfidfVectorizer(TfidfOptions{})
	require.NoError(t, err)

	_, err = v.Transform(textTable("aa"))
	var nfErr *scigoerrors.NotFittedError
	assert.True(t, scigoerrors.As(err, &nfErr))

	err = v.Fit(textTable("a", "b"))
	var valErr *scigoerrors.ValueError
	assert.True(t, scigoerrors.As(err, &valErr), "empty vocabulary")

	err = v.Fit(frame.MustNew(frame.DenseColumn("text", []float64{1})))
	assert.True(t, scigoerrors.As(err, &valErr), "numeric text column")

	err = v.Fit(frame.MustNew(frame.TextColumn("comment", []string{"aa"})))
	assert.True(t, scigoerrors.As(err, &valErr), "missing column")
}

func TestTfidf_ParallelMatchesSequential(t *testing.T) {
	docs := make([]string, 2*parallelDocThreshold)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i := range docs {
		docs[i] = words[i%5] + " " + words[(i/5)%5] + " " + words[(i/25)%5]
	}
	v, err := NewTfidfVectorizer(TfidfOptions{SublinearTF: true})
	require.NoError(t, err)
	out, err := FitTransform(v, textTable(docs...))
	require.NoError(t, err)

	for i := 0; i < len(docs); i += 97 {
		row := v.vectorize(v.analyzer().analyze(docs[i], newCaser()))
		for k, j := range row.idx {
			col := out.ColumnAt(1 + j)
			assert.InDelta(t, row.vals[k], col.Float(i), 1e-12)
		}
	}
}

func TestTextStats(t *testing.T) {
	raw := textStatRow("Hi THERE 42!?")
	assert.Equal(t, []float64{13, 3, 6.0 / 7.0, 1, 1, 2.0 / 13.0}, raw)

	noScale := false
	s := NewTextStats(TextStatsOptions{Scale: &noScale})
	out, err := FitTransform(s, textTable("Hi THERE 42!?", ""))
	require.NoError(t, err)
	chars, ok := out.Column("chars_stat")
	require.True(t, ok)
	assert.Equal(t, 13.0, chars.Float(0))
	assert.Equal(t, 0.0, chars.Float(1))

	scaled := NewTextStats(TextStatsOptions{})
	_, err = scaled.Transform(textTable("x"))
	var nfErr *scigoerrors.NotFittedError
	assert.True(t, scigoerrors.As(err, &nfErr))

	out, err = FitTransform(scaled, textTable("aa", "aaaa"))
	require.NoError(t, err)
	chars, _ = out.Column("chars_stat")
	assert.InDelta(t, -1, chars.Float(0), 1e-12)
	assert.InDelta(t, 1, chars.Float(1), 1e-12)
	// constant column keeps unit scale
	q, _ := out.Column("questions_stat")
	assert.Equal(t, 0.0, q.Float(0))
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})
	s := NewStandardScaler(true, true)
	assert.False(t, s.IsFitted())

	_, err := s.Transform(X)
	var nfErr *scigoerrors.NotFittedError
	assert.True(t, scigoerrors.As(err, &nfErr))

	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.InDelta(t, 2.5, s.Mean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1])
	assert.Equal(t, 0.0, out.At(0, 1))
	assert.Equal(t, 2, s.NFeatures())

	back, err := s.InverseTransform(out)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *scigoerrors.DimensionError
	assert.True(t, scigoerrors.As(err, &dimErr))

	noMean := NewStandardScaler(false, true)
	require.NoError(t, noMean.Fit(X))
	assert.Equal(t, []float64{0, 0}, noMean.Mean)
	assert.Contains(t, noMean.String(), "n_features=2")
}
