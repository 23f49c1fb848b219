// Package storage は学習済みモデルをルート配下のアーティファクトディレクトリとして保存し、
// 名前で読み込みます。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/YuminosukeSato/scigo-serve/models"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// nameSeparator はアーティファクト名の各部分を連結します。
const nameSeparator = "__"

// maxSaveAttempts は他の書き込みに名前を先取りされた場合にSaveが試すインデックス数の上限です。
const maxSaveAttempts = 5

// DefaultCacheSize はメモリに保持する読み込み済みモデルの数です。
const DefaultCacheSize = 16

// ArtifactStorage は学習済みモデルを導出した名前で保存します。
type ArtifactStorage interface {
	Save(m models.Model, dataset string) (string, error)
	Load(name string) (models.Model, error)
	List() ([]string, error)
}

// Name は解析済みのアーティファクト名 "{index}__{model}__{dataset}" です。
type Name struct {
	Index   int
	Model   string
	Dataset string
}

func (n Name) String() string {
	return strconv.Itoa(n.Index) + nameSeparator + n.Model + nameSeparator + n.Dataset
}

// ParseName はアーティファクト名を分割します。空でない3つの部分を持たない名前や
// インデックスが数値でない名前はValidationErrorです。
func ParseName(name string) (Name, error) {
	parts := strings.SplitN(name, nameSeparator, 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return Name{}, errors.NewValidationError("artifact_name", "must have the form {index}__{model}__{dataset}", name)
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil || index < 1 {
		return Name{}, errors.NewValidationError("artifact_name", "index must be a positive integer", name)
	}
	return Name{Index: index, Model: parts[1], Dataset: parts[2]}, nil
}

// LocalArtifactStorage はアーティファクトをローカルルートのサブディレクトリとして保持します。
//
// 名前は "{1+count}__{model}__{dataset}" で、countは保存時点のアーティファクト数です。
// プロセス内の保存は直列化され、他の書き込みに名前を取られた場合は次のインデックスを試します。
type LocalArtifactStorage struct {
	root   string
	mu     sync.Mutex
	cache  *lru.Cache[string, models.Model]
	logger log.Logger
}

// Option はLocalArtifactStorageを設定します。
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize はメモリに保持する読み込み済みモデルの数を設定します。
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// NewLocal はストレージを作成します。rootが無ければ作成します。
func NewLocal(root string, opts ...Option) (*LocalArtifactStorage, error) {
	o := options{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheSize <= 0 {
		return nil, errors.NewValidationError("cache_size", "must be positive", o.cacheSize)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create artifact root %s", root)
	}
	cache, err := lru.New[string, models.Model](o.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "create model cache")
	}
	return &LocalArtifactStorage{
		root:   root,
		cache:  cache,
		logger: log.GetLoggerWithName("storage"),
	}, nil
}

// Root はアーティファクトのルートディレクトリを返します。
func (s *LocalArtifactStorage) Root() string { return s.root }

// Path はアーティファクトのディレクトリを返します。
func (s *LocalArtifactStorage) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Save は学習済みモデルを保存し、アーティファクト名を返します。
func (s *LocalArtifactStorage) Save(m models.Model, dataset string) (string, error) {
	for _, part := range []string{m.Name(), dataset} {
		if part == "" || strings.Contains(part, nameSeparator) || strings.ContainsAny(part, `/\`) || strings.HasPrefix(part, ".") {
			return "", errors.NewValidationError("artifact_name", fmt.Sprintf("%q cannot be part of an artifact name", part), part)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.List()
	if err != nil {
		return "", err
	}
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		name := Name{Index: len(existing) + 1 + attempt, Model: m.Name(), Dataset: dataset}.String()
		err := m.Save(s.Path(name))
		if err == nil {
			// 削除済みアーティファクトのモデルが同じ名前でキャッシュに残っている場合がある
			s.cache.Remove(name)
			s.logger.Info("Artifact saved",
				log.OperationKey, log.OperationSave,
				log.ArtifactNameKey, name,
				log.ModelNameKey, m.Name(),
				log.DatasetNameKey, dataset,
			)
			return name, nil
		}
		var conflict *errors.ConflictError
		if !errors.As(err, &conflict) {
			return "", err
		}
		s.logger.Warn("Artifact name taken, trying next index", log.ArtifactNameKey, name)
		lastErr = err
	}
	return "", lastErr
}

// Load はnameで保存されたモデルを返します。Listに無い名前はNotFoundErrorです。
// モデルの種類は名前の中央部分から決まります。
func (s *LocalArtifactStorage) Load(name string) (models.Model, error) {
	if m, ok := s.cache.Get(name); ok {
		if _, statErr := os.Stat(s.Path(name)); statErr == nil {
			return m, nil
		}
		s.cache.Remove(name)
	}

	names, err := s.List()
	if err != nil {
		return nil, err
	}
	if !slices.Contains(names, name) {
		return nil, errors.NewNotFoundError("artifact", name)
	}
	parsed, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	if !models.Has(parsed.Model) {
		return nil, errors.NewValidationError("artifact_name", "unknown model "+parsed.Model, name)
	}

	m, err := models.Load(parsed.Model, s.Path(name))
	if err != nil {
		return nil, err
	}
	s.cache.Add(name, m)
	return m, nil
}

// List はルート直下の隠しでないサブディレクトリ名を返します。
func (s *LocalArtifactStorage) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", s.root)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Cached はnameのモデルがメモリに保持されているかを返します。
func (s *LocalArtifactStorage) Cached(name string) bool {
	return s.cache.Contains(name)
}
