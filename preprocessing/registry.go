package preprocessing

import (
	"fmt"
	"sort"
	"sync"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Factory はパラメータから未学習の前処理ステップを生成します。
// params が nil の場合は既定値で生成できなければなりません（状態の復元に使われます）。
type Factory func(params Params) (Preprocessor, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
)

// Register は前処理ステップの種類を登録します。パッケージの init から呼び出してください。
// 同じ名前の二重登録は panic します。
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("preprocessing: Register called twice for %q", name))
	}
	factories[name] = factory
}

// Names は登録済みの名前をソートして返します。
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup は名前に対応するFactoryを返します。
func Lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// New は設定から前処理ステップを生成します。
// 未登録の名前は ConfigError になります。
func New(cfg Config) (Preprocessor, error) {
	factory, ok := Lookup(cfg.Name)
	if !ok {
		return nil, errors.NewUnknownNameError("preprocessor", cfg.Name, Names())
	}
	return factory(cfg.Params)
}
