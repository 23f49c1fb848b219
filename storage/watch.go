package storage

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// Watch はアーティファクトディレクトリが削除または移動されたモデルをキャッシュから外します。
// ctxが終了するかウォッチャーが失敗するまでブロックします。
// readyがnilでなければ、ルートの監視開始時にcloseされます。
func (s *LocalArtifactStorage) Watch(ctx context.Context, ready chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()

	if err := w.Add(s.root); err != nil {
		return errors.Wrapf(err, "watch %s", s.root)
	}
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			name := filepath.Base(event.Name)
			if s.cache.Remove(name) {
				s.logger.Info("Evicted cached artifact",
					log.ArtifactNameKey, name,
					"event", event.Op.String(),
				)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Artifact watcher failed", err)
			return errors.Wrap(err, "watch artifacts")
		}
	}
}
