package partition

import (
	stderrors "errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tripflow/pkg/errors"
)

// errExchangeUnsupported reports that the platform or filesystem cannot
// swap two directories atomically.
var errExchangeUnsupported = stderrors.New("atomic directory exchange unsupported")

// promote moves the staged directory to target, replacing target's
// previous contents. On the exchange path target is never absent; on the
// fallback path it is briefly absent between the two renames. Either way
// it never holds a mix of old and new files.
func (w *Writer) promote(stagedDir, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Write(errors.ClassifyFS(err), "failed to create partition parent", err)
	}

	if _, err := os.Lstat(target); os.IsNotExist(err) {
		if err := os.Rename(stagedDir, target); err != nil {
			return errors.Write(errors.ClassifyFS(err), "failed to move partition into place", err)
		}
		syncDir(filepath.Dir(target))
		return nil
	}

	err := w.exchange(stagedDir, target)
	switch {
	case err == nil:
		// stagedDir now holds the previous contents
		if rmErr := os.RemoveAll(stagedDir); rmErr != nil {
			w.logger.Warn("failed to remove replaced partition", zap.String("path", stagedDir), zap.Error(rmErr))
		}
		syncDir(filepath.Dir(target))
		return nil
	case !stderrors.Is(err, errExchangeUnsupported):
		return errors.Write(errors.ClassifyFS(err), "failed to swap partition", err)
	}

	return w.replace(stagedDir, target)
}

// replace is the rename-aside fallback. The old partition is parked in
// staging, not next to target, so it never appears in the output tree.
func (w *Writer) replace(stagedDir, target string) error {
	aside := stagedDir + ".previous"
	if err := os.Rename(target, aside); err != nil {
		return errors.Write(errors.ClassifyFS(err), "failed to move old partition aside", err)
	}
	if err := os.Rename(stagedDir, target); err != nil {
		if rbErr := os.Rename(aside, target); rbErr != nil {
			w.logger.Error("failed to restore old partition",
				zap.String("path", target), zap.String("parked_at", aside), zap.Error(rbErr))
		}
		return errors.Write(errors.ClassifyFS(err), "failed to move partition into place", err)
	}
	if err := os.RemoveAll(aside); err != nil {
		w.logger.Warn("failed to remove replaced partition", zap.String("path", aside), zap.Error(err))
	}
	syncDir(filepath.Dir(target))
	return nil
}
