package services

import (
	"context"
	"errors"
	"fmt"

	"portfolio-cms/pkg/storage"
)

// freeName returns base+ext when dir/base+ext is unused, otherwise the first
// free base+sep+N+ext. Names are checked with Stat, so two writers racing on
// the same name can still collide.
func freeName(ctx context.Context, store storage.Store, dir, base, sep, ext string) (string, error) {
	name := base + ext
	for i := 1; ; i++ {
		_, err := store.Stat(ctx, dir+"/"+name)
		if errors.Is(err, storage.ErrNotFound) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		name = fmt.Sprintf("%s%s%d%s", base, sep, i, ext)
	}
}
