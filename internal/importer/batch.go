package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/verdantiq/esg-cli/internal/format"
)

// BatchResult summarizes a directory import.
type BatchResult struct {
	Imported []Result
	Failed   map[string]string // file name -> error message
}

// RunDir imports every recognizable report file in a directory, one entity
// per file (entity ID = file name without extension). Imports run
// concurrently across entities; per-entity serialization is the store's
// concern, not ours.
func (imp *Importer) RunDir(ctx context.Context, dir, entityType, actor string, maxConcurrent int) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "importer: read dir %s", dir)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	res := &BatchResult{Failed: make(map[string]string)}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		f, ok := format.ForExtension(filepath.Ext(name))
		if !ok {
			continue
		}

		g.Go(func() error {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				mu.Lock()
				res.Failed[name] = err.Error()
				mu.Unlock()
				return nil
			}

			r, err := imp.Run(gCtx, Request{
				EntityID:   strings.TrimSuffix(name, filepath.Ext(name)),
				EntityType: entityType,
				Format:     f,
				Data:       data,
				FileName:   name,
				Source:     "batch",
				Actor:      actor,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[name] = err.Error()
				zap.L().Warn("importer: batch file failed",
					zap.String("file", name),
					zap.Error(err),
				)
				return nil
			}
			res.Imported = append(res.Imported, *r)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "importer: batch import")
	}
	return res, nil
}
