package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/models"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/repositories"
	"github.com/scholarfolio/portfolio-api/pkg/portfolio_api/uploads"
)

// sweepGracePeriod protects files younger than this from the sweep, so an
// upload whose record has not been written yet is never collected.
const sweepGracePeriod = time.Hour

const sweepConcurrency = 4

// AssetSweeper removes files under the upload root that no content record
// references anymore. Best-effort file deletion during update/delete means
// orphans accumulate; the sweep is the compensating cleanup.
type AssetSweeper struct {
	blogs  *repositories.Store[models.BlogPost]
	papers *repositories.Store[models.Paper]
	assets *uploads.Adapter
}

func NewAssetSweeper(blogs *repositories.Store[models.BlogPost], papers *repositories.Store[models.Paper], assets *uploads.Adapter) *AssetSweeper {
	return &AssetSweeper{blogs: blogs, papers: papers, assets: assets}
}

// Sweep deletes orphaned upload files. Individual deletion failures are
// logged and do not stop the sweep.
func (s *AssetSweeper) Sweep(ctx context.Context) error {
	referenced, err := s.referencedFiles(ctx)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(s.assets.Root)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(sweepConcurrency)
	grp, ctx := errgroup.WithContext(ctx)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if _, ok := referenced[name]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < sweepGracePeriod {
			continue
		}
		removed++
		grp.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			if err := os.Remove(filepath.Join(s.assets.Root, name)); err != nil {
				log.Printf("[WARN] asset sweep: could not remove %s: %v", name, err)
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return err
	}
	if removed > 0 {
		log.Printf("asset sweep: removed %d orphaned file(s)", removed)
	}
	return nil
}

// referencedFiles collects the base names of every asset reference on blog
// posts and papers.
func (s *AssetSweeper) referencedFiles(ctx context.Context) (map[string]struct{}, error) {
	refs := make(map[string]struct{})

	posts, err := s.blogs.GetAll(ctx, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		if p.CoverImage != nil {
			refs[filepath.Base(*p.CoverImage)] = struct{}{}
		}
	}

	papers, err := s.papers.GetAll(ctx, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	for _, p := range papers {
		if p.FileURL != nil {
			refs[filepath.Base(*p.FileURL)] = struct{}{}
		}
	}
	return refs, nil
}
