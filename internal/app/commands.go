package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
)

type IngestionService struct {
	cms     domain.CMSClient
	repo    domain.ContentRepository
	cache   domain.Cache
	locales domain.Locales
}

func NewIngestionService(c domain.CMSClient, r domain.ContentRepository, cache domain.Cache, locales domain.Locales) *IngestionService {
	return &IngestionService{cms: c, repo: r, cache: cache, locales: locales}
}

// SyncResult summarizes one document type sync.
type SyncResult struct {
	Type    domain.DocType
	Synced  int
	Deleted int64
	Skipped bool // CMS answered 404/401/403
}

// SyncType mirrors every published document of type t into the repository
// and drops rows the CMS no longer returns.
func (s *IngestionService) SyncType(ctx context.Context, t domain.DocType) (SyncResult, error) {
	res := SyncResult{Type: t}

	raw, err := s.cms.Query(ctx, t)
	if err != nil {
		// 404/401/403: dataset or token problem. Keep the stored snapshot.
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrAccessDenied) {
			log.Warn().Str("type", string(t)).Err(err).Msg("cms query skipped")
			observability.ObserveSync(string(t), "skipped", 1)
			res.Skipped = true
			return res, nil
		}
		observability.ObserveSync(string(t), "error", 1)
		return res, fmt.Errorf("sync %s: %w", t, err)
	}

	docs, err := mapDocuments(t, raw)
	if err != nil {
		observability.ObserveSync(string(t), "invalid", 1)
		return res, fmt.Errorf("sync %s: %w", t, err)
	}

	// houses known before the write, so removed ones get evicted too
	var stale []string
	if s.cache != nil {
		stale = s.knownHouses(ctx)
	}

	if len(docs) > 0 {
		if err := s.repo.UpsertDocuments(ctx, docs); err != nil {
			return res, fmt.Errorf("sync %s: upsert: %w", t, err)
		}
	}
	deleted, err := s.repo.DeleteStale(ctx, t, documentIDs(docs))
	if err != nil {
		return res, fmt.Errorf("sync %s: delete stale: %w", t, err)
	}
	res.Synced, res.Deleted = len(docs), deleted
	observability.ObserveSync(string(t), "ok", len(docs))
	observability.ObserveSync(string(t), "deleted", int(deleted))

	if s.cache != nil {
		s.invalidate(ctx, lo.Uniq(append(stale, houseSlugs(docs)...)))
	}
	return res, nil
}

// SyncAll syncs houses first, then the remaining types with at most workers
// in flight. The first error is returned once every started sync is done.
func (s *IngestionService) SyncAll(ctx context.Context, workers int) ([]SyncResult, error) {
	if workers < 1 {
		workers = 1
	}
	first, err := s.SyncType(ctx, domain.DocHouse)
	if err != nil {
		return []SyncResult{first}, err
	}

	rest := domain.DocTypes[1:]
	results := make([]SyncResult, len(rest))
	sem := semaphore.NewWeighted(int64(workers))
	var g errgroup.Group

	for i, t := range rest {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			_ = g.Wait()
			return append([]SyncResult{first}, results...), err
		}
		g.Go(func() error {
			defer sem.Release(1)
			r, err := s.SyncType(ctx, t)
			results[i] = r
			if err != nil {
				log.Warn().Str("type", string(t)).Err(err).Msg("sync failed")
				return err
			}
			log.Info().Str("type", string(t)).Int("synced", r.Synced).Int64("deleted", r.Deleted).Msg("sync ok")
			return nil
		})
	}
	err = g.Wait()
	return append([]SyncResult{first}, results...), err
}

// invalidate evicts the cached read models of slugs in every locale.
func (s *IngestionService) invalidate(ctx context.Context, slugs []string) {
	for _, l := range s.locales.All() {
		_ = s.cache.Del(ctx, housesKey(l))
		_ = s.cache.Del(ctx, faqKey(l))
		for _, slug := range slugs {
			for _, r := range houseResources {
				_ = s.cache.Del(ctx, houseKey(r, slug, l))
			}
		}
	}
}

func (s *IngestionService) knownHouses(ctx context.Context) []string {
	docs, err := s.repo.ListDocuments(ctx, domain.DocHouse, nil)
	if err != nil {
		log.Warn().Err(err).Msg("list houses for cache invalidation failed")
		return nil
	}
	return houseSlugs(docs)
}
