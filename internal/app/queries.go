package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"guesthouse/internal/domain"
)

type QueryService struct {
	repo     domain.ContentRepository
	cache    domain.Cache
	cacheTTL time.Duration
	locales  domain.Locales
}

func NewQueryService(r domain.ContentRepository, c domain.Cache, ttl time.Duration, locales domain.Locales) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl, locales: locales}
}

// cached is cache-aside around load. Cache errors never fail a read.
func cached[V any](ctx context.Context, s *QueryService, key string, load func() (V, error)) (V, error) {
	var out V
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &out); ok {
			return out, nil
		}
	}
	out, err := load()
	if err != nil {
		return out, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

func (s *QueryService) ListHouses(ctx context.Context, locale string) ([]domain.HouseView, error) {
	return cached(ctx, s, housesKey(locale), func() ([]domain.HouseView, error) {
		houses, err := s.houses(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]domain.HouseView, 0, len(houses))
		for _, h := range houses {
			out = append(out, s.houseView(h, locale))
		}
		return out, nil
	})
}

func (s *QueryService) GetHouse(ctx context.Context, slug, locale string) (domain.HouseDetailView, error) {
	return cached(ctx, s, houseKey("house", slug, locale), func() (domain.HouseDetailView, error) {
		h, err := s.findHouse(ctx, slug)
		if err != nil {
			return domain.HouseDetailView{}, err
		}
		out := domain.HouseDetailView{HouseView: s.houseView(h, locale)}
		if out.Gallery, err = s.gallery(ctx, slug, locale); err != nil {
			return domain.HouseDetailView{}, err
		}
		if out.Amenities, err = s.amenities(ctx, slug, locale); err != nil {
			return domain.HouseDetailView{}, err
		}
		if out.Pricing, err = s.pricing(ctx, slug, locale); err != nil {
			return domain.HouseDetailView{}, err
		}
		return out, nil
	})
}

func (s *QueryService) Gallery(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.ImageView], error) {
	return cached(ctx, s, houseKey("gallery", slug, locale), func() ([]domain.GroupView[domain.ImageView], error) {
		if _, err := s.findHouse(ctx, slug); err != nil {
			return nil, err
		}
		return s.gallery(ctx, slug, locale)
	})
}

func (s *QueryService) Amenities(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.AmenityView], error) {
	return cached(ctx, s, houseKey("amenities", slug, locale), func() ([]domain.GroupView[domain.AmenityView], error) {
		if _, err := s.findHouse(ctx, slug); err != nil {
			return nil, err
		}
		return s.amenities(ctx, slug, locale)
	})
}

func (s *QueryService) Pricing(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.PriceView], error) {
	return cached(ctx, s, houseKey("pricing", slug, locale), func() ([]domain.GroupView[domain.PriceView], error) {
		if _, err := s.findHouse(ctx, slug); err != nil {
			return nil, err
		}
		return s.pricing(ctx, slug, locale)
	})
}

func (s *QueryService) FAQ(ctx context.Context, locale string) ([]domain.GroupView[domain.FAQView], error) {
	return cached(ctx, s, faqKey(locale), func() ([]domain.GroupView[domain.FAQView], error) {
		fb := s.locales.Default()
		return groupedViews(ctx, s.repo, domain.DocFAQ, nil, locale, fb, func(f domain.FAQ) domain.FAQView {
			return domain.FAQView{
				ID:       f.ID,
				Question: f.Question.ResolvePtr(locale, fb),
				Answer:   f.Answer.ResolvePtr(locale, fb),
			}
		})
	})
}

// ---- loaders ----

// houses returns every stored house ordered by rank, unranked last.
func (s *QueryService) houses(ctx context.Context) ([]domain.House, error) {
	docs, err := s.repo.ListDocuments(ctx, domain.DocHouse, nil)
	if err != nil {
		return nil, err
	}
	houses, bad := decodePayloads[domain.House](docs)
	if bad > 0 {
		log.Warn().Int("count", bad).Msg("undecodable house payloads skipped")
	}
	slices.SortStableFunc(houses, func(a, b domain.House) int {
		return domain.CompareRank(a.Rank, b.Rank)
	})
	return houses, nil
}

func (s *QueryService) findHouse(ctx context.Context, slug string) (domain.House, error) {
	houses, err := s.houses(ctx)
	if err != nil {
		return domain.House{}, err
	}
	i := slices.IndexFunc(houses, func(h domain.House) bool { return h.Slug == slug })
	if i < 0 {
		return domain.House{}, fmt.Errorf("house %q: %w", slug, domain.ErrNotFound)
	}
	return houses[i], nil
}

func (s *QueryService) houseView(h domain.House, locale string) domain.HouseView {
	fb := s.locales.Default()
	return domain.HouseView{
		Slug:        h.Slug,
		Name:        h.Name.ResolvePtr(locale, fb),
		Summary:     h.Summary.ResolvePtr(locale, fb),
		Description: h.Description.ResolvePtr(locale, fb),
		Address:     h.Address,
		CoverImage:  h.CoverImage,
		Language:    locale,
	}
}

func (s *QueryService) gallery(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.ImageView], error) {
	fb := s.locales.Default()
	return groupedViews(ctx, s.repo, domain.DocGalleryImage, &slug, locale, fb, func(g domain.GalleryImage) domain.ImageView {
		return domain.ImageView{ID: g.ID, URL: g.URL, Alt: g.Alt.ResolvePtr(locale, fb)}
	})
}

func (s *QueryService) amenities(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.AmenityView], error) {
	fb := s.locales.Default()
	return groupedViews(ctx, s.repo, domain.DocAmenity, &slug, locale, fb, func(a domain.Amenity) domain.AmenityView {
		return domain.AmenityView{ID: a.ID, Icon: a.Icon, Name: a.Name.ResolvePtr(locale, fb)}
	})
}

func (s *QueryService) pricing(ctx context.Context, slug, locale string) ([]domain.GroupView[domain.PriceView], error) {
	fb := s.locales.Default()
	return groupedViews(ctx, s.repo, domain.DocPricingPlan, &slug, locale, fb, func(p domain.PricingPlan) domain.PriceView {
		return domain.PriceView{
			ID:       p.ID,
			Label:    p.Label.ResolvePtr(locale, fb),
			Amount:   p.Amount,
			Currency: p.Currency,
			Unit:     p.Unit.ResolvePtr(locale, fb),
		}
	})
}

// groupedViews loads categorized documents, groups them by category rank and
// localizes both the groups and their items.
func groupedViews[T, V any](ctx context.Context, repo domain.ContentRepository, t domain.DocType, house *string,
	locale, fallback string, view func(T) V) ([]domain.GroupView[V], error) {
	docs, err := repo.ListDocuments(ctx, t, house)
	if err != nil {
		return nil, err
	}
	items, bad := decodePayloads[domain.CategorizedItem[T]](docs)
	if bad > 0 {
		log.Warn().Str("type", string(t)).Int("count", bad).Msg("undecodable payloads skipped")
	}
	return domain.LocalizeGroups(domain.GroupByCategory(items), locale, fallback, view), nil
}
