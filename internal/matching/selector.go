package matching

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/geo"
	"github.com/lalith-99/pawmates/internal/models"
	"go.uber.org/zap"
)

// DefaultMaxDistanceKM is the feed radius when the client doesn't send one.
const DefaultMaxDistanceKM = 100

// FeedParams are the pagination/filter knobs for the candidate feed.
type FeedParams struct {
	Limit         int
	Skip          int
	MaxDistanceKM float64
}

func (p FeedParams) normalized() FeedParams {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.MaxDistanceKM <= 0 {
		p.MaxDistanceKM = DefaultMaxDistanceKM
	}
	return p
}

// cacheKey folds every parameter that affects the result into the cache
// key, so two different pages never collide.
func (p FeedParams) cacheKey() string {
	return fmt.Sprintf("%d:%d:%g", p.Limit, p.Skip, p.MaxDistanceKM)
}

// PotentialMatches builds the swipe feed for a pet.
//
// Two tiers, in strict priority order:
//
//  1. liked-me — pets that already liked this pet while this pet is still
//     undecided about them. Always first; a pending admirer beats any
//     amount of fresh inventory.
//  2. fresh — pets with NO ledger history against this pet, newest first.
//
// skip paginates tier 2 only; limit caps the combined result. Exclusions
// (confirmed matches, passes in either the ledger or the pet's permanent
// dislike list, pending outgoing likes, the pet itself) apply before
// ranking, so an excluded pet never appears on any page.
//
// Geo: when the requesting OWNER has a real location, both tiers are
// restricted to owners within MaxDistanceKM and every candidate is
// annotated with distance + raw owner coordinates. When the owner's
// location is unset there is no filtering and no annotation — no implicit
// fallback center. If the geo-aware query path fails, the feed silently
// degrades to the non-geo query (logged, never surfaced).
func (s *Service) PotentialMatches(ctx context.Context, userID, petID uuid.UUID, params FeedParams) ([]models.CandidatePet, error) {
	params = params.normalized()

	pet, err := s.ownedPet(ctx, userID, petID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached []models.CandidatePet
		ok, err := s.cache.GetFeed(ctx, petID, params.cacheKey(), &cached)
		if err != nil {
			s.logger.Warn("feed cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	owner, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load requesting owner: %w", err)
	}
	var center geo.Point
	if owner != nil {
		center = geo.Point{Longitude: owner.Longitude, Latitude: owner.Latitude}
	}
	geoActive := center.Valid()

	entries, err := s.matches.ListForPet(ctx, petID)
	if err != nil {
		return nil, fmt.Errorf("load ledger entries: %w", err)
	}

	likedMe, exclude := partitionLedger(pet, entries)

	tier1, err := s.likedMeTier(ctx, pet, likedMe, center, geoActive, params)
	if err != nil {
		return nil, err
	}

	result := tier1
	if len(result) > params.Limit {
		result = result[:params.Limit]
	}

	if remaining := params.Limit - len(result); remaining > 0 {
		tier2, err := s.freshTier(ctx, pet, exclude, center, geoActive, params, remaining)
		if err != nil {
			return nil, err
		}
		result = append(result, tier2...)
	}

	if s.cache != nil {
		if err := s.cache.SetFeed(ctx, petID, params.cacheKey(), result); err != nil {
			s.logger.Warn("feed cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

// partitionLedger splits the pet's ledger history into the liked-me set
// (they liked, we're undecided) and the exclusion set (everything with
// ANY history, plus the permanent dislike list, plus the pet itself).
//
// The exclusion set deliberately covers pending outgoing likes too: a pet
// we liked is shown once and then suppressed until it likes back.
func partitionLedger(pet *models.Pet, entries []models.Match) (likedMe []uuid.UUID, exclude []uuid.UUID) {
	likedMe = make([]uuid.UUID, 0)
	exclude = make([]uuid.UUID, 0, len(entries)+len(pet.DislikedPets)+1)

	exclude = append(exclude, pet.ID)
	exclude = append(exclude, pet.DislikedPets...)

	for _, entry := range entries {
		other := entry.OtherPet(pet.ID)
		exclude = append(exclude, other)

		mine := entry.DecisionFor(pet.ID)
		theirs := entry.DecisionFor(other)
		if !entry.IsMatch && mine == models.DecisionUndecided && theirs == models.DecisionLiked {
			likedMe = append(likedMe, other)
		}
	}

	return likedMe, exclude
}

// likedMeTier loads and ranks tier 1. Filtering happens in Go: the set is
// small (ids are already known), and the same haversine estimator that
// annotates distances decides the radius cut, sentinel semantics included
// — an admirer with no location is never dropped.
func (s *Service) likedMeTier(ctx context.Context, pet *models.Pet, likedMe []uuid.UUID, center geo.Point, geoActive bool, params FeedParams) ([]models.CandidatePet, error) {
	if len(likedMe) == 0 {
		return []models.CandidatePet{}, nil
	}

	pets, err := s.pets.GetMany(ctx, likedMe)
	if err != nil {
		return nil, fmt.Errorf("load liked-me pets: %w", err)
	}

	// Same-type rule holds in tier 1 too.
	sameType := pets[:0]
	for _, p := range pets {
		if p.Type == pet.Type {
			sameType = append(sameType, p)
		}
	}

	// Newest profile first, id as tie-break: the feed must be a
	// deterministic function of ledger state and creation order.
	sort.Slice(sameType, func(i, j int) bool {
		if !sameType[i].CreatedAt.Equal(sameType[j].CreatedAt) {
			return sameType[i].CreatedAt.After(sameType[j].CreatedAt)
		}
		return sameType[i].ID.String() < sameType[j].ID.String()
	})

	return s.annotate(ctx, sameType, center, geoActive, params.MaxDistanceKM)
}

// freshTier queries tier 2. The geo-aware SQL path is tried first when
// geo is active; on error it falls back to the plain query and the error
// is only logged — the feed degrades, the request succeeds.
func (s *Service) freshTier(ctx context.Context, pet *models.Pet, exclude []uuid.UUID, center geo.Point, geoActive bool, params FeedParams, limit int) ([]models.CandidatePet, error) {
	var fresh []models.Pet
	var err error

	if geoActive {
		fresh, err = s.pets.ListFreshNear(ctx, pet.Type, exclude, center, params.MaxDistanceKM, params.Skip, limit)
		if err != nil {
			s.logger.Warn("geo feed query failed, falling back to non-geo",
				zap.String("pet_id", pet.ID.String()),
				zap.Error(err),
			)
			fresh, err = s.pets.ListFresh(ctx, pet.Type, exclude, params.Skip, limit)
		}
	} else {
		fresh, err = s.pets.ListFresh(ctx, pet.Type, exclude, params.Skip, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list fresh pets: %w", err)
	}

	return s.annotate(ctx, fresh, center, geoActive, params.MaxDistanceKM)
}

// annotate wraps pets as feed candidates. With geo active each candidate
// gets its owner's distance (sentinel 0.1 km when the owner's location is
// unknown) and raw coordinates, and anything beyond the radius is dropped
// — this also enforces the radius for tier 1 and for the non-geo SQL
// fallback. With geo inactive the pets pass through untouched.
func (s *Service) annotate(ctx context.Context, pets []models.Pet, center geo.Point, geoActive bool, maxDistanceKM float64) ([]models.CandidatePet, error) {
	out := make([]models.CandidatePet, 0, len(pets))

	if !geoActive {
		for _, p := range pets {
			out = append(out, models.CandidatePet{Pet: p})
		}
		return out, nil
	}

	ownerIDs := make([]uuid.UUID, 0, len(pets))
	for _, p := range pets {
		ownerIDs = append(ownerIDs, p.OwnerID)
	}
	locations, err := s.users.Locations(ctx, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("load owner locations: %w", err)
	}

	for _, p := range pets {
		loc := locations[p.OwnerID]
		dist := geo.Distance(center, loc)
		if dist > maxDistanceKM {
			continue
		}
		candidate := models.CandidatePet{Pet: p, DistanceKM: &dist}
		if loc.Valid() {
			candidate.OwnerLocation = &models.OwnerLocation{
				Coordinates: []float64{loc.Longitude, loc.Latitude},
			}
		}
		out = append(out, candidate)
	}

	return out, nil
}
