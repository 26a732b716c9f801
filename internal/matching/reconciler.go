package matching

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lalith-99/pawmates/internal/models"
	"go.uber.org/zap"
)

// SwipeResult is what a like/pass action returns to the handler.
type SwipeResult struct {
	Match   *models.Match
	IsMatch bool
}

// Swipe applies one like/pass action from actingPetID onto targetPetID.
//
// The ledger write itself is atomic (the store serializes concurrent
// swipes on the same pair), and ONLY the acting side's decision moves —
// the other party's pending intent is never inferred or touched.
//
// When this particular swipe is the one that completes a mutual like, the
// downstream effects fire exactly once: match_date is set, the chat is
// created, and a match_created notification goes to the OTHER owner only.
// The acting user just watched the match happen on their own screen; the
// recipient is the one who liked first and is now being told the crush is
// mutual.
//
// Anything that fails after the ledger write (chat creation, notification)
// is logged and swallowed: the match state is more important than the
// side effects, and the request must not report failure for a swipe that
// was durably recorded.
func (s *Service) Swipe(ctx context.Context, userID, actingPetID, targetPetID uuid.UUID, liked bool) (*SwipeResult, error) {
	if actingPetID == targetPetID {
		return nil, ErrSamePet
	}

	actingPet, err := s.ownedPet(ctx, userID, actingPetID)
	if err != nil {
		return nil, err
	}

	targetPet, err := s.pets.GetByID(ctx, targetPetID)
	if err != nil {
		return nil, fmt.Errorf("load target pet: %w", err)
	}
	if targetPet == nil {
		return nil, ErrPetNotFound
	}

	decision := models.DecisionPassed
	if liked {
		decision = models.DecisionLiked
	}

	pet1, pet2, actingIsPet1 := OrderPair(actingPetID, targetPetID)

	entry, newlyMatched, err := s.matches.Reconcile(ctx, pet1, pet2, actingIsPet1, decision)
	if err != nil {
		return nil, fmt.Errorf("reconcile swipe: %w", err)
	}

	// The swipe changes both pets' candidate feeds: the acting pet must
	// stop seeing the target, and the target's liked-me tier just changed.
	s.invalidateFeeds(ctx, actingPetID, targetPetID)

	if newlyMatched {
		s.handleNewMatch(ctx, entry, actingPet, targetPet)
	}

	return &SwipeResult{Match: entry, IsMatch: entry.IsMatch}, nil
}

// handleNewMatch runs the once-per-transition effects. Failures here are
// logged, never surfaced — see the Swipe contract.
func (s *Service) handleNewMatch(ctx context.Context, entry *models.Match, actingPet, targetPet *models.Pet) {
	// Chat participants in ledger order, owners resolved via the pets.
	user1, user2 := actingPet.OwnerID, targetPet.OwnerID
	if entry.Pet1ID == targetPet.ID {
		user1, user2 = targetPet.OwnerID, actingPet.OwnerID
	}

	chat, err := s.chats.Create(ctx, entry.ID, user1, user2)
	if err != nil {
		// Likely a race on the unique match_id — someone else got there
		// first. Fall back to the existing chat so the notification still
		// carries a chat id.
		chat, err = s.chats.GetByMatch(ctx, entry.ID)
		if err != nil || chat == nil {
			s.logger.Error("chat creation failed for new match",
				zap.String("match_id", entry.ID.String()),
				zap.Error(err),
			)
		}
	}

	event := MatchEvent{
		MatchID: entry.ID,
		Pet:     *actingPet,
	}
	if entry.MatchDate != nil {
		event.MatchDate = *entry.MatchDate
	}
	if chat != nil {
		event.ChatID = chat.ID
	}

	// Notify the owner whose pet did NOT just act. Never the acting user,
	// and never anyone when one person owns both pets.
	recipient := targetPet.OwnerID
	if recipient == actingPet.OwnerID {
		return
	}
	s.notifier.MatchCreated(recipient, event)
}

// Unmatch tears a matched pair down, from the acting pet's side.
//
// The acting side's decision becomes a terminal "passed" (the other
// side's decision is untouched, so the pair cannot silently re-match
// without a fresh explicit like). The chat is deleted, the other pet
// lands on the acting pet's permanent dislike list, and both owners' live
// connections hear chat_removed.
func (s *Service) Unmatch(ctx context.Context, userID, actingPetID, otherPetID uuid.UUID) error {
	if _, err := s.ownedPet(ctx, userID, actingPetID); err != nil {
		return err
	}

	pet1, pet2, actingIsPet1 := OrderPair(actingPetID, otherPetID)

	entry, err := s.matches.Unmatch(ctx, pet1, pet2, actingIsPet1)
	if err != nil {
		return fmt.Errorf("unmatch pair: %w", err)
	}
	if entry == nil {
		return ErrNoMatch
	}

	if err := s.pets.AddDisliked(ctx, actingPetID, otherPetID); err != nil {
		// Belt-and-suspenders exclusion; the ledger already blocks the
		// pair, so failure here is not worth failing the unmatch.
		s.logger.Warn("failed to record disliked pet",
			zap.String("pet_id", actingPetID.String()),
			zap.Error(err),
		)
	}

	chat, err := s.chats.GetByMatch(ctx, entry.ID)
	if err != nil {
		return fmt.Errorf("load chat for unmatch: %w", err)
	}
	if chat != nil {
		if err := s.chats.Delete(ctx, chat.ID); err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		s.notifier.ChatRemoved(chat.User1ID, chat.ID)
		s.notifier.ChatRemoved(chat.User2ID, chat.ID)
	}

	s.invalidateFeeds(ctx, actingPetID, otherPetID)

	return nil
}

// DeletePet removes a pet and everything that references it: every ledger
// row the pet appears in (either canonical side), every chat hanging off
// those rows, and the pet's id inside other pets' dislike lists. Affected
// other-party users are notified per removed chat, and so is the deleting
// user, so clients can clear stale conversation state.
func (s *Service) DeletePet(ctx context.Context, userID, petID uuid.UUID) error {
	if _, err := s.ownedPet(ctx, userID, petID); err != nil {
		return err
	}

	entries, err := s.matches.ListForPet(ctx, petID)
	if err != nil {
		return fmt.Errorf("list ledger entries for pet: %w", err)
	}

	// Collect notification targets BEFORE deleting anything — once the
	// chat row is gone, so is the participant list.
	type removedChat struct {
		chatID uuid.UUID
		other  uuid.UUID
	}
	removed := make([]removedChat, 0, len(entries))

	for _, entry := range entries {
		chat, err := s.chats.GetByMatch(ctx, entry.ID)
		if err != nil {
			return fmt.Errorf("load chat for cascade: %w", err)
		}
		if chat != nil {
			removed = append(removed, removedChat{
				chatID: chat.ID,
				other:  chat.OtherParticipant(userID),
			})
			if err := s.chats.Delete(ctx, chat.ID); err != nil {
				return fmt.Errorf("delete chat in cascade: %w", err)
			}
		}
		if err := s.matches.Delete(ctx, entry.ID); err != nil {
			return fmt.Errorf("delete ledger entry in cascade: %w", err)
		}
	}

	if err := s.pets.ScrubDisliked(ctx, petID); err != nil {
		return fmt.Errorf("scrub dislike lists: %w", err)
	}

	if err := s.pets.Delete(ctx, petID); err != nil {
		return fmt.Errorf("delete pet: %w", err)
	}

	for _, rc := range removed {
		s.notifier.ChatRemoved(rc.other, rc.chatID)
		s.notifier.ChatRemoved(userID, rc.chatID)
	}

	return nil
}

// EnsureChatForMatch returns the chat for a confirmed match, creating it
// if the original creation was lost (say the process died between the
// ledger commit and the chat insert). Clients call this when they learn
// of a match through the REST list but have no chat for it.
//
// ErrNoMatch covers "no such match id", "not matched", and "caller isn't
// a participant" alike — same no-leak policy as pets.
func (s *Service) EnsureChatForMatch(ctx context.Context, userID, matchID uuid.UUID) (*models.Chat, error) {
	entry, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load match: %w", err)
	}
	if entry == nil || !entry.IsMatch {
		return nil, ErrNoMatch
	}

	pets, err := s.pets.GetMany(ctx, []uuid.UUID{entry.Pet1ID, entry.Pet2ID})
	if err != nil {
		return nil, fmt.Errorf("load matched pets: %w", err)
	}
	if len(pets) != 2 {
		return nil, ErrNoMatch
	}

	var user1, user2 uuid.UUID
	for _, p := range pets {
		if p.ID == entry.Pet1ID {
			user1 = p.OwnerID
		} else {
			user2 = p.OwnerID
		}
	}
	if userID != user1 && userID != user2 {
		return nil, ErrNoMatch
	}

	chat, err := s.chats.GetByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("load chat: %w", err)
	}
	if chat != nil {
		return chat, nil
	}

	chat, err = s.chats.Create(ctx, matchID, user1, user2)
	if err != nil {
		// A concurrent caller may have created it; the unique match_id
		// constraint decides the winner.
		if existing, getErr := s.chats.GetByMatch(ctx, matchID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return chat, nil
}

// ConfirmedMatches returns the pet's confirmed ledger entries plus the
// other party's pet profiles, keyed by pet id. The handler zips the two
// into the {matchId, matchDate, pet} wire shape.
func (s *Service) ConfirmedMatches(ctx context.Context, userID, petID uuid.UUID) ([]models.Match, map[uuid.UUID]models.Pet, error) {
	if _, err := s.ownedPet(ctx, userID, petID); err != nil {
		return nil, nil, err
	}

	entries, err := s.matches.ListConfirmedForPet(ctx, petID)
	if err != nil {
		return nil, nil, fmt.Errorf("list confirmed matches: %w", err)
	}

	otherIDs := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		otherIDs = append(otherIDs, e.OtherPet(petID))
	}

	others, err := s.pets.GetMany(ctx, otherIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("load matched pets: %w", err)
	}

	byID := make(map[uuid.UUID]models.Pet, len(others))
	for _, p := range others {
		byID[p.ID] = p
	}

	return entries, byID, nil
}
