package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lovelanguages/server/internal/apperror"
	"github.com/lovelanguages/server/internal/model"
	"github.com/lovelanguages/server/internal/repository"
)

// Caps on the vocabulary context assembled for AI prompts.
const (
	contextRecentWords  = 200
	contextMasteredCap  = 50
	contextWeakSpotsCap = 20
	contextRecentCap    = 20
)

// masteredStreak is the correct streak at which a word counts as mastered
// and learned_at is stamped.
const masteredStreak = 5

// ClassifiedWord is a dictionary entry with its derived mastery tier.
type ClassifiedWord struct {
	model.DictionaryEntry
	Mastery       string `json:"mastery"`
	CorrectStreak int    `json:"correctStreak"`
	FailCount     int    `json:"failCount"`
}

// VocabularyContext summarizes a student's vocabulary for prompt building.
type VocabularyContext struct {
	Words      []ClassifiedWord `json:"words"`
	Mastered   []ClassifiedWord `json:"mastered"`
	WeakSpots  []ClassifiedWord `json:"weakSpots"`
	Recent     []ClassifiedWord `json:"recent"`
	TotalWords int              `json:"totalWords"`
	LastActive *time.Time       `json:"lastActive,omitempty"`
}

// VocabService owns the dictionary and mastery classification.
type VocabService struct {
	dict   repository.DictionaryRepository
	logger *slog.Logger
}

func NewVocabService(dict repository.DictionaryRepository, logger *slog.Logger) *VocabService {
	return &VocabService{dict: dict, logger: logger}
}

// Classify derives the mastery tier from score counters. A nil score means
// the word has never been practiced and is still learning.
func Classify(score *model.WordScore) string {
	if score == nil {
		return model.MasteryLearning
	}
	if score.LearnedAt != nil || score.CorrectStreak >= masteredStreak {
		return model.MasteryMastered
	}
	if score.TotalAttempts >= 3 && score.CorrectStreak < 3 {
		failRate := float64(score.TotalAttempts-score.CorrectAttempts) / float64(score.TotalAttempts)
		if failRate > 0.4 {
			return model.MasteryStruggling
		}
	}
	return model.MasteryLearning
}

// AddWord stores a newly unlocked dictionary entry.
func (s *VocabService) AddWord(ctx context.Context, userID string, e model.DictionaryEntry) (*model.DictionaryEntry, error) {
	e.Word = strings.TrimSpace(e.Word)
	e.Translation = strings.TrimSpace(e.Translation)
	if e.Word == "" {
		return nil, apperror.ValidationFailed("word", "word is required")
	}
	if e.Translation == "" {
		return nil, apperror.ValidationFailed("translation", "translation is required")
	}
	if e.LanguageCode == "" {
		return nil, apperror.ValidationFailed("languageCode", "language code is required")
	}
	e.UserID = userID
	if e.UnlockedAt.IsZero() {
		e.UnlockedAt = time.Now()
	}

	if err := s.dict.CreateEntry(ctx, &e); err != nil {
		return nil, fmt.Errorf("adding word: %w", err)
	}
	return &e, nil
}

// ListWords returns the user's classified dictionary for one language.
func (s *VocabService) ListWords(ctx context.Context, userID, lang string) ([]ClassifiedWord, error) {
	entries, err := s.dict.ListEntries(ctx, userID, lang, contextRecentWords)
	if err != nil {
		return nil, fmt.Errorf("listing words: %w", err)
	}
	scores, err := s.dict.ListScores(ctx, userID, lang)
	if err != nil {
		return nil, fmt.Errorf("listing scores: %w", err)
	}
	return classifyAll(entries, scores), nil
}

func classifyAll(entries []model.DictionaryEntry, scores []model.WordScore) []ClassifiedWord {
	byWord := make(map[string]*model.WordScore, len(scores))
	for i := range scores {
		byWord[scores[i].WordID] = &scores[i]
	}

	out := make([]ClassifiedWord, 0, len(entries))
	for _, e := range entries {
		sc := byWord[e.ID]
		cw := ClassifiedWord{DictionaryEntry: e, Mastery: Classify(sc)}
		if sc != nil {
			cw.CorrectStreak = sc.CorrectStreak
			cw.FailCount = sc.TotalAttempts - sc.CorrectAttempts
		}
		out = append(out, cw)
	}
	return out
}

// BuildContext assembles the vocabulary summary used in AI prompts. The
// three independent reads run concurrently.
func (s *VocabService) BuildContext(ctx context.Context, userID, lang string) (*VocabularyContext, error) {
	var (
		entries []model.DictionaryEntry
		scores  []model.WordScore
		total   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entries, err = s.dict.ListEntries(gctx, userID, lang, contextRecentWords)
		return err
	})
	g.Go(func() error {
		var err error
		scores, err = s.dict.ListScores(gctx, userID, lang)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.dict.CountEntries(gctx, userID, lang)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building vocabulary context: %w", err)
	}

	words := classifyAll(entries, scores)

	vc := &VocabularyContext{
		Words:      words,
		TotalWords: total,
	}

	for _, w := range words {
		if w.Mastery == model.MasteryMastered && len(vc.Mastered) < contextMasteredCap {
			vc.Mastered = append(vc.Mastered, w)
		}
	}

	weak := make([]ClassifiedWord, 0)
	for _, w := range words {
		if w.Mastery == model.MasteryStruggling {
			weak = append(weak, w)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].FailCount > weak[j].FailCount })
	if len(weak) > contextWeakSpotsCap {
		weak = weak[:contextWeakSpotsCap]
	}
	vc.WeakSpots = weak

	// ListEntries returns newest first.
	recent := words
	if len(recent) > contextRecentCap {
		recent = recent[:contextRecentCap]
	}
	vc.Recent = recent

	for _, w := range words {
		if vc.LastActive == nil || w.UnlockedAt.After(*vc.LastActive) {
			t := w.UnlockedAt
			vc.LastActive = &t
		}
	}

	return vc, nil
}

// PromptSection renders the vocabulary context as the fixed prompt block
// the chat modes share.
func (vc *VocabularyContext) PromptSection() string {
	var b strings.Builder
	b.WriteString("STUDENT VOCABULARY\n")
	fmt.Fprintf(&b, "Total words unlocked: %d\n", vc.TotalWords)

	if len(vc.Mastered) > 0 {
		b.WriteString("Mastered: ")
		b.WriteString(joinWords(vc.Mastered))
		b.WriteString("\n")
	}
	if len(vc.WeakSpots) > 0 {
		b.WriteString("Struggling with: ")
		b.WriteString(joinWords(vc.WeakSpots))
		b.WriteString("\n")
	}
	if len(vc.Recent) > 0 {
		b.WriteString("Recently unlocked: ")
		b.WriteString(joinWords(vc.Recent))
		b.WriteString("\n")
	}

	b.WriteString("RULES\n")
	b.WriteString("- Prefer words the student already knows.\n")
	b.WriteString("- Reinforce struggling words gently, never all at once.\n")
	b.WriteString("- Introduce at most one new word per reply.\n")
	return b.String()
}

func joinWords(ws []ClassifiedWord) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = fmt.Sprintf("%s (%s)", w.Word, w.Translation)
	}
	return strings.Join(parts, ", ")
}
