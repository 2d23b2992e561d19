package app

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"trivia-live/internal/domain"
)

const (
	DefaultPageSize     = 8
	DefaultPageInterval = 4000 * time.Millisecond
)

// Rank sums points per team and orders teams by total, descending. Equal
// totals go to the team whose first answer was recorded earliest, then by
// name. Records without a team or with a negative question index are skipped.
func Rank(records []domain.AnswerRecord) []domain.Standing {
	type total struct {
		team   string
		points int
		first  time.Time
	}
	byTeam := make(map[string]*total)
	for _, rec := range records {
		if rec.Team == "" || rec.Q < 0 {
			continue
		}
		t, ok := byTeam[rec.Team]
		if !ok {
			t = &total{team: rec.Team, first: rec.Time}
			byTeam[rec.Team] = t
		}
		t.points += rec.Points
		if rec.Time.Before(t.first) {
			t.first = rec.Time
		}
	}

	totals := make([]*total, 0, len(byTeam))
	for _, t := range byTeam {
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].points != totals[j].points {
			return totals[i].points > totals[j].points
		}
		if !totals[i].first.Equal(totals[j].first) {
			return totals[i].first.Before(totals[j].first)
		}
		return totals[i].team < totals[j].team
	})

	standings := make([]domain.Standing, len(totals))
	for i, t := range totals {
		standings[i] = domain.Standing{
			Rank:   i + 1,
			Prefix: RankPrefix(i),
			Team:   t.team,
			Points: t.points,
		}
	}
	return standings
}

// RankPrefix renders the position marker for a zero-based rank index.
func RankPrefix(index int) string {
	switch index {
	case 0:
		return "🥇"
	case 1:
		return "🥈"
	case 2:
		return "🥉"
	default:
		return strconv.Itoa(index+1) + "."
	}
}

// Paginate splits standings into pages of size; an empty ranking is one empty page.
func Paginate(standings []domain.Standing, size int) [][]domain.Standing {
	if size <= 0 {
		size = DefaultPageSize
	}
	if len(standings) == 0 {
		return [][]domain.Standing{{}}
	}
	pages := make([][]domain.Standing, 0, (len(standings)+size-1)/size)
	for start := 0; start < len(standings); start += size {
		end := min(start+size, len(standings))
		pages = append(pages, standings[start:end])
	}
	return pages
}

// Pager cycles through the pages of a ranking.
type Pager struct {
	size  int
	pages [][]domain.Standing
	teams int
	page  int
}

func NewPager(size int) *Pager {
	if size <= 0 {
		size = DefaultPageSize
	}
	return &Pager{size: size, pages: Paginate(nil, size)}
}

// Reset installs a recomputed ranking and returns to the first page.
func (p *Pager) Reset(standings []domain.Standing) {
	p.pages = Paginate(standings, p.size)
	p.teams = len(standings)
	p.page = 0
}

// Next moves to the following page, wrapping after the last one.
func (p *Pager) Next() {
	p.page = (p.page + 1) % len(p.pages)
}

// Page returns the current page index and its entries.
func (p *Pager) Page() (int, []domain.Standing) {
	return p.page, p.pages[p.page]
}

// PageCount returns the number of pages.
func (p *Pager) PageCount() int {
	return len(p.pages)
}

// ScoreAggregator derives the paged leaderboard of a session from its answer
// records, recomputing on every answer change.
type ScoreAggregator struct {
	store    SessionStore
	pageSize int
	interval time.Duration
	policy   ScoringPolicy
	now      func() time.Time
	logger   *slog.Logger
}

// AggregatorOption customizes a ScoreAggregator.
type AggregatorOption func(*ScoreAggregator)

// WithPaging sets the page size and rotation interval.
func WithPaging(size int, interval time.Duration) AggregatorOption {
	return func(a *ScoreAggregator) {
		if size > 0 {
			a.pageSize = size
		}
		if interval > 0 {
			a.interval = interval
		}
	}
}

// WithAggregatorPolicy sets the policy used to compute the possible maximum.
func WithAggregatorPolicy(policy ScoringPolicy) AggregatorOption {
	return func(a *ScoreAggregator) {
		if policy != nil {
			a.policy = policy
		}
	}
}

// WithAggregatorLogger sets the aggregator's logger.
func WithAggregatorLogger(logger *slog.Logger) AggregatorOption {
	return func(a *ScoreAggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewScoreAggregator(store SessionStore, opts ...AggregatorOption) *ScoreAggregator {
	a := &ScoreAggregator{
		store:    store,
		pageSize: DefaultPageSize,
		interval: DefaultPageInterval,
		policy:   FixedPoints{Points: DefaultPoints},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Standings returns the full current ranking of a session.
func (a *ScoreAggregator) Standings(ctx context.Context, sessionID string) ([]domain.Standing, error) {
	records, err := a.store.Answers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return Rank(records), nil
}

// Run emits the first page immediately, then a fresh first page after every
// answer change and the next page on each rotation tick while there is more
// than one page. It returns when ctx ends or the subscription closes.
func (a *ScoreAggregator) Run(ctx context.Context, sessionID string, emit func(domain.Scoreboard)) error {
	events, cancel, err := a.store.Subscribe(ctx, sessionID, domain.EventAnswers|domain.EventQuestions)
	if err != nil {
		return err
	}
	defer cancel()

	session, err := a.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	records, err := a.store.Answers(ctx, sessionID)
	if err != nil {
		return err
	}

	maxPoints := len(session.Questions) * a.policy.MaxPoints()
	pager := NewPager(a.pageSize)
	pager.Reset(Rank(records))
	emit(a.board(sessionID, pager, maxPoints))

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind.Has(domain.EventQuestions) {
				maxPoints = len(ev.Session.Questions) * a.policy.MaxPoints()
			}
			if ev.Kind.Has(domain.EventAnswers) {
				pager.Reset(Rank(ev.Answers))
				ticker.Reset(a.interval)
			}
			emit(a.board(sessionID, pager, maxPoints))
		case <-ticker.C:
			if pager.PageCount() <= 1 {
				continue
			}
			pager.Next()
			emit(a.board(sessionID, pager, maxPoints))
		}
	}
}

func (a *ScoreAggregator) board(sessionID string, pager *Pager, maxPoints int) domain.Scoreboard {
	page, entries := pager.Page()
	return domain.Scoreboard{
		SessionID: sessionID,
		Page:      page,
		PageCount: pager.PageCount(),
		Entries:   append([]domain.Standing{}, entries...),
		Teams:     pager.teams,
		MaxPoints: maxPoints,
		UpdatedAt: a.now(),
	}
}
