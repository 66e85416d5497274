package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/rating"
	"github.com/courtsidehq/league-engine/repositories"
	"github.com/courtsidehq/league-engine/storage"
)

// In-memory repository fakes. Services built with a nil *sql.DB skip
// transactions entirely, so these run every operation directly against maps.

type fakeUser struct {
	Name  string
	Email string
}

type fakeRatingRepo struct {
	nextID  int
	ratings map[int]models.PlayerRating
	users   map[int]fakeUser
}

func newFakeRatingRepo() *fakeRatingRepo {
	return &fakeRatingRepo{
		ratings: make(map[int]models.PlayerRating),
		users:   make(map[int]fakeUser),
	}
}

func (f *fakeRatingRepo) find(userID, seasonID int, gameType models.GameType) (models.PlayerRating, bool) {
	for _, r := range f.ratings {
		if r.UserID == userID && r.SeasonID == seasonID && r.GameType == gameType {
			return r, true
		}
	}
	return models.PlayerRating{}, false
}

func (f *fakeRatingRepo) Create(ctx context.Context, exec repositories.SQLExecutor, rating *models.PlayerRating) error {
	if existing, ok := f.find(rating.UserID, rating.SeasonID, rating.GameType); ok {
		*rating = existing
		return nil
	}
	f.nextID++
	rating.ID = f.nextID
	rating.CreatedAt = time.Now()
	rating.UpdatedAt = rating.CreatedAt
	f.ratings[rating.ID] = *rating
	return nil
}

func (f *fakeRatingRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.PlayerRating, error) {
	r, ok := f.ratings[id]
	if !ok {
		return nil, repositories.ErrPlayerRatingNotFound
	}
	return &r, nil
}

func (f *fakeRatingRepo) GetByPlayer(ctx context.Context, exec repositories.SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error) {
	r, ok := f.find(userID, seasonID, gameType)
	if !ok {
		return nil, repositories.ErrPlayerRatingNotFound
	}
	return &r, nil
}

func (f *fakeRatingRepo) GetByPlayerForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID, seasonID int, gameType models.GameType) (*models.PlayerRating, error) {
	return f.GetByPlayer(ctx, exec, userID, seasonID, gameType)
}

func (f *fakeRatingRepo) list(filter func(models.PlayerRating) bool) []*models.PlayerRating {
	var out []*models.PlayerRating
	for _, r := range f.ratings {
		if filter(r) {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentRating != out[j].CurrentRating {
			return out[i].CurrentRating > out[j].CurrentRating
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeRatingRepo) ListBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.PlayerRating, error) {
	return f.list(func(r models.PlayerRating) bool { return r.SeasonID == seasonID }), nil
}

func (f *fakeRatingRepo) ListByDivision(ctx context.Context, exec repositories.SQLExecutor, seasonID, divisionID int) ([]*models.PlayerRating, error) {
	return f.list(func(r models.PlayerRating) bool {
		return r.SeasonID == seasonID && r.DivisionID != nil && *r.DivisionID == divisionID
	}), nil
}

func (f *fakeRatingRepo) ListBySeasonWithUsers(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.PlayerRatingWithUser, error) {
	ratings := f.list(func(r models.PlayerRating) bool { return r.SeasonID == seasonID })
	out := make([]*models.PlayerRatingWithUser, 0, len(ratings))
	for _, r := range ratings {
		user := f.users[r.UserID]
		out = append(out, &models.PlayerRatingWithUser{
			PlayerRating: *r,
			UserName:     user.Name,
			Email:        user.Email,
		})
	}
	return out, nil
}

func (f *fakeRatingRepo) Update(ctx context.Context, exec repositories.SQLExecutor, rating *models.PlayerRating) error {
	if _, ok := f.ratings[rating.ID]; !ok {
		return repositories.ErrPlayerRatingNotFound
	}
	rating.UpdatedAt = time.Now()
	f.ratings[rating.ID] = *rating
	return nil
}

type fakeHistoryRepo struct {
	nextID  int
	entries []models.RatingHistory
}

func (f *fakeHistoryRepo) Create(ctx context.Context, exec repositories.SQLExecutor, entry *models.RatingHistory) error {
	f.nextID++
	entry.ID = f.nextID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeHistoryRepo) ListByPlayerRating(ctx context.Context, exec repositories.SQLExecutor, playerRatingID int) ([]*models.RatingHistory, error) {
	var out []*models.RatingHistory
	for i := range f.entries {
		if f.entries[i].PlayerRatingID == playerRatingID {
			e := f.entries[i]
			out = append(out, &e)
		}
	}
	return out, nil
}

func (f *fakeHistoryRepo) ListBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.RatingHistory, error) {
	out := make([]*models.RatingHistory, 0, len(f.entries))
	for i := range f.entries {
		e := f.entries[i]
		out = append(out, &e)
	}
	return out, nil
}

type fakeParamsRepo struct {
	nextID   int
	versions []models.RatingParameters
}

func (f *fakeParamsRepo) Create(ctx context.Context, exec repositories.SQLExecutor, params *models.RatingParameters) error {
	f.nextID++
	params.ID = f.nextID
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now()
	}
	f.versions = append(f.versions, *params)
	return nil
}

func (f *fakeParamsRepo) GetActiveBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) (*models.RatingParameters, error) {
	for i := range f.versions {
		if f.versions[i].SeasonID == seasonID && f.versions[i].IsActive {
			p := f.versions[i]
			return &p, nil
		}
	}
	return nil, repositories.ErrRatingParametersNotFound
}

func (f *fakeParamsRepo) GetBySeasonAt(ctx context.Context, exec repositories.SQLExecutor, seasonID int, at time.Time) (*models.RatingParameters, error) {
	var best *models.RatingParameters
	for i := range f.versions {
		v := f.versions[i]
		if v.SeasonID != seasonID || v.CreatedAt.After(at) {
			continue
		}
		if best == nil || v.Version > best.Version {
			best = &v
		}
	}
	if best == nil {
		return nil, repositories.ErrRatingParametersNotFound
	}
	p := *best
	return &p, nil
}

func (f *fakeParamsRepo) ListBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.RatingParameters, error) {
	var out []*models.RatingParameters
	for i := range f.versions {
		if f.versions[i].SeasonID == seasonID {
			p := f.versions[i]
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (f *fakeParamsRepo) DeactivateActive(ctx context.Context, exec repositories.SQLExecutor, seasonID int) error {
	for i := range f.versions {
		if f.versions[i].SeasonID == seasonID {
			f.versions[i].IsActive = false
		}
	}
	return nil
}

type fakeLockRepo struct {
	locks map[int]models.SeasonLock
}

func newFakeLockRepo() *fakeLockRepo {
	return &fakeLockRepo{locks: make(map[int]models.SeasonLock)}
}

func (f *fakeLockRepo) Get(ctx context.Context, exec repositories.SQLExecutor, seasonID int) (*models.SeasonLock, error) {
	l, ok := f.locks[seasonID]
	if !ok {
		return &models.SeasonLock{SeasonID: seasonID}, nil
	}
	return &l, nil
}

func (f *fakeLockRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, seasonID int) (*models.SeasonLock, error) {
	return f.Get(ctx, exec, seasonID)
}

func (f *fakeLockRepo) Upsert(ctx context.Context, exec repositories.SQLExecutor, lock *models.SeasonLock) error {
	f.locks[lock.SeasonID] = *lock
	return nil
}

type fakeMatchRepo struct {
	matches []models.CompletedMatch
	pending map[int]int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{pending: make(map[int]int)}
}

func (f *fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.CompletedMatch, error) {
	for i := range f.matches {
		if f.matches[i].ID == id {
			m := f.matches[i]
			return &m, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (f *fakeMatchRepo) listCompleted(filter func(models.CompletedMatch) bool) []*models.CompletedMatch {
	var out []*models.CompletedMatch
	for i := range f.matches {
		m := f.matches[i]
		if m.Status == models.MatchStatusCompleted && filter(m) {
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (f *fakeMatchRepo) ListCompletedBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.CompletedMatch, error) {
	return f.listCompleted(func(m models.CompletedMatch) bool { return m.SeasonID == seasonID }), nil
}

func (f *fakeMatchRepo) ListCompletedByDivision(ctx context.Context, exec repositories.SQLExecutor, seasonID, divisionID int) ([]*models.CompletedMatch, error) {
	return f.listCompleted(func(m models.CompletedMatch) bool {
		return m.SeasonID == seasonID && m.DivisionID != nil && *m.DivisionID == divisionID
	}), nil
}

func (f *fakeMatchRepo) ListCompletedByPlayer(ctx context.Context, exec repositories.SQLExecutor, seasonID, userID int) ([]*models.CompletedMatch, error) {
	return f.listCompleted(func(m models.CompletedMatch) bool {
		if m.SeasonID != seasonID {
			return false
		}
		for _, p := range m.Players() {
			if p == userID {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeMatchRepo) CountPendingBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) (int, error) {
	return f.pending[seasonID], nil
}

func (f *fakeMatchRepo) CountCompletedBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) (int, error) {
	return len(f.listCompleted(func(m models.CompletedMatch) bool { return m.SeasonID == seasonID })), nil
}

type fakeBracketRepo struct {
	nextID   int
	brackets map[int]models.Bracket
	rounds   map[int]models.BracketRound
	matches  map[int]models.BracketMatch
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{
		brackets: make(map[int]models.Bracket),
		rounds:   make(map[int]models.BracketRound),
		matches:  make(map[int]models.BracketMatch),
	}
}

func (f *fakeBracketRepo) Create(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket) error {
	f.nextID++
	bracket.ID = f.nextID
	bracket.CreatedAt = time.Now()
	bracket.UpdatedAt = bracket.CreatedAt
	f.brackets[bracket.ID] = *bracket
	return nil
}

func (f *fakeBracketRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Bracket, error) {
	b, ok := f.brackets[id]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	return &b, nil
}

func (f *fakeBracketRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Bracket, error) {
	return f.GetByID(ctx, exec, id)
}

func (f *fakeBracketRepo) GetBySeasonDivision(ctx context.Context, exec repositories.SQLExecutor, seasonID, divisionID int) (*models.Bracket, error) {
	for _, b := range f.brackets {
		if b.SeasonID == seasonID && b.DivisionID == divisionID {
			b := b
			return &b, nil
		}
	}
	return nil, repositories.ErrBracketNotFound
}

func (f *fakeBracketRepo) Update(ctx context.Context, exec repositories.SQLExecutor, bracket *models.Bracket) error {
	if _, ok := f.brackets[bracket.ID]; !ok {
		return repositories.ErrBracketNotFound
	}
	bracket.UpdatedAt = time.Now()
	f.brackets[bracket.ID] = *bracket
	return nil
}

func (f *fakeBracketRepo) CreateRound(ctx context.Context, exec repositories.SQLExecutor, round *models.BracketRound) error {
	f.nextID++
	round.ID = f.nextID
	f.rounds[round.ID] = *round
	return nil
}

func (f *fakeBracketRepo) GetRoundByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.BracketRound, error) {
	r, ok := f.rounds[id]
	if !ok {
		return nil, repositories.ErrBracketRoundNotFound
	}
	return &r, nil
}

func (f *fakeBracketRepo) ListRounds(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.BracketRound, error) {
	var out []*models.BracketRound
	for _, r := range f.rounds {
		if r.BracketID == bracketID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (f *fakeBracketRepo) CreateMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.BracketMatch) error {
	f.nextID++
	match.ID = f.nextID
	match.UpdatedAt = time.Now()
	f.matches[match.ID] = *match
	return nil
}

func (f *fakeBracketRepo) GetMatchByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.BracketMatch, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrBracketMatchNotFound
	}
	return &m, nil
}

func (f *fakeBracketRepo) GetMatchByRoundNumber(ctx context.Context, exec repositories.SQLExecutor, roundID, matchNumber int) (*models.BracketMatch, error) {
	for _, m := range f.matches {
		if m.RoundID == roundID && m.MatchNumber == matchNumber {
			m := m
			return &m, nil
		}
	}
	return nil, repositories.ErrBracketMatchNotFound
}

func (f *fakeBracketRepo) UpdateMatch(ctx context.Context, exec repositories.SQLExecutor, match *models.BracketMatch) error {
	if _, ok := f.matches[match.ID]; !ok {
		return repositories.ErrBracketMatchNotFound
	}
	match.UpdatedAt = time.Now()
	f.matches[match.ID] = *match
	return nil
}

func (f *fakeBracketRepo) ListMatchesByRound(ctx context.Context, exec repositories.SQLExecutor, roundID int) ([]*models.BracketMatch, error) {
	var out []*models.BracketMatch
	for _, m := range f.matches {
		if m.RoundID == roundID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out, nil
}

func (f *fakeBracketRepo) ListMatchesByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) ([]*models.BracketMatch, error) {
	var out []*models.BracketMatch
	for _, m := range f.matches {
		round, ok := f.rounds[m.RoundID]
		if ok && round.BracketID == bracketID {
			m := m
			out = append(out, &m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := f.rounds[out[i].RoundID], f.rounds[out[j].RoundID]
		if ri.RoundNumber != rj.RoundNumber {
			return ri.RoundNumber < rj.RoundNumber
		}
		return out[i].MatchNumber < out[j].MatchNumber
	})
	return out, nil
}

func (f *fakeBracketRepo) DeleteMatchesByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	for id, m := range f.matches {
		if round, ok := f.rounds[m.RoundID]; ok && round.BracketID == bracketID {
			delete(f.matches, id)
		}
	}
	return nil
}

func (f *fakeBracketRepo) DeleteRoundsByBracket(ctx context.Context, exec repositories.SQLExecutor, bracketID int) error {
	for id, r := range f.rounds {
		if r.BracketID == bracketID {
			delete(f.rounds, id)
		}
	}
	return nil
}

type fakeStandingRepo struct {
	standings []models.DivisionStanding
}

func (f *fakeStandingRepo) ListByDivision(ctx context.Context, exec repositories.SQLExecutor, seasonID, divisionID int) ([]*models.DivisionStanding, error) {
	var out []*models.DivisionStanding
	for i := range f.standings {
		s := f.standings[i]
		if s.SeasonID == seasonID && s.DivisionID == divisionID {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out, nil
}

func (f *fakeStandingRepo) ListBySeason(ctx context.Context, exec repositories.SQLExecutor, seasonID int) ([]*models.DivisionStanding, error) {
	var out []*models.DivisionStanding
	for i := range f.standings {
		s := f.standings[i]
		if s.SeasonID == seasonID {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DivisionID != out[j].DivisionID {
			return out[i].DivisionID < out[j].DivisionID
		}
		return out[i].Rank < out[j].Rank
	})
	return out, nil
}

type notifiedMessage struct {
	UserIDs []int
	Message string
}

type fakeNotifier struct {
	sent []notifiedMessage
	fail bool
}

func (f *fakeNotifier) Notify(ctx context.Context, userIDs []int, message string) error {
	if f.fail {
		return fmt.Errorf("delivery failed")
	}
	f.sent = append(f.sent, notifiedMessage{UserIDs: userIDs, Message: message})
	return nil
}

type uploadedFile struct {
	Key         string
	ContentType string
	Data        []byte
}

type fakeUploader struct {
	uploads []uploadedFile
}

func (f *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	f.uploads = append(f.uploads, uploadedFile{Key: key, ContentType: contentType, Data: data})
	return &storage.UploadResult{Key: key, Location: "https://files.example.test/" + key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeUploader) GetPublicURL(key string) string {
	return "https://files.example.test/" + key
}

// testEnv wires every service against the in-memory fakes with a nil database
// handle, so transactional code paths run the bodies directly.
type testEnv struct {
	ratings   *fakeRatingRepo
	history   *fakeHistoryRepo
	params    *fakeParamsRepo
	locks     *fakeLockRepo
	matches   *fakeMatchRepo
	brackets  *fakeBracketRepo
	standings *fakeStandingRepo
	notifier  *fakeNotifier
	uploader  *fakeUploader

	config     RatingConfigService
	lockSvc    SeasonLockService
	ratingSvc  RatingService
	recalcSvc  RecalculationService
	bracketSvc BracketService
	exportSvc  ExportService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ratings:   newFakeRatingRepo(),
		history:   &fakeHistoryRepo{},
		params:    &fakeParamsRepo{},
		locks:     newFakeLockRepo(),
		matches:   newFakeMatchRepo(),
		brackets:  newFakeBracketRepo(),
		standings: &fakeStandingRepo{},
		notifier:  &fakeNotifier{},
		uploader:  &fakeUploader{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := rating.NewEngine()

	env.config = NewRatingConfigService(nil, env.params, env.locks, env.matches)
	env.lockSvc = NewSeasonLockService(nil, env.locks, env.matches)
	env.ratingSvc = NewRatingService(nil, engine, env.ratings, env.history, env.matches,
		env.locks, env.config, env.notifier, logger)
	env.recalcSvc = NewRecalculationService(nil, engine, env.ratings, env.history,
		env.matches, env.locks, env.config, logger)
	env.bracketSvc = NewBracketService(nil, env.brackets, env.standings, env.ratings,
		env.notifier, logger)
	env.exportSvc = NewExportService(env.ratings, env.standings, env.uploader, logger)
	return env
}

// seedRating creates a rating row directly, bypassing placement.
func (env *testEnv) seedRating(userID, seasonID int, divisionID *int, gameType models.GameType, ratingValue float64) *models.PlayerRating {
	r := &models.PlayerRating{
		UserID:          userID,
		SeasonID:        seasonID,
		DivisionID:      divisionID,
		GameType:        gameType,
		CurrentRating:   ratingValue,
		RatingDeviation: 350,
		IsProvisional:   true,
		PeakRating:      ratingValue,
		LowestRating:    ratingValue,
	}
	_ = env.ratings.Create(context.Background(), nil, r)
	return r
}
