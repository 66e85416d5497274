package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courtsidehq/league-engine/models"
	"github.com/courtsidehq/league-engine/repositories"
	"github.com/courtsidehq/league-engine/storage"
)

type ExportFormat string

const (
	ExportFormatJSON ExportFormat = "JSON"
	ExportFormatCSV  ExportFormat = "CSV"
)

// SeasonExport is a generated snapshot of a season's ratings and standings.
type SeasonExport struct {
	SeasonID    int          `json:"season_id"`
	Format      ExportFormat `json:"format"`
	Filename    string       `json:"filename"`
	ContentType string       `json:"content_type"`
	GeneratedAt time.Time    `json:"generated_at"`
	Data        []byte       `json:"-"`
}

type seasonExportDocument struct {
	SeasonID    int                            `json:"season_id"`
	GeneratedAt time.Time                      `json:"generated_at"`
	Ratings     []*models.PlayerRatingWithUser `json:"ratings"`
	Standings   []*models.DivisionStanding     `json:"standings"`
}

type ExportService interface {
	GenerateSeasonExport(ctx context.Context, seasonID int, format ExportFormat) (*SeasonExport, error)
	// UploadSeasonExport generates the export and pushes it to file storage,
	// returning the upload location alongside the export metadata.
	UploadSeasonExport(ctx context.Context, seasonID int, format ExportFormat) (*SeasonExport, *storage.UploadResult, error)
}

type exportService struct {
	ratingRepo   repositories.PlayerRatingRepository
	standingRepo repositories.StandingRepository
	uploader     storage.FileUploader
	logger       *slog.Logger
}

func NewExportService(
	ratingRepo repositories.PlayerRatingRepository,
	standingRepo repositories.StandingRepository,
	uploader storage.FileUploader,
	logger *slog.Logger,
) ExportService {
	return &exportService{
		ratingRepo:   ratingRepo,
		standingRepo: standingRepo,
		uploader:     uploader,
		logger:       logger,
	}
}

func (s *exportService) GenerateSeasonExport(ctx context.Context, seasonID int, format ExportFormat) (*SeasonExport, error) {
	if format != ExportFormatJSON && format != ExportFormatCSV {
		return nil, fmt.Errorf("%w: unsupported export format %q", ErrValidationFailed, format)
	}

	var (
		ratings   []*models.PlayerRatingWithUser
		standings []*models.DivisionStanding
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ratings, err = s.ratingRepo.ListBySeasonWithUsers(gCtx, nil, seasonID)
		return err
	})
	g.Go(func() error {
		var err error
		standings, err = s.standingRepo.ListBySeason(gCtx, nil, seasonID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load export data: %w", err)
	}

	now := time.Now().UTC()
	export := &SeasonExport{
		SeasonID:    seasonID,
		Format:      format,
		GeneratedAt: now,
	}

	switch format {
	case ExportFormatJSON:
		data, err := json.MarshalIndent(seasonExportDocument{
			SeasonID:    seasonID,
			GeneratedAt: now,
			Ratings:     ratings,
			Standings:   standings,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		export.Data = data
		export.ContentType = "application/json"
		export.Filename = fmt.Sprintf("season-%d-export-%s.json", seasonID, now.Format("20060102-150405"))

	case ExportFormatCSV:
		data, err := renderSeasonCSV(ratings, standings)
		if err != nil {
			return nil, fmt.Errorf("failed to encode export: %w", err)
		}
		export.Data = data
		export.ContentType = "text/csv"
		export.Filename = fmt.Sprintf("season-%d-export-%s.csv", seasonID, now.Format("20060102-150405"))
	}

	s.logger.Info("season export generated",
		slog.Int("season_id", seasonID),
		slog.String("format", string(format)),
		slog.Int("ratings", len(ratings)),
		slog.Int("standings", len(standings)),
	)
	return export, nil
}

func (s *exportService) UploadSeasonExport(ctx context.Context, seasonID int, format ExportFormat) (*SeasonExport, *storage.UploadResult, error) {
	if s.uploader == nil {
		return nil, nil, fmt.Errorf("file storage is not configured")
	}

	export, err := s.GenerateSeasonExport(ctx, seasonID, format)
	if err != nil {
		return nil, nil, err
	}

	key := fmt.Sprintf("exports/season-%d/%s", seasonID, export.Filename)
	result, err := s.uploader.Upload(ctx, key, export.ContentType, bytes.NewReader(export.Data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload export: %w", err)
	}

	s.logger.Info("season export uploaded",
		slog.Int("season_id", seasonID),
		slog.String("key", result.Key),
	)
	return export, result, nil
}

// renderSeasonCSV writes the two sections in one file: a RATINGS block, a
// blank line, then a STANDINGS block, each with its own header row.
func renderSeasonCSV(ratings []*models.PlayerRatingWithUser, standings []*models.DivisionStanding) ([]byte, error) {
	var buf bytes.Buffer

	ratingRecords := [][]string{
		{"RATINGS"},
		{"userId", "userName", "email", "division", "gameType", "currentRating",
			"matchesPlayed", "isProvisional", "peakRating", "lowestRating"},
	}
	for _, r := range ratings {
		division := ""
		if r.DivisionID != nil {
			division = strconv.Itoa(*r.DivisionID)
		}
		ratingRecords = append(ratingRecords, []string{
			strconv.Itoa(r.UserID),
			r.UserName,
			r.Email,
			division,
			string(r.GameType),
			strconv.FormatFloat(r.CurrentRating, 'f', 1, 64),
			strconv.Itoa(r.MatchesPlayed),
			strconv.FormatBool(r.IsProvisional),
			strconv.FormatFloat(r.PeakRating, 'f', 1, 64),
			strconv.FormatFloat(r.LowestRating, 'f', 1, 64),
		})
	}

	standingRecords := [][]string{
		{"STANDINGS"},
		{"userId", "userName", "division", "rank", "wins", "losses",
			"totalPoints", "setsWon", "setsLost"},
	}
	for _, st := range standings {
		standingRecords = append(standingRecords, []string{
			strconv.Itoa(st.UserID),
			st.UserName,
			strconv.Itoa(st.DivisionID),
			strconv.Itoa(st.Rank),
			strconv.Itoa(st.Wins),
			strconv.Itoa(st.Losses),
			strconv.Itoa(st.TotalPoints),
			strconv.Itoa(st.SetsWon),
			strconv.Itoa(st.SetsLost),
		})
	}

	if err := csv.NewWriter(&buf).WriteAll(ratingRecords); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	if err := csv.NewWriter(&buf).WriteAll(standingRecords); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
