package seed

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/selin/memoria/internal/app/models"
	"github.com/selin/memoria/internal/app/repositories"
	"github.com/selin/memoria/internal/db"
	"github.com/selin/memoria/internal/pkg/apperrors"
)

// CreateDefaultData seeds a demo community for development environments.
// Existing data is left untouched.
func CreateDefaultData(ctx context.Context, database *db.PostgresDB, lgr zerolog.Logger) error {
	repos := repositories.NewRepositories(database)

	lgr.Info().Msg("Checking/Creating default data...")

	_, err := repos.CommunityRepository.FindByExternalID(ctx, "comm_general")
	if err == nil {
		lgr.Debug().Msg("Default community already present")
		return nil
	}
	if !errors.Is(err, apperrors.ErrCommunityNotFound) {
		return err
	}

	_, err = repos.CommunityRepository.Create(ctx, &models.Community{
		ExternalID: "comm_general",
		Name:       "General",
	})
	if err != nil && !errors.Is(err, apperrors.ErrCommunityAlreadyExists) {
		lgr.Error().Err(err).Msg("Error creating default community")
		return err
	}

	lgr.Info().Msg("Default data ready")
	return nil
}
