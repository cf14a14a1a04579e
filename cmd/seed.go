package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"eventhub/auth"
	"eventhub/models"
	"eventhub/service"
)

type fixtureUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type fixtureEvent struct {
	Organizer   string    `yaml:"organizer"` // email of one of the users
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Category    string    `yaml:"category"`
	Date        time.Time `yaml:"date"`
	Time        string    `yaml:"time"`
	Location    string    `yaml:"location"`
	Image       string    `yaml:"image"`
	Capacity    int       `yaml:"capacity"`
}

type fixtures struct {
	Users  []fixtureUser  `yaml:"users"`
	Events []fixtureEvent `yaml:"events"`
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load users and events from a YAML fixtures file",
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		if err := cfg.Database.Validate(); err != nil {
			return err
		}

		raw, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("failed to read fixtures: %w", err)
		}
		var fx fixtures
		if err := yaml.Unmarshal(raw, &fx); err != nil {
			return fmt.Errorf("failed to parse fixtures %s: %w", seedFile, err)
		}

		store, err := openStore(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, store.Close()) }()

		return seed(cmd.Context(), store, fx, log)
	},
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "fixtures.yaml", "fixtures file")
}

// seed creates the fixture users, reusing accounts that already exist, and
// then their events. Running it twice creates the events twice.
func seed(ctx context.Context, store service.Store, fx fixtures, log *zap.Logger) error {
	// Tokens are never handed out, so the secret only has to be non-empty.
	users := service.NewAuthService(store, auth.NewTokens("seed", time.Minute), log)
	events := service.NewEventService(store)

	ids := make(map[string]string, len(fx.Users))
	for _, u := range fx.Users {
		_, created, err := users.Signup(ctx, u.Name, u.Email, u.Password)
		switch {
		case errors.Is(err, models.ErrEmailTaken):
			existing, lookupErr := store.GetUserByEmail(ctx, normalize(u.Email))
			if lookupErr != nil {
				return fmt.Errorf("user %s: %w", u.Email, lookupErr)
			}
			created = existing
		case err != nil:
			return fmt.Errorf("user %s: %w", u.Email, err)
		}
		ids[created.Email] = created.ID
	}

	for _, e := range fx.Events {
		organizerID, ok := ids[normalize(e.Organizer)]
		if !ok {
			return fmt.Errorf("event %q: organizer %s is not in the users list", e.Title, e.Organizer)
		}
		ev, err := events.Create(ctx, organizerID, &models.Event{
			Title:       e.Title,
			Description: e.Description,
			Category:    models.Category(e.Category),
			Date:        e.Date,
			Time:        e.Time,
			Location:    e.Location,
			Image:       e.Image,
			Capacity:    e.Capacity,
		})
		if err != nil {
			return fmt.Errorf("event %q: %w", e.Title, err)
		}
		log.Debug("seeded event", zap.String("event_id", ev.ID), zap.String("title", ev.Title))
	}

	log.Info("seed complete", zap.Int("users", len(fx.Users)), zap.Int("events", len(fx.Events)))
	return nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
