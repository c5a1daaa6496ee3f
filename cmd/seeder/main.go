package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/talkhub/internal/apperr"
	"github.com/quocanhngo/talkhub/internal/config"
	"github.com/quocanhngo/talkhub/internal/database"
	"github.com/quocanhngo/talkhub/internal/logger"
	"github.com/quocanhngo/talkhub/internal/model"
	"github.com/quocanhngo/talkhub/internal/repository"
	"github.com/quocanhngo/talkhub/internal/service"
	"github.com/quocanhngo/talkhub/migrations"
	"github.com/quocanhngo/talkhub/pkg/auth"
)

const password = "password123"

func main() {
	users := flag.Int("users", 10, "number of demo users")
	dryRun := flag.Bool("dry-run", false, "seed a throwaway in-memory SQLite database")
	rollback := flag.Bool("rollback", false, "revert the last PostgreSQL migration and exit")
	status := flag.Bool("status", false, "print the PostgreSQL schema version and exit")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.App.Env)
	logger.SetPrefix("seeder")
	defer logger.Sync()

	if *rollback || *status {
		if cfg.DB.Driver != "postgres" {
			logger.Fatalf("migrations need the postgres driver, got %q", cfg.DB.Driver)
		}
		if *rollback {
			if err := migrations.Rollback(cfg.DB.URL()); err != nil {
				logger.Fatalf("Rollback failed: %v", err)
			}
		}
		version, dirty, err := migrations.Status(cfg.DB.URL())
		if err != nil {
			logger.Fatalf("Migration status: %v", err)
		}
		logger.Infof("Schema version %d (dirty: %v)", version, dirty)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var store *repository.Store
	if *dryRun {
		db, err := database.OpenInMemory()
		if err != nil {
			logger.Fatalf("Failed to open in-memory database: %v", err)
		}
		store = repository.NewStore(db)
		logger.Info("Dry run: seeding an in-memory database")
	} else {
		s, closeStore, err := database.OpenStore(ctx, cfg.DB, cfg.App.Env)
		if err != nil {
			logger.Fatalf("Failed to open %s store: %v", cfg.DB.Driver, err)
		}
		defer closeStore()
		store = s
	}

	if err := seed(ctx, store, cfg, *users); err != nil {
		logger.Fatalf("Seeding failed: %v", err)
	}
	logger.Info("Seeding completed")
}

// seed goes through the services so every backend gets the same invariants.
func seed(ctx context.Context, store *repository.Store, cfg *config.Config, n int) error {
	defer logger.DeferLogDuration("seed", time.Now())()

	gate := service.NewAccessGate(store.Chats, store.Groups)
	authService := service.NewAuthService(store.Users, auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry), nil)
	chatService := service.NewChatService(store, gate)
	groupService := service.NewGroupService(store, gate, nil)
	messageService := service.NewMessageService(store, gate, nil, nil, cfg.Paging)

	ids := make([]uuid.UUID, 0, n)
	for i := 1; i <= n; i++ {
		username := fmt.Sprintf("user%d", i)
		email := username + "@talkhub.local"

		resp, err := authService.Register(ctx, model.RegisterRequest{Username: username, Email: email, Password: password})
		switch {
		case err == nil:
			ids = append(ids, resp.User.ID)
			logger.Infof("Created user: %s | Email: %s | Pass: %s", username, email, password)
		case errors.Is(err, apperr.ErrConflict):
			existing, err := store.Users.FindByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("load %s: %w", email, err)
			}
			ids = append(ids, existing.ID)
		default:
			return fmt.Errorf("register %s: %w", username, err)
		}
	}
	if len(ids) < 3 {
		return nil
	}

	admin := ids[0]
	chat, err := chatService.GetOrCreateChat(ctx, admin, ids[1])
	if err != nil {
		return fmt.Errorf("demo chat: %w", err)
	}
	if _, err := messageService.Send(ctx, admin, model.SendMessageRequest{ChatID: &chat.ID, Content: "Hey, welcome to TalkHub!"}); err != nil {
		return fmt.Errorf("demo chat message: %w", err)
	}

	existing, err := groupService.ListUserGroups(ctx, admin)
	if err != nil {
		return err
	}
	for _, g := range existing {
		if g.Name == "General Chat" {
			return nil
		}
	}
	group, err := groupService.Create(ctx, admin, model.CreateGroupRequest{
		Name:      "General Chat",
		AvatarURL: "https://api.dicebear.com/7.x/initials/svg?seed=GC",
		MemberIDs: ids[1:3],
	})
	if err != nil {
		return fmt.Errorf("demo group: %w", err)
	}
	if _, err := messageService.Send(ctx, admin, model.SendMessageRequest{GroupID: &group.ID, Content: "Welcome everybody to TalkHub! 🚀"}); err != nil {
		return fmt.Errorf("demo group message: %w", err)
	}
	logger.Infof("Created demo group %q with %d members", group.Name, len(group.Members))
	return nil
}
