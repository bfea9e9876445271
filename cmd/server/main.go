package main

import (
	"context"
	"log"
	"os"
	"strings"

	"anoa.com/sociablechat/internal/config"
	"anoa.com/sociablechat/internal/entity"
	searchService "anoa.com/sociablechat/internal/modules/search/service"
	userRepo "anoa.com/sociablechat/internal/modules/user/repository"
	"anoa.com/sociablechat/internal/server"
	"anoa.com/sociablechat/pkg/database"
	"github.com/meilisearch/meilisearch-go"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := database.Connect()
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := database.ConnectRedis()

	if cfg.AppEnv == "development" {
		if err := seedDemoUsers(db); err != nil {
			log.Fatalf("failed to seed demo users: %v", err)
		}
	}

	srv := server.NewServer(db, redisClient)

	if err := srv.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&entity.User{},
		&entity.Friendship{},
		&entity.Conversation{},
		&entity.ConversationMessage{},
		&entity.MessageRead{},
		&entity.Group{},
		&entity.GroupMember{},
		&entity.GroupMessage{},
		&entity.GroupMessageRead{},
		&entity.Notification{},
	)
}

// seedDemoUsers creates a small friend graph so a fresh dev environment has
// someone to chat with. Runs once; an already-populated users table skips it.
func seedDemoUsers(db *gorm.DB) error {
	users := userRepo.NewUserRepository(db)
	ctx := context.Background()

	count, err := users.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Println("Users already exist, skipping seed")
		return nil
	}

	password := "demo1234"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	demo := []entity.User{
		{Username: "alice", FullName: "Alice Hartono", PasswordHash: string(hashed)},
		{Username: "budi", FullName: "Budi Santoso", PasswordHash: string(hashed)},
		{Username: "citra", FullName: "Citra Dewi", PasswordHash: string(hashed)},
		{Username: "dimas", FullName: "Dimas Prasetyo", PasswordHash: string(hashed)},
	}

	for i := range demo {
		if err := users.Create(ctx, &demo[i]); err != nil {
			return err
		}
	}

	// Everyone is friends with everyone so every pairing is reachable.
	for i := range demo {
		for j := i + 1; j < len(demo); j++ {
			if err := users.AddFriendship(ctx, demo[i].ID, demo[j].ID); err != nil {
				return err
			}
		}
	}

	indexDemoUsers(demo)

	log.Println("Demo users seeded successfully")
	log.Printf("   Usernames: alice, budi, citra, dimas (password: %s)", password)

	return nil
}

// indexDemoUsers pushes the seeded users into the search index. Search is
// optional in dev, so failures only log.
func indexDemoUsers(users []entity.User) {
	host := os.Getenv("MEILISEARCH_HOST")
	if host == "" {
		host = "http://localhost:7700"
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}

	client := meilisearch.New(host, meilisearch.WithAPIKey(os.Getenv("MEILI_MASTER_KEY")))
	search := searchService.NewSearchService(client)

	for i := range users {
		if err := search.IndexUser(&users[i]); err != nil {
			log.Printf("failed to index seeded user %s: %v", users[i].Username, err)
		}
	}
}
