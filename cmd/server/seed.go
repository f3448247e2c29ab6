package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/matchboard/internal/domain"
	"github.com/UkralStul/matchboard/internal/storage"
)

// fillWithMockData создаёт небольшой набор данных для in-memory режима.
func fillWithMockData(ctx context.Context, s storage.Storage, logger *slog.Logger) error {
	now := time.Now().UTC()
	monthAgo := now.Add(-30 * 24 * time.Hour)

	// 1. Администратор и два давних пользователя
	admin, err := s.CreateUser(ctx, &domain.User{
		DisplayName: "Moderator", Role: domain.RolePhotographer, IsAdmin: true, CreatedAt: monthAgo,
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create admin: %w", err)
	}
	photographer, err := s.CreateUser(ctx, &domain.User{
		DisplayName: "Studio P", Role: domain.RolePhotographer, CreatedAt: monthAgo,
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create photographer: %w", err)
	}
	model, err := s.CreateUser(ctx, &domain.User{
		DisplayName: "Mia", Role: domain.RoleModel, CreatedAt: monthAgo,
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create model: %w", err)
	}

	// 2. Публичное объявление фотографа
	post, err := s.CreatePost(ctx, &domain.Post{
		AuthorID:    photographer.ID,
		Title:       "Portrait session in Shibuya",
		Body:        "Looking for a model for a street portrait series this weekend.",
		ContactText: "LINE: studio-p",
		IsPublic:    true,
		CreatedAt:   now.Add(-2 * time.Hour),
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create post: %w", err)
	}

	// 3. Тред с перепиской в обе стороны: контакт уже раскрыт
	thread, err := s.CreateThread(ctx, &domain.Thread{
		PostID:         post.ID,
		CreatedAt:      now.Add(-time.Hour),
		LastActivityAt: now.Add(-time.Hour),
	}, [2]string{model.ID, photographer.ID})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create thread: %w", err)
	}
	for i, m := range []struct{ sender, body string }{
		{model.ID, "Hi! I'm free on Saturday afternoon."},
		{photographer.ID, "Great, let's meet at 14:00."},
	} {
		if _, err := s.CreateMessage(ctx, &domain.Message{
			ThreadID:  thread.ID,
			SenderID:  m.sender,
			Body:      m.body,
			CreatedAt: now.Add(-time.Hour + time.Duration(i+1)*time.Minute),
		}); err != nil {
			return fmt.Errorf("fillWithMockData: failed to create message %d: %w", i+1, err)
		}
	}

	logger.Info("mock data filled",
		"admin", admin.ID,
		"photographer", photographer.ID,
		"model", model.ID,
		"post", post.ID,
		"thread", thread.ID,
	)
	return nil
}
