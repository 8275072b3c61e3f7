package app

import (
	"context"

	"cloak_chat/internal/model"
)

func (a *App) getUserAndCreateIfNotExist(ctx context.Context, username string) (*model.User, error) {
	u, err := a.userRepo.GetByName(ctx, username)
	if err != nil {
		return nil, err
	}

	if u != nil {
		return u, nil
	}

	return a.userRepo.Register(ctx, username)
}
