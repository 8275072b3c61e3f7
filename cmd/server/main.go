package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"cloak_chat/internal/config"
	"cloak_chat/internal/repository/user"
	"cloak_chat/internal/service/mailbox"
	"cloak_chat/internal/service/server"
	"cloak_chat/internal/utils/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config failed", zap.Error(err))
	}

	mongoDBClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		log.Fatal("connect mongo failed", zap.Error(err))
	}

	db := mongoDBClient.Database(cfg.MongoDB)

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})

	userRepo := user.NewRepo(db)
	mb := mailbox.New(rdb)

	s := server.NewHttpServer(cfg.ServerAddr, userRepo, mb)
	log.Info("relay listening", zap.String("addr", cfg.ServerAddr))
	if err := s.Run(); err != nil {
		log.Fatal("relay stopped", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
