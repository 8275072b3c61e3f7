package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"cloak_chat/internal/config"
	"cloak_chat/internal/repository/peerstore"
	"cloak_chat/internal/repository/user"
	"cloak_chat/internal/service/app"
	"cloak_chat/internal/service/kv"
	"cloak_chat/internal/utils/log"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: client <username>")
	}
	username := os.Args[1]

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

	ctx := context.Background()

	userRepo := user.NewRepo(db)
	store := peerstore.New(kv.NewRedis(rdb))

	client := app.NewApp(cfg.ServerAddr, userRepo, store)
	go func() {
		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		client.Stop()
	}()

	client.Run(ctx, username)
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
