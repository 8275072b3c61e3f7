// Package user is the demo relay's name directory. It records which
// user names exist so the client can address peers; no key material is
// ever stored here.
package user

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"cloak_chat/internal/model"
)

type (
	Repo struct {
		collection *mongo.Collection
	}
)

func NewRepo(db *mongo.Database) *Repo {
	return &Repo{
		collection: db.Collection("users"),
	}
}

func (r *Repo) GetByName(ctx context.Context, name string) (*model.User, error) {
	filter := bson.M{
		"name": name,
	}

	var u model.User
	err := r.collection.FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *Repo) Register(ctx context.Context, name string) (*model.User, error) {
	u := &model.User{
		Name:         name,
		RegisteredAt: time.Now().UTC(),
	}

	res, err := r.collection.InsertOne(ctx, u)
	if err != nil {
		return nil, err
	}

	u.ID = res.InsertedID.(primitive.ObjectID)
	return u, nil
}
