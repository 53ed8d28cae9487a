// Package mongodb implements the user store over a MongoDB collection.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/repository"
)

// CollectionUsers is the collection holding user documents.
const CollectionUsers = "users"

const connectTimeout = 10 * time.Second

// Store implements user persistence over MongoDB.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	logger *slog.Logger
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Username  string    `bson:"username"`
	CreatedAt time.Time `bson:"created_at"`
}

// Open connects to uri, verifies the connection and ensures the unique
// username index on the users collection of database.
func Open(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	store := &Store{
		client: client,
		users:  client.Database(database).Collection(CollectionUsers),
		logger: logger,
	}

	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_users_username_unique"),
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Ping checks connectivity to the deployment.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateUser inserts a user document, assigning its id and creation time.
func (s *Store) CreateUser(ctx context.Context, name, username string) (*model.User, error) {
	doc := userDocument{
		ID:        ulid.Make().String(),
		Name:      name,
		Username:  username,
		CreatedAt: time.UnixMilli(time.Now().UnixMilli()).UTC(),
	}

	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		return nil, handleMongoError(err)
	}

	return doc.toUser(), nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindUserByUsername retrieves a user by exact username match.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"username": username})
}

// CountUsersByUsername returns how many documents carry username.
func (s *Store) CountUsersByUsername(ctx context.Context, username string) (int64, error) {
	n, err := s.users.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return 0, handleMongoError(err)
	}
	return n, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var doc userDocument
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			s.logger.ErrorContext(ctx, "failed to find user",
				slog.String("error", err.Error()),
			)
		}
		return nil, handleMongoError(err)
	}
	return doc.toUser(), nil
}

func (d *userDocument) toUser() *model.User {
	return &model.User{
		ID:        d.ID,
		Name:      d.Name,
		Username:  d.Username,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

// handleMongoError maps driver errors onto the repository sentinels.
func handleMongoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrUserNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrUsernameExists
	}
	return fmt.Errorf("failed to operate on user: %w", err)
}
