package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kraman82351/Task-management/internal/store"
	"github.com/kraman82351/Task-management/types"
)

// UserRepository stores users in the "users" collection.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func tokenField(kind types.TokenKind) (string, bool) {
	switch kind {
	case types.TokenVerification:
		return "verificationToken", true
	case types.TokenReset:
		return "resetToken", true
	default:
		return "", false
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return store.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return store.ErrConflict
	default:
		return err
	}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.D) (types.User, error) {
	var user types.User
	if err := r.coll.FindOne(ctx, filter).Decode(&user); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]types.User, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	users := make([]types.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *UserRepository) GetByTokenHash(ctx context.Context, kind types.TokenKind, hash string) (types.User, error) {
	field, ok := tokenField(kind)
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: field + ".hash", Value: hash}})
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.VerificationToken = nil
	user.ResetToken = nil

	if _, err := r.coll.InsertOne(ctx, user); err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

// UpdateProfile sets only the profile fields and returns the stored user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, profile types.Profile) (types.User, error) {
	return r.setFields(ctx, id, bson.D{
		{Key: "name", Value: profile.Name},
		{Key: "bio", Value: profile.Bio},
		{Key: "photo", Value: profile.Photo},
	})
}

func (r *UserRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.setFields(ctx, id, bson.D{{Key: "passwordHash", Value: passwordHash}})
	return err
}

func (r *UserRepository) SetRole(ctx context.Context, id string, role types.Role) error {
	_, err := r.setFields(ctx, id, bson.D{{Key: "role", Value: role}})
	return err
}

func (r *UserRepository) setFields(ctx context.Context, id string, fields bson.D) (types.User, error) {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user types.User
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: fields}}, opts).Decode(&user)
	if err != nil {
		return types.User{}, mapError(err)
	}
	return user, nil
}

func (r *UserRepository) SetToken(ctx context.Context, id string, kind types.TokenKind, token types.OneTimeToken) error {
	field, ok := tokenField(kind)
	if !ok {
		return store.ErrNotFound
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: field, Value: token},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}
	result, err := r.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ConsumeToken clears the token only while its hash still matches, so a
// token can be redeemed once.
func (r *UserRepository) ConsumeToken(ctx context.Context, id string, kind types.TokenKind, hash string, change types.TokenConsumption) error {
	field, ok := tokenField(kind)
	if !ok {
		return store.ErrNotFound
	}

	set := bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}
	if change.MarkVerified {
		set = append(set, bson.E{Key: "isVerified", Value: true})
	}
	if change.PasswordHash != "" {
		set = append(set, bson.E{Key: "passwordHash", Value: change.PasswordHash})
	}

	filter := bson.D{{Key: "_id", Value: id}, {Key: field + ".hash", Value: hash}}
	update := bson.D{
		{Key: "$set", Value: set},
		{Key: "$unset", Value: bson.D{{Key: field, Value: ""}}},
	}
	result, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
