package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kraman82351/Task-management/internal/store"
	"github.com/kraman82351/Task-management/types"
)

// TaskRepository stores tasks in the "tasks" collection.
type TaskRepository struct {
	coll  *mongo.Collection
	users *mongo.Collection
}

func NewTaskRepository(db *mongo.Database) *TaskRepository {
	return &TaskRepository{
		coll:  db.Collection(tasksCollection),
		users: db.Collection(usersCollection),
	}
}

func (r *TaskRepository) ListByOwner(ctx context.Context, ownerID string) ([]types.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "user", Value: ownerID}}, opts)
	if err != nil {
		return nil, err
	}
	tasks := make([]types.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, id string) (types.Task, error) {
	var task types.Task
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&task); err != nil {
		return types.Task{}, mapError(err)
	}
	return task, nil
}

// Create checks the owner exists, matching the postgres foreign key.
func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	owners, err := r.users.CountDocuments(ctx, bson.D{{Key: "_id", Value: task.UserID}})
	if err != nil {
		return types.Task{}, err
	}
	if owners == 0 {
		return types.Task{}, store.ErrNotFound
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, task); err != nil {
		return types.Task{}, mapError(err)
	}
	return task, nil
}

func (r *TaskRepository) Update(ctx context.Context, task types.Task) (types.Task, error) {
	task.UpdatedAt = time.Now().UTC()

	set := bson.D{
		{Key: "title", Value: task.Title},
		{Key: "description", Value: task.Description},
		{Key: "priority", Value: task.Priority},
		{Key: "status", Value: task.Status},
		{Key: "completed", Value: task.Completed},
		{Key: "updatedAt", Value: task.UpdatedAt},
	}
	unset := bson.D{}
	if task.DueDate != nil {
		set = append(set, bson.E{Key: "dueDate", Value: *task.DueDate})
	} else {
		unset = append(unset, bson.E{Key: "dueDate", Value: ""})
	}
	if task.Attachment != nil {
		set = append(set, bson.E{Key: "attachment", Value: *task.Attachment})
	} else {
		unset = append(unset, bson.E{Key: "attachment", Value: ""})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}

	var updated types.Task
	err := r.coll.FindOneAndUpdate(
		ctx,
		bson.D{{Key: "_id", Value: task.ID}},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return types.Task{}, mapError(err)
	}
	return updated, nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *TaskRepository) DeleteByOwner(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.D{{Key: "user", Value: ownerID}})
	if err != nil {
		return 0, mapError(err)
	}
	return result.DeletedCount, nil
}
