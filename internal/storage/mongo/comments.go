package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateComment вставляет комментарий. Автор и пост должны быть корректными идентификаторами.
func (m *Mongo) CreateComment(ctx context.Context, c models.Comment) (*models.Comment, error) {
	const op = "storage/mongo/CreateComment"

	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	c.IsDeleted, c.IsEdited = false, false

	doc, ok := newCommentDoc(c)
	if !ok {
		return nil, fmt.Errorf("%s: author/post: %w", op, storage.ErrNotFound)
	}
	doc.ID = primitive.NilObjectID

	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: commentsCollection, Kind: "insertOne"},
		func(ctx context.Context) (*mongodriver.InsertOneResult, error) {
			return m.comments.InsertOne(ctx, doc)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: insert: %w", op, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%s: inserted id type", op)
	}

	doc.ID = oid
	out := doc.model()

	return &out, nil
}

// CommentByID возвращает комментарий. Скрытые записи видны только с IncludeDeleted.
func (m *Mongo) CommentByID(ctx context.Context, id string, q storage.CommentQuery) (*models.Comment, error) {
	const op = "storage/mongo/CommentByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	byID := bson.D{{Key: "_id", Value: oid}}
	filter, ok := visibilityFilter(q, byID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var doc commentDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: commentsCollection, Kind: "findOne", Filter: filter},
		func(ctx context.Context) error {
			return m.comments.FindOne(ctx, q, byID).Decode(&doc)
		})
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := doc.model()

	return &out, nil
}

// ListComments возвращает комментарии по запросу.
// Порядок: created_at ASC (newestFirst=false) или DESC; _id — вторичный ключ.
func (m *Mongo) ListComments(ctx context.Context, q storage.CommentQuery, newestFirst bool, limit int64) ([]models.Comment, error) {
	const op = "storage/mongo/ListComments"

	filter, ok := visibilityFilter(q, nil)
	if !ok {
		return []models.Comment{}, nil
	}

	dir := 1
	if newestFirst {
		dir = -1
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: dir}, {Key: "_id", Value: dir}})
	if limit > 0 {
		findOpts.SetLimit(limit)
	}

	out, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: commentsCollection, Kind: "find", Filter: filter},
		func(ctx context.Context) ([]models.Comment, error) {
			cur, err := m.comments.Find(ctx, q, nil, findOpts)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, commentDoc.model)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// UpdateCommentContent меняет текст видимого комментария и помечает его отредактированным.
func (m *Mongo) UpdateCommentContent(ctx context.Context, id, content string) (*models.Comment, error) {
	const op = "storage/mongo/UpdateCommentContent"

	return m.updateComment(ctx, op, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "content", Value: content},
		{Key: "is_edited", Value: true},
		{Key: "updated_at", Value: now()},
	}}})
}

// SoftDeleteComment помечает видимый комментарий удалённым. Повторное удаление — storage.ErrNotFound.
func (m *Mongo) SoftDeleteComment(ctx context.Context, id string) error {
	const op = "storage/mongo/SoftDeleteComment"

	_, err := m.updateComment(ctx, op, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_deleted", Value: true},
		{Key: "updated_at", Value: now()},
	}}})

	return err
}

// SetCommentLike добавляет или убирает отметку пользователя у видимого комментария.
func (m *Mongo) SetCommentLike(ctx context.Context, id, userID string, liked bool) (*models.Comment, error) {
	const op = "storage/mongo/SetCommentLike"

	uid, ok := parseOID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: user: %w", op, storage.ErrNotFound)
	}

	operator := "$pull"
	if liked {
		operator = "$addToSet"
	}

	return m.updateComment(ctx, op, id, bson.D{
		{Key: operator, Value: bson.D{{Key: "likes", Value: uid}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
}

func (m *Mongo) updateComment(ctx context.Context, op, id string, update bson.D) (*models.Comment, error) {
	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	byID := bson.D{{Key: "_id", Value: oid}}
	filter := scopedFilter(storage.CommentQuery{}, byID)

	var doc commentDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: commentsCollection, Kind: "findOneAndUpdate", Filter: filter},
		func(ctx context.Context) error {
			return m.comments.FindOneAndUpdate(ctx, storage.CommentQuery{}, byID, update).Decode(&doc)
		})
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := doc.model()

	return &out, nil
}

// DeleteCommentsByPost физически удаляет все комментарии поста, включая скрытые.
func (m *Mongo) DeleteCommentsByPost(ctx context.Context, postID string) (int64, error) {
	const op = "storage/mongo/DeleteCommentsByPost"

	return m.deleteComments(ctx, op, "post", postID)
}

// DeleteCommentsByAuthor физически удаляет все комментарии автора, включая скрытые.
func (m *Mongo) DeleteCommentsByAuthor(ctx context.Context, authorID string) (int64, error) {
	const op = "storage/mongo/DeleteCommentsByAuthor"

	return m.deleteComments(ctx, op, "author", authorID)
}

func (m *Mongo) deleteComments(ctx context.Context, op, field, id string) (int64, error) {
	oid, ok := parseOID(id)
	if !ok {
		return 0, nil
	}

	filter := bson.D{{Key: field, Value: oid}}
	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: commentsCollection, Kind: "deleteMany", Filter: filter},
		func(ctx context.Context) (*mongodriver.DeleteResult, error) {
			return m.comments.DeleteMany(ctx, filter)
		})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.DeletedCount, nil
}
