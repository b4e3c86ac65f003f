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

// CreateCategory вставляет категорию с нулевым счётчиком постов.
func (m *Mongo) CreateCategory(ctx context.Context, c models.Category) (*models.Category, error) {
	const op = "storage/mongo/CreateCategory"

	doc := newCategoryDoc(c)
	doc.ID = primitive.NilObjectID
	doc.PostCount = 0

	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: categoriesCollection, Kind: "insertOne"},
		func(ctx context.Context) (*mongodriver.InsertOneResult, error) {
			return m.categories.InsertOne(ctx, doc)
		})
	if err != nil {
		if mongodriver.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		}

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

// CategoryByID возвращает категорию по идентификатору.
func (m *Mongo) CategoryByID(ctx context.Context, id string) (*models.Category, error) {
	const op = "storage/mongo/CategoryByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}

	var doc categoryDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: categoriesCollection, Kind: "findOne", Filter: filter},
		func(ctx context.Context) error {
			return m.categories.FindOne(ctx, filter).Decode(&doc)
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

// CategoriesByIDs возвращает категории по списку идентификаторов.
func (m *Mongo) CategoriesByIDs(ctx context.Context, ids []string) ([]models.Category, error) {
	const op = "storage/mongo/CategoriesByIDs"

	oids := parseOIDs(ids)
	if len(oids) == 0 {
		return []models.Category{}, nil
	}

	return m.findCategories(ctx, op, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}})
}

// ListCategories возвращает все категории, отсортированные по имени.
func (m *Mongo) ListCategories(ctx context.Context) ([]models.Category, error) {
	const op = "storage/mongo/ListCategories"

	return m.findCategories(ctx, op, bson.D{})
}

func (m *Mongo) findCategories(ctx context.Context, op string, filter bson.D) ([]models.Category, error) {
	out, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: categoriesCollection, Kind: "find", Filter: filter},
		func(ctx context.Context) ([]models.Category, error) {
			cur, err := m.categories.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, categoryDoc.model)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// IncPostCount атомарно изменяет счётчик постов на delta.
// Уменьшение не опускает счётчик ниже нуля: декремент уже нулевого счётчика
// оставляет 0 и не считается ошибкой. Отсутствующая категория — storage.ErrNotFound.
func (m *Mongo) IncPostCount(ctx context.Context, id string, delta int64) error {
	const op = "storage/mongo/IncPostCount"

	if delta >= 0 {
		return m.updateCategory(ctx, op, id, bson.D{
			{Key: "$inc", Value: bson.D{{Key: "post_count", Value: delta}}},
		})
	}

	return m.updateCategory(ctx, op, id, mongodriver.Pipeline{
		{{Key: "$set", Value: bson.D{{Key: "post_count", Value: bson.D{{Key: "$max", Value: bson.A{
			0,
			bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$post_count", 0}}}, delta}}},
		}}}}}}},
	})
}

// SetPostCount перезаписывает счётчик постов.
func (m *Mongo) SetPostCount(ctx context.Context, id string, n int64) error {
	const op = "storage/mongo/SetPostCount"

	if n < 0 {
		n = 0
	}

	return m.updateCategory(ctx, op, id, bson.D{
		{Key: "$set", Value: bson.D{{Key: "post_count", Value: n}}},
	})
}

func (m *Mongo) updateCategory(ctx context.Context, op, id string, update any) error {
	oid, ok := parseOID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: categoriesCollection, Kind: "updateOne", Filter: filter},
		func(ctx context.Context) (*mongodriver.UpdateResult, error) {
			return m.categories.UpdateOne(ctx, filter, update)
		})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
