package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Веса рейтинга популярности.
const (
	trendingViewWeight = 0.3
	trendingLikeWeight = 0.7
)

// likesCountStage добавляет likes_count = размер массива likes.
var likesCountStage = bson.D{{Key: "$addFields", Value: bson.D{
	{Key: "likes_count", Value: bson.D{{Key: "$size", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$likes", bson.A{}}}}}}},
}}}

// postFilter переводит фильтр в bson; ok=false — некорректный идентификатор, выборка заведомо пуста.
func postFilter(f storage.PostFilter) (bson.D, bool) {
	filter := bson.D{}
	if f.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(f.Status)})
	}

	if f.AuthorID != "" {
		oid, ok := parseOID(f.AuthorID)
		if !ok {
			return nil, false
		}
		filter = append(filter, bson.E{Key: "author", Value: oid})
	}

	if f.CategoryID != "" {
		oid, ok := parseOID(f.CategoryID)
		if !ok {
			return nil, false
		}
		filter = append(filter, bson.E{Key: "category", Value: oid})
	}

	return filter, true
}

// CreatePost вставляет пост.
func (m *Mongo) CreatePost(ctx context.Context, p models.Post) (*models.Post, error) {
	const op = "storage/mongo/CreatePost"

	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	doc, ok := newPostDoc(p)
	if !ok {
		return nil, fmt.Errorf("%s: author: %w", op, storage.ErrNotFound)
	}
	doc.ID = primitive.NilObjectID

	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "insertOne"},
		func(ctx context.Context) (*mongodriver.InsertOneResult, error) {
			return m.posts.InsertOne(ctx, doc)
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

// PostByID возвращает пост по идентификатору.
func (m *Mongo) PostByID(ctx context.Context, id string) (*models.Post, error) {
	const op = "storage/mongo/PostByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}

	var doc postDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: postsCollection, Kind: "findOne", Filter: filter},
		func(ctx context.Context) error {
			return m.posts.FindOne(ctx, filter).Decode(&doc)
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

// ListPosts возвращает страницу постов.
// Сортировка: date — created_at DESC; viewCount — view_count DESC; likes — размер likes DESC, затем created_at DESC.
func (m *Mongo) ListPosts(ctx context.Context, f storage.PostFilter, p models.ListParams) ([]models.Post, int64, error) {
	const op = "storage/mongo/ListPosts"

	filter, ok := postFilter(f)
	if !ok {
		return []models.Post{}, 0, nil
	}

	total, err := m.countPosts(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	if f.Sort == storage.PostSortLikes {
		pipeline := mongodriver.Pipeline{
			{{Key: "$match", Value: filter}},
			likesCountStage,
			{{Key: "$sort", Value: bson.D{{Key: "likes_count", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}}},
			{{Key: "$skip", Value: p.Skip()}},
		}
		if p.Limit > 0 {
			pipeline = append(pipeline, bson.D{{Key: "$limit", Value: p.Limit}})
		}

		items, err := m.aggregatePosts(ctx, pipeline)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: aggregate: %w", op, err)
		}

		return items, total, nil
	}

	sort := bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
	if f.Sort == storage.PostSortViewCount {
		sort = bson.D{{Key: "view_count", Value: -1}, {Key: "_id", Value: -1}}
	}

	findOpts := options.Find().SetSort(sort).SetSkip(p.Skip())
	if p.Limit > 0 {
		findOpts.SetLimit(p.Limit)
	}

	items, err := m.findPosts(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: find: %w", op, err)
	}

	return items, total, nil
}

// CountPosts возвращает число постов под фильтр.
func (m *Mongo) CountPosts(ctx context.Context, f storage.PostFilter) (int64, error) {
	const op = "storage/mongo/CountPosts"

	filter, ok := postFilter(f)
	if !ok {
		return 0, nil
	}

	n, err := m.countPosts(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// SearchPosts ищет подстроку без учёта регистра в title, content и tags; новые первыми.
// Запрос экранируется: спецсимволы regexp трактуются буквально.
func (m *Mongo) SearchPosts(ctx context.Context, q string, p models.ListParams) ([]models.Post, int64, error) {
	const op = "storage/mongo/SearchPosts"

	re := primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(q)), Options: "i"}
	filter := bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "title", Value: re}},
		bson.D{{Key: "content", Value: re}},
		bson.D{{Key: "tags", Value: re}},
	}}}

	total, err := m.countPosts(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(p.Skip())
	if p.Limit > 0 {
		findOpts.SetLimit(p.Limit)
	}

	items, err := m.findPosts(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: find: %w", op, err)
	}

	return items, total, nil
}

// TrendingPosts — опубликованные с момента since посты по убыванию score.
func (m *Mongo) TrendingPosts(ctx context.Context, since time.Time, limit int64) ([]models.TrendingPost, error) {
	const op = "storage/mongo/TrendingPosts"

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "status", Value: string(models.PostStatusPublished)},
			{Key: "published_at", Value: bson.D{{Key: "$gte", Value: toMS(since)}}},
		}}},
		likesCountStage,
		{{Key: "$addFields", Value: bson.D{{Key: "score", Value: bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$multiply", Value: bson.A{"$view_count", trendingViewWeight}}},
			bson.D{{Key: "$multiply", Value: bson.A{"$likes_count", trendingLikeWeight}}},
		}}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}

	out, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "aggregate", Filter: pipeline},
		func(ctx context.Context) ([]models.TrendingPost, error) {
			cur, err := m.posts.Aggregate(ctx, pipeline)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, trendingDoc.model)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ReplacePost атомарно заменяет документ и возвращает заменённую версию.
// created_at сохраняется из входной модели; пустой updated_at выставляется текущим временем.
func (m *Mongo) ReplacePost(ctx context.Context, p models.Post) (*models.Post, error) {
	const op = "storage/mongo/ReplacePost"

	oid, ok := parseOID(p.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now()
	}

	doc, ok := newPostDoc(p)
	if !ok {
		return nil, fmt.Errorf("%s: author: %w", op, storage.ErrNotFound)
	}
	doc.ID = oid

	filter := bson.D{{Key: "_id", Value: oid}}

	var prev postDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: postsCollection, Kind: "findOneAndReplace", Filter: filter},
		func(ctx context.Context) error {
			return m.posts.FindOneAndReplace(ctx, filter, doc,
				options.FindOneAndReplace().SetReturnDocument(options.Before)).Decode(&prev)
		})
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := prev.model()

	return &out, nil
}

// DeletePost удаляет пост и возвращает удалённый документ.
func (m *Mongo) DeletePost(ctx context.Context, id string) (*models.Post, error) {
	const op = "storage/mongo/DeletePost"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}

	var doc postDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: postsCollection, Kind: "findOneAndDelete", Filter: filter},
		func(ctx context.Context) error {
			return m.posts.FindOneAndDelete(ctx, filter).Decode(&doc)
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

// IncViewCount увеличивает счётчик просмотров и возвращает новую версию.
func (m *Mongo) IncViewCount(ctx context.Context, id string) (*models.Post, error) {
	const op = "storage/mongo/IncViewCount"

	return m.updatePost(ctx, op, id, bson.D{{Key: "$inc", Value: bson.D{{Key: "view_count", Value: 1}}}})
}

// SetPostLike добавляет или убирает отметку пользователя.
func (m *Mongo) SetPostLike(ctx context.Context, id, userID string, liked bool) (*models.Post, error) {
	const op = "storage/mongo/SetPostLike"

	uid, ok := parseOID(userID)
	if !ok {
		return nil, fmt.Errorf("%s: user: %w", op, storage.ErrNotFound)
	}

	operator := "$pull"
	if liked {
		operator = "$addToSet"
	}

	return m.updatePost(ctx, op, id, bson.D{
		{Key: operator, Value: bson.D{{Key: "likes", Value: uid}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now()}}},
	})
}

func (m *Mongo) updatePost(ctx context.Context, op, id string, update bson.D) (*models.Post, error) {
	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}

	var doc postDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: postsCollection, Kind: "findOneAndUpdate", Filter: filter},
		func(ctx context.Context) error {
			return m.posts.FindOneAndUpdate(ctx, filter, update,
				options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
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

// ReassignPosts переводит посты автора from на автора to.
func (m *Mongo) ReassignPosts(ctx context.Context, from, to string) (int64, error) {
	const op = "storage/mongo/ReassignPosts"

	fromOID, ok := parseOID(from)
	if !ok {
		return 0, fmt.Errorf("%s: from: %w", op, storage.ErrNotFound)
	}

	toOID, ok := parseOID(to)
	if !ok {
		return 0, fmt.Errorf("%s: to: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "author", Value: fromOID}}
	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "updateMany", Filter: filter},
		func(ctx context.Context) (*mongodriver.UpdateResult, error) {
			return m.posts.UpdateMany(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
				{Key: "author", Value: toOID},
				{Key: "updated_at", Value: now()},
			}}})
		})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return res.ModifiedCount, nil
}

// UserStats агрегирует статистику постов автора. Без постов — нулевая статистика.
func (m *Mongo) UserStats(ctx context.Context, authorID string) (*models.UserStats, error) {
	const op = "storage/mongo/UserStats"

	oid, ok := parseOID(authorID)
	if !ok {
		return &models.UserStats{}, nil
	}

	pipeline := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "author", Value: oid}}}},
		likesCountStage,
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "total_posts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "total_views", Value: bson.D{{Key: "$sum", Value: "$view_count"}}},
			{Key: "avg_views", Value: bson.D{{Key: "$avg", Value: "$view_count"}}},
			{Key: "total_likes", Value: bson.D{{Key: "$sum", Value: "$likes_count"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "total_posts", Value: 1},
			{Key: "total_views", Value: 1},
			{Key: "avg_views", Value: bson.D{{Key: "$round", Value: bson.A{"$avg_views", 2}}}},
			{Key: "total_likes", Value: 1},
		}}},
	}

	type statsDoc struct {
		TotalPosts int64   `bson:"total_posts"`
		TotalViews int64   `bson:"total_views"`
		AvgViews   float64 `bson:"avg_views"`
		TotalLikes int64   `bson:"total_likes"`
	}

	rows, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "aggregate", Filter: pipeline},
		func(ctx context.Context) ([]statsDoc, error) {
			cur, err := m.posts.Aggregate(ctx, pipeline)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, func(d statsDoc) statsDoc { return d })
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(rows) == 0 {
		return &models.UserStats{}, nil
	}

	r := rows[0]

	return &models.UserStats{
		TotalPosts: r.TotalPosts,
		TotalViews: r.TotalViews,
		AvgViews:   r.AvgViews,
		TotalLikes: r.TotalLikes,
	}, nil
}

func (m *Mongo) countPosts(ctx context.Context, filter bson.D) (int64, error) {
	return monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "countDocuments", Filter: filter},
		func(ctx context.Context) (int64, error) {
			return m.posts.CountDocuments(ctx, filter)
		})
}

func (m *Mongo) findPosts(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]models.Post, error) {
	return monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "find", Filter: filter},
		func(ctx context.Context) ([]models.Post, error) {
			cur, err := m.posts.Find(ctx, filter, opts)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, postDoc.model)
		})
}

func (m *Mongo) aggregatePosts(ctx context.Context, pipeline mongodriver.Pipeline) ([]models.Post, error) {
	return monitor.Do(ctx, m.mon, monitor.Operation{Collection: postsCollection, Kind: "aggregate", Filter: pipeline},
		func(ctx context.Context) ([]models.Post, error) {
			cur, err := m.posts.Aggregate(ctx, pipeline)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, postDoc.model)
		})
}
