package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/models"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"github.com/pribylovaa/go-content-platform/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

// dashboardTop — размер топов на дашборде.
const dashboardTop = 5

// Dashboard собирает сводную статистику:
//   - число активных пользователей;
//   - число постов по статусам;
//   - топ категорий по числу постов (живой подсчёт, не денормализованный счётчик);
//   - топ постов по числу видимых комментариев;
//   - число постов по дням, начиная с since.
func (m *Mongo) Dashboard(ctx context.Context, since time.Time) (*models.Dashboard, error) {
	const op = "storage/mongo/Dashboard"

	out := &models.Dashboard{}

	activeFilter := bson.D{{Key: "is_active", Value: true}}
	active, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "countDocuments", Filter: activeFilter},
		func(ctx context.Context) (int64, error) {
			return m.users.CountDocuments(ctx, activeFilter)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: active users: %w", op, err)
	}
	out.ActiveUsers = active

	byStatus := mongodriver.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	type statusRow struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	out.PostsByStatus, err = aggregate(ctx, m, m.posts, byStatus, func(r statusRow) models.StatusCount {
		return models.StatusCount{Status: r.Status, Count: r.Count}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: posts by status: %w", op, err)
	}

	topCategories := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "category", Value: bson.D{{Key: "$ne", Value: nil}}}}}},
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$category"}, {Key: "total_posts", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "total_posts", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: dashboardTop}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: categoriesCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "category"},
		}}},
		{{Key: "$unwind", Value: "$category"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "name", Value: "$category.name"},
			{Key: "color", Value: "$category.color"},
			{Key: "total_posts", Value: 1},
		}}},
	}
	type categoryRow struct {
		Name       string `bson:"name"`
		Color      string `bson:"color"`
		TotalPosts int64  `bson:"total_posts"`
	}
	out.TopCategories, err = aggregate(ctx, m, m.posts, topCategories, func(r categoryRow) models.CategoryRank {
		return models.CategoryRank{Name: r.Name, Color: r.Color, TotalPosts: r.TotalPosts}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: top categories: %w", op, err)
	}

	mostCommented := mongodriver.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$post"}, {Key: "comments", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "comments", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: dashboardTop}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: postsCollection},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "post"},
		}}},
		{{Key: "$unwind", Value: "$post"}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "title", Value: "$post.title"},
			{Key: "comments", Value: 1},
		}}},
	}
	type commentedRow struct {
		Title    string `bson:"title"`
		Comments int64  `bson:"comments"`
	}
	out.MostCommented, err = monitor.Do(ctx, m.mon,
		monitor.Operation{Collection: commentsCollection, Kind: "aggregate", Filter: mostCommented},
		func(ctx context.Context) ([]models.CommentedPost, error) {
			cur, err := m.comments.Aggregate(ctx, storage.CommentQuery{}, mostCommented)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, func(r commentedRow) models.CommentedPost {
				return models.CommentedPost{Title: r.Title, Comments: r.Comments}
			})
		})
	if err != nil {
		return nil, fmt.Errorf("%s: most commented: %w", op, err)
	}

	activity := mongodriver.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: toMS(since)}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$dateToString", Value: bson.D{
				{Key: "format", Value: "%Y-%m-%d"},
				{Key: "date", Value: "$created_at"},
			}}}},
			{Key: "posts", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	type dayRow struct {
		Day   string `bson:"_id"`
		Posts int64  `bson:"posts"`
	}
	out.ActivityLast30Days, err = aggregate(ctx, m, m.posts, activity, func(r dayRow) models.DayActivity {
		return models.DayActivity{Day: r.Day, Posts: r.Posts}
	})
	if err != nil {
		return nil, fmt.Errorf("%s: activity: %w", op, err)
	}

	return out, nil
}

// aggregate выполняет pipeline над коллекцией (не комментариев) под монитором.
func aggregate[R, M any](ctx context.Context, m *Mongo, coll *mongodriver.Collection, pipeline mongodriver.Pipeline, conv func(R) M) ([]M, error) {
	return monitor.Do(ctx, m.mon, monitor.Operation{Collection: coll.Name(), Kind: "aggregate", Filter: pipeline},
		func(ctx context.Context) ([]M, error) {
			cur, err := coll.Aggregate(ctx, pipeline)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, conv)
		})
}
