package mongo

import (
	"context"

	"github.com/pribylovaa/go-content-platform/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// visibleComments — единственный доступ к коллекции комментариев.
// Чтения (find, findOne, aggregate) и изменения отдельного комментария принимают
// storage.CommentQuery, а не готовый фильтр: предикат is_deleted != true добавляется
// внутри обёртки, если запрос не просит скрытые записи явно. Поля PostID/AuthorID запроса
// также превращаются в условия фильтра. Физическое удаление (DeleteMany) видимость не учитывает.
type visibleComments struct {
	coll *mongodriver.Collection
}

// notDeleted — предикат видимости. Документы без поля is_deleted считаются видимыми.
var notDeleted = bson.E{Key: "is_deleted", Value: bson.D{{Key: "$ne", Value: true}}}

// visibilityFilter собирает фильтр по запросу и дополнительным условиям.
// Некорректные PostID/AuthorID дают ok=false: такой выборке не соответствует ни один документ.
func visibilityFilter(q storage.CommentQuery, extra bson.D) (bson.D, bool) {
	f := make(bson.D, 0, len(extra)+3)
	if !q.IncludeDeleted {
		f = append(f, notDeleted)
	}

	if q.PostID != "" {
		oid, ok := parseOID(q.PostID)
		if !ok {
			return nil, false
		}
		f = append(f, bson.E{Key: "post", Value: oid})
	}

	if q.AuthorID != "" {
		oid, ok := parseOID(q.AuthorID)
		if !ok {
			return nil, false
		}
		f = append(f, bson.E{Key: "author", Value: oid})
	}

	return append(f, extra...), true
}

// scopedFilter — фильтр, с которым обёртка обращается к коллекции.
// Некорректный запрос заменяется заведомо пустой выборкой.
func scopedFilter(q storage.CommentQuery, extra bson.D) bson.D {
	f, ok := visibilityFilter(q, extra)
	if !ok {
		return matchNothing
	}

	return f
}

var matchNothing = bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}

// Find ищет комментарии по запросу q и дополнительным условиям extra.
func (c visibleComments) Find(ctx context.Context, q storage.CommentQuery, extra bson.D, opts ...*options.FindOptions) (*mongodriver.Cursor, error) {
	return c.coll.Find(ctx, scopedFilter(q, extra), opts...)
}

func (c visibleComments) FindOne(ctx context.Context, q storage.CommentQuery, extra bson.D) *mongodriver.SingleResult {
	return c.coll.FindOne(ctx, scopedFilter(q, extra))
}

// FindOneAndUpdate изменяет отдельный комментарий и возвращает новую версию.
func (c visibleComments) FindOneAndUpdate(ctx context.Context, q storage.CommentQuery, extra bson.D, update any) *mongodriver.SingleResult {
	return c.coll.FindOneAndUpdate(ctx, scopedFilter(q, extra), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After))
}

// Aggregate выполняет pipeline, в начало которого добавлен $match по видимости.
func (c visibleComments) Aggregate(ctx context.Context, q storage.CommentQuery, pipeline mongodriver.Pipeline) (*mongodriver.Cursor, error) {
	return c.coll.Aggregate(ctx, visiblePipeline(q, pipeline))
}

func visiblePipeline(q storage.CommentQuery, pipeline mongodriver.Pipeline) mongodriver.Pipeline {
	out := make(mongodriver.Pipeline, 0, len(pipeline)+1)
	out = append(out, bson.D{{Key: "$match", Value: scopedFilter(q, nil)}})

	return append(out, pipeline...)
}

func (c visibleComments) InsertOne(ctx context.Context, doc commentDoc) (*mongodriver.InsertOneResult, error) {
	return c.coll.InsertOne(ctx, doc)
}

// DeleteMany физически удаляет документы независимо от видимости.
func (c visibleComments) DeleteMany(ctx context.Context, filter bson.D) (*mongodriver.DeleteResult, error) {
	return c.coll.DeleteMany(ctx, filter)
}
