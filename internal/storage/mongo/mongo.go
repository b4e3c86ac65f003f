// mongo — реализация storage.Storage поверх MongoDB.
//
// Каждое обращение к коллекциям проходит через monitor.Monitor.
// Чтение комментариев доступно только через visibleComments (см. visibility.go).
package mongo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection      = "users"
	categoriesCollection = "categories"
	postsCollection      = "posts"
	commentsCollection   = "comments"
	defaultDBName        = "content"
)

// Mongo — адаптер хранилища content-сервиса.
type Mongo struct {
	client     *mongodriver.Client
	db         *mongodriver.Database
	users      *mongodriver.Collection
	categories *mongodriver.Collection
	posts      *mongodriver.Collection
	comments   visibleComments
	mon        *monitor.Monitor
}

// New подключается к MongoDB, проверяет его, подготавливает коллекции и обеспечивает индексацию.
// mon может быть nil — тогда операции не измеряются.
func New(ctx context.Context, cfg *config.Config, mon *monitor.Monitor) (*Mongo, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mongo: nil config")
	}

	if cfg.DB.URL == "" {
		return nil, fmt.Errorf("mongo: empty cfg.DB.URL")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(cfg.DB.URL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(databaseFromURI(cfg.DB.URL))

	m := &Mongo{
		client:     cli,
		db:         db,
		users:      db.Collection(usersCollection),
		categories: db.Collection(categoriesCollection),
		posts:      db.Collection(postsCollection),
		comments:   visibleComments{coll: db.Collection(commentsCollection)},
		mon:        mon,
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

// Close закрывает соединение.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping проверяет доступность primary.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes создаёт индексы (и тем самым коллекции, что нужно для вставок внутри транзакций).
//   - users: уникальные username, email;
//   - categories: уникальные name, slug;
//   - posts: выборки по автору, категории, статусу;
//   - comments: дерево поста (post + created_at), автор, родитель.
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	unique := func(name string) *options.IndexOptions {
		return options.Index().SetName(name).SetUnique(true)
	}

	plan := []struct {
		coll   *mongodriver.Collection
		models []mongodriver.IndexModel
	}{
		{m.users, []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique("username_unique")},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique("email_unique")},
		}},
		{m.categories, []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "name", Value: 1}}, Options: unique("name_unique")},
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: unique("slug_unique")},
		}},
		{m.posts, []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "author", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("author_created_desc")},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "created_at", Value: -1}}, Options: options.Index().SetName("category_created_desc")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "published_at", Value: -1}}, Options: options.Index().SetName("status_published_desc")},
		}},
		{m.comments.coll, []mongodriver.IndexModel{
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "created_at", Value: 1}}, Options: options.Index().SetName("post_created_asc")},
			{Keys: bson.D{{Key: "author", Value: 1}}, Options: options.Index().SetName("author")},
			{Keys: bson.D{{Key: "parent_comment", Value: 1}}, Options: options.Index().SetName("parent_comment")},
		}},
	}

	for _, p := range plan {
		if _, err := p.coll.Indexes().CreateMany(ctx, p.models); err != nil {
			return fmt.Errorf("mongo ensure indexes %s: %w", p.coll.Name(), err)
		}
	}

	return nil
}

// databaseFromURI извлекает имя базы данных из URI-пути mongodb.
// Если оно отсутствует или не поддается расшифровке, возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

// parseOID разбирает hex-идентификатор; некорректный формат — ok=false.
func parseOID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, false
	}

	return oid, true
}

// parseOIDs разбирает список идентификаторов, пропуская некорректные.
func parseOIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := parseOID(id); ok {
			out = append(out, oid)
		}
	}

	return out
}

// now — текущее время с точностью MongoDB DateTime (миллисекунды).
func now() time.Time {
	return toMS(time.Now())
}

func toMS(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// decodeAll декодирует курсор целиком, нормализуя элементы через conv.
func decodeAll[D, M any](ctx context.Context, cur *mongodriver.Cursor, conv func(D) M) ([]M, error) {
	defer cur.Close(ctx)

	out := make([]M, 0)
	for cur.Next(ctx) {
		var d D
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out = append(out, conv(d))
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cursor: %w", err)
	}

	return out, nil
}
