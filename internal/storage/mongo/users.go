package mongo

import (
	"context"
	"errors"
	"fmt"
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

// userSortFields — соответствие сортировок полям документа.
var userSortFields = map[storage.UserSort]string{
	storage.UserSortCreatedAt: "created_at",
	storage.UserSortUsername:  "username",
	storage.UserSortLastLogin: "last_login",
}

// CreateUser вставляет пользователя. Конфликт уникальности — storage.ErrConflict.
func (m *Mongo) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage/mongo/CreateUser"

	ts := now()
	u.CreatedAt, u.UpdatedAt = ts, ts
	doc := newUserDoc(u)
	doc.ID = primitive.NilObjectID

	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "insertOne"},
		func(ctx context.Context) (*mongodriver.InsertOneResult, error) {
			return m.users.InsertOne(ctx, doc)
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

// UserByID возвращает пользователя по идентификатору.
func (m *Mongo) UserByID(ctx context.Context, id string) (*models.User, error) {
	const op = "storage/mongo/UserByID"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.findUser(ctx, op, bson.D{{Key: "_id", Value: oid}})
}

// UserByEmail ищет пользователя по email.
func (m *Mongo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage/mongo/UserByEmail"

	return m.findUser(ctx, op, bson.D{{Key: "email", Value: strings.ToLower(strings.TrimSpace(email))}})
}

// UserByUsername ищет пользователя по username.
func (m *Mongo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage/mongo/UserByUsername"

	return m.findUser(ctx, op, bson.D{{Key: "username", Value: strings.TrimSpace(username)}})
}

func (m *Mongo) findUser(ctx context.Context, op string, filter bson.D) (*models.User, error) {
	var doc userDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: usersCollection, Kind: "findOne", Filter: filter},
		func(ctx context.Context) error {
			return m.users.FindOne(ctx, filter).Decode(&doc)
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

// UsersByIDs возвращает пользователей по списку идентификаторов.
func (m *Mongo) UsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	const op = "storage/mongo/UsersByIDs"

	oids := parseOIDs(ids)
	if len(oids) == 0 {
		return []models.User{}, nil
	}

	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: oids}}}}
	out, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "find", Filter: filter},
		func(ctx context.Context) ([]models.User, error) {
			cur, err := m.users.Find(ctx, filter)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, userDoc.model)
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// ListUsers возвращает страницу пользователей.
func (m *Mongo) ListUsers(ctx context.Context, f storage.UserFilter, p models.ListParams) ([]models.User, int64, error) {
	const op = "storage/mongo/ListUsers"

	filter := bson.D{}
	if f.Role != "" {
		filter = append(filter, bson.E{Key: "role", Value: string(f.Role)})
	}

	field, ok := userSortFields[f.Sort]
	if !ok {
		field = "created_at"
	}

	dir := 1
	if f.Desc {
		dir = -1
	}

	total, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "countDocuments", Filter: filter},
		func(ctx context.Context) (int64, error) {
			return m.users.CountDocuments(ctx, filter)
		})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", op, err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(p.Skip())
	if p.Limit > 0 {
		findOpts.SetLimit(p.Limit)
	}

	items, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "find", Filter: filter},
		func(ctx context.Context) ([]models.User, error) {
			cur, err := m.users.Find(ctx, filter, findOpts)
			if err != nil {
				return nil, err
			}

			return decodeAll(ctx, cur, userDoc.model)
		})
	if err != nil {
		return nil, 0, fmt.Errorf("%s: find: %w", op, err)
	}

	return items, total, nil
}

// UpdateUser перезаписывает изменяемые поля профиля и возвращает новую версию.
func (m *Mongo) UpdateUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "storage/mongo/UpdateUser"

	oid, ok := parseOID(u.ID)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	set := bson.D{
		{Key: "username", Value: u.Username},
		{Key: "email", Value: u.Email},
		{Key: "password_hash", Value: u.PasswordHash},
		{Key: "first_name", Value: u.FirstName},
		{Key: "last_name", Value: u.LastName},
		{Key: "bio", Value: u.Bio},
		{Key: "avatar", Value: u.Avatar},
		{Key: "role", Value: string(u.Role)},
		{Key: "is_active", Value: u.IsActive},
		{Key: "updated_at", Value: now()},
	}

	if u.Age != nil {
		set = append(set, bson.E{Key: "age", Value: *u.Age})
	}

	update := bson.D{{Key: "$set", Value: set}}
	if u.Age == nil {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "age", Value: ""}}})
	}

	return m.updateUser(ctx, op, oid, update)
}

// SetUserActive выставляет флаг активности.
func (m *Mongo) SetUserActive(ctx context.Context, id string, active bool) (*models.User, error) {
	const op = "storage/mongo/SetUserActive"

	oid, ok := parseOID(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return m.updateUser(ctx, op, oid, bson.D{{Key: "$set", Value: bson.D{
		{Key: "is_active", Value: active},
		{Key: "updated_at", Value: now()},
	}}})
}

func (m *Mongo) updateUser(ctx context.Context, op string, oid primitive.ObjectID, update bson.D) (*models.User, error) {
	filter := bson.D{{Key: "_id", Value: oid}}

	var doc userDoc
	err := m.mon.Observe(ctx, monitor.Operation{Collection: usersCollection, Kind: "findOneAndUpdate", Filter: filter},
		func(ctx context.Context) error {
			return m.users.FindOneAndUpdate(ctx, filter, update,
				options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
		})
	if err != nil {
		switch {
		case errors.Is(err, mongodriver.ErrNoDocuments):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		case mongodriver.IsDuplicateKeyError(err):
			return nil, fmt.Errorf("%s: %w", op, storage.ErrConflict)
		default:
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	out := doc.model()

	return &out, nil
}

// TouchLastLogin выставляет время последнего входа.
func (m *Mongo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const op = "storage/mongo/TouchLastLogin"

	oid, ok := parseOID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "updateOne", Filter: filter},
		func(ctx context.Context) (*mongodriver.UpdateResult, error) {
			return m.users.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: bson.D{
				{Key: "last_login", Value: toMS(at)},
			}}})
		})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

// DeleteUser физически удаляет пользователя.
func (m *Mongo) DeleteUser(ctx context.Context, id string) error {
	const op = "storage/mongo/DeleteUser"

	oid, ok := parseOID(id)
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	res, err := monitor.Do(ctx, m.mon, monitor.Operation{Collection: usersCollection, Kind: "deleteOne", Filter: filter},
		func(ctx context.Context) (*mongodriver.DeleteResult, error) {
			return m.users.DeleteOne(ctx, filter)
		})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if res.DeletedCount == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}
