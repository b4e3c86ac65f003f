package mongo

import (
	"context"
	"fmt"

	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// WithinTransaction выполняет fn в транзакции MongoDB (snapshot read, majority write).
//   - fn получает SessionContext; все операции хранилища с этим ctx входят в транзакцию;
//   - ошибка fn откатывает транзакцию и возвращается без обёртки;
//   - драйвер может повторить fn при TransientTransactionError, поэтому fn не должна
//     иметь побочных эффектов вне хранилища;
//   - вызов внутри уже открытой транзакции просто выполняет fn.
func (m *Mongo) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongodriver.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: start session: %w", err)
	}
	defer sess.EndSession(context.WithoutCancel(ctx))

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	_, err = sess.WithTransaction(ctx, func(sc mongodriver.SessionContext) (any, error) {
		return nil, fn(sc)
	}, txOpts)

	return err
}
