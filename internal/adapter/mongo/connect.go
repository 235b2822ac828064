// Package mongo implements the authoritative report repository on a
// MongoDB collection.
package mongo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/roadmedic/reportsync/internal/domain"
)

const connectTimeout = 15 * time.Second

// Connect dials the document store and verifies the connection with a ping.
func Connect(ctx context.Context, uri string, logger *slog.Logger) (*mongo.Client, error) {
	dctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	logger.Info("connecting to document store", "uri", redactURI(uri))

	client, err := mongo.Connect(dctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %v", domain.ErrRemoteUnavailable, err)
	}
	if err := client.Ping(dctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrRemoteUnavailable, err)
	}

	return client, nil
}

// redactURI strips credentials from a connection string before logging.
func redactURI(raw string) string {
	if raw == "" || !strings.Contains(raw, "://") {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User(u.User.Username())
	return u.String()
}
