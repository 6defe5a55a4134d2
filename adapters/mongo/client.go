package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	defaultDatabase       = "callrelay"
	defaultConnectTimeout = 10 * time.Second
	pingTimeout           = 2 * time.Second
)

// Client holds the connection used for call records
type Client struct {
	*mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects to uri and selects dbName
func NewClient(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb uri is required")
	}
	if dbName == "" {
		dbName = defaultDatabase
	}
	logger = logger.With(zap.String("component", "mongo"), zap.String("database", dbName))

	opts := options.Client().
		ApplyURI(uri).
		SetAppName("callrelay").
		SetMaxPoolSize(8).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(10 * time.Minute).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(defaultConnectTimeout)

	connectCtx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	c := &Client{
		Client:   client,
		Database: client.Database(dbName),
		logger:   logger,
	}
	if err := c.Ping(connectCtx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("Connected to MongoDB")
	return c, nil
}

// Ping checks the primary is reachable. It backs the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping MongoDB: %w", err)
	}
	return nil
}

// Close disconnects, waiting for in-flight writes until ctx ends
func (c *Client) Close(ctx context.Context) error {
	if err := c.Client.Disconnect(ctx); err != nil {
		c.logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		return err
	}
	c.logger.Info("Disconnected from MongoDB")
	return nil
}
