// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Collection names.
const (
	UsersCollectionName        = "users"
	PropertiesCollectionName   = "properties"
	BookingsCollectionName     = "bookings"
	ReviewsCollectionName      = "reviews"
	BookingLocksCollectionName = "booking_locks"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (safe for concurrent use)
	client *mongo.Client

	// db is the application database; collections are created on first write
	db *mongo.Database
}

// New connects to MongoDB, verifies the connection and selects database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Database returns the application database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// UsersCollection returns the users collection.
func (c *Client) UsersCollection() *mongo.Collection {
	return c.db.Collection(UsersCollectionName)
}

// PropertiesCollection returns the properties collection.
func (c *Client) PropertiesCollection() *mongo.Collection {
	return c.db.Collection(PropertiesCollectionName)
}

// BookingsCollection returns the bookings collection.
func (c *Client) BookingsCollection() *mongo.Collection {
	return c.db.Collection(BookingsCollectionName)
}

// ReviewsCollection returns the reviews collection.
func (c *Client) ReviewsCollection() *mongo.Collection {
	return c.db.Collection(ReviewsCollectionName)
}

// BookingLocksCollection returns the per-property advisory lock collection.
func (c *Client) BookingLocksCollection() *mongo.Collection {
	return c.db.Collection(BookingLocksCollectionName)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the stores rely on. It is idempotent.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== USERS =====
	// unique email backs duplicate-registration detection; refresh_token is
	// looked up on every token refresh
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "refresh_token", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	if _, err := c.UsersCollection().Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}

	// ===== PROPERTIES =====
	propertyIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "landlord_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "property_type", Value: 1}, {Key: "price_per_night", Value: 1}}},
	}
	if _, err := c.PropertiesCollection().Indexes().CreateMany(ctx, propertyIndexes); err != nil {
		return fmt.Errorf("failed to create properties indexes: %w", err)
	}

	// ===== BOOKINGS =====
	// (property_id, status, check_in) serves the overlap probe
	bookingIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "status", Value: 1}, {Key: "check_in", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := c.BookingsCollection().Indexes().CreateMany(ctx, bookingIndexes); err != nil {
		return fmt.Errorf("failed to create bookings indexes: %w", err)
	}

	// ===== REVIEWS =====
	// one review per (user, property); platform reviews store a null property_id
	reviewIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "property_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "is_approved", Value: 1}, {Key: "is_featured", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := c.ReviewsCollection().Indexes().CreateMany(ctx, reviewIndexes); err != nil {
		return fmt.Errorf("failed to create reviews indexes: %w", err)
	}

	// ===== BOOKING LOCKS =====
	// TTL index reaps locks left behind by crashed requests
	lockIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := c.BookingLocksCollection().Indexes().CreateOne(ctx, lockIndex); err != nil {
		return fmt.Errorf("failed to create booking lock index: %w", err)
	}

	return nil
}
