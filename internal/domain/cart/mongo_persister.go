// internal/domain/cart/mongo_persister.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDocument is the Mongo shape of a cart. Money is stored as decimal strings.
type cartDocument struct {
	SessionID       string         `bson:"session_id"`
	Lines           []lineDocument `bson:"lines"`
	ShippingCost    string         `bson:"shipping_cost"`
	PostalCode      string         `bson:"postal_code,omitempty"`
	DiscountPercent string         `bson:"discount_percent"`
	DiscountCode    string         `bson:"discount_code,omitempty"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string   `bson:"product_id"`
	Name      string   `bson:"name"`
	UnitPrice string   `bson:"unit_price"`
	Quantity  int      `bson:"quantity"`
	ImageRefs []string `bson:"image_refs,omitempty"`
}

// MongoPersister stores carts in a Mongo collection keyed by session_id
type MongoPersister struct {
	collection *mongo.Collection
}

// NewMongoPersister creates a Mongo backed persister
func NewMongoPersister(collection *mongo.Collection) *MongoPersister {
	return &MongoPersister{collection: collection}
}

// CreateIndexes ensures the unique session index and TTL on updated_at
func (m *MongoPersister) CreateIndexes(ctx context.Context, ttl time.Duration) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create cart indexes: %w", err)
	}
	return nil
}

// Save upserts the full cart
func (m *MongoPersister) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	doc := toDocument(sessionID, snap)

	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$set": doc}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// Load reads a cart, returning false on a miss
func (m *MongoPersister) Load(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("failed to get cart: %w", err)
	}

	snap, err := fromDocument(doc)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Clear deletes the stored cart. Deleting a missing cart is not an error.
func (m *MongoPersister) Clear(ctx context.Context, sessionID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func toDocument(sessionID string, snap Snapshot) cartDocument {
	lines := make([]lineDocument, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		lines = append(lines, lineDocument{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.String(),
			Quantity:  l.Quantity,
			ImageRefs: l.ImageRefs,
		})
	}

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	return cartDocument{
		SessionID:       sessionID,
		Lines:           lines,
		ShippingCost:    snap.ShippingCost.String(),
		PostalCode:      snap.PostalCode,
		DiscountPercent: snap.DiscountPercent.String(),
		DiscountCode:    snap.DiscountCode,
		UpdatedAt:       updatedAt,
	}
}

func fromDocument(doc cartDocument) (Snapshot, error) {
	shipping, err := decimal.NewFromString(doc.ShippingCost)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid stored shipping cost: %w", err)
	}
	discount, err := decimal.NewFromString(doc.DiscountPercent)
	if err != nil {
		return Snapshot{}, fmt.Errorf("invalid stored discount: %w", err)
	}

	lines := make([]Line, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return Snapshot{}, fmt.Errorf("invalid stored price for %s: %w", l.ProductID, err)
		}
		lines = append(lines, Line{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
			ImageRefs: l.ImageRefs,
		})
	}

	return Snapshot{
		SessionID:       doc.SessionID,
		Lines:           lines,
		ShippingCost:    shipping,
		PostalCode:      doc.PostalCode,
		DiscountPercent: discount,
		DiscountCode:    doc.DiscountCode,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
