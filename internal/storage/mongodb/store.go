package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	interfaces "github.com/sheikh-saqib/room-billing-ledger/internal/interfaces"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
)

const collectionName = "room_accounts"

// Amounts are stored as decimal strings so no precision is lost to float64.
type chargeDocument struct {
	Kind        string `bson:"kind"`
	Amount      string `bson:"amount"`
	Description string `bson:"description"`
}

type roomDocument struct {
	Room          string           `bson:"_id"`
	TotalAmount   string           `bson:"total_amount"`
	TotalPaid     string           `bson:"total_paid"`
	PaymentStatus string           `bson:"payment_status"`
	Charges       []chargeDocument `bson:"charges"`
	UpdatedAt     time.Time        `bson:"updated_at"`
}

// MongoRoomStore keeps one document per room.
type MongoRoomStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, dbName string) (*MongoRoomStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetMaxPoolSize(20))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}
	return &MongoRoomStore{
		client:     client,
		collection: client.Database(dbName).Collection(collectionName),
	}, nil
}

func (m *MongoRoomStore) SaveRoom(ctx context.Context, account models.RoomAccount) error {
	doc := toDocument(account)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": doc.Room}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *MongoRoomStore) LoadRooms(ctx context.Context) ([]models.RoomAccount, error) {
	cursor, err := m.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []roomDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	accounts := make([]models.RoomAccount, 0, len(docs))
	for _, doc := range docs {
		account, err := fromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("room %s: %w", doc.Room, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (m *MongoRoomStore) Close() error {
	return m.client.Disconnect(context.Background())
}

func toDocument(a models.RoomAccount) roomDocument {
	charges := make([]chargeDocument, 0, len(a.Charges))
	for _, c := range a.Charges {
		charges = append(charges, chargeDocument{
			Kind:        string(c.Kind),
			Amount:      c.Amount.String(),
			Description: c.Description,
		})
	}
	return roomDocument{
		Room:          a.Room,
		TotalAmount:   a.TotalAmount.String(),
		TotalPaid:     a.TotalPaid.String(),
		PaymentStatus: string(a.PaymentStatus),
		Charges:       charges,
		UpdatedAt:     a.UpdatedAt,
	}
}

func fromDocument(doc roomDocument) (models.RoomAccount, error) {
	total, err := decimal.NewFromString(doc.TotalAmount)
	if err != nil {
		return models.RoomAccount{}, fmt.Errorf("total_amount: %w", err)
	}
	paid, err := decimal.NewFromString(doc.TotalPaid)
	if err != nil {
		return models.RoomAccount{}, fmt.Errorf("total_paid: %w", err)
	}
	status, err := models.ParsePaymentStatus(doc.PaymentStatus)
	if err != nil {
		return models.RoomAccount{}, err
	}

	charges := make([]models.Charge, 0, len(doc.Charges))
	for _, c := range doc.Charges {
		kind := models.ChargeKind(c.Kind)
		if !kind.Valid() {
			return models.RoomAccount{}, fmt.Errorf("unknown charge kind %q", c.Kind)
		}
		amount, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return models.RoomAccount{}, fmt.Errorf("charge amount: %w", err)
		}
		charges = append(charges, models.Charge{Kind: kind, Amount: amount, Description: c.Description})
	}

	return models.RoomAccount{
		Room:          doc.Room,
		Charges:       charges,
		TotalAmount:   total,
		TotalPaid:     paid,
		PaymentStatus: status,
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}, nil
}

var _ interfaces.RoomStore = (*MongoRoomStore)(nil)
