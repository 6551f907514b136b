package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pavelanni/assessor/internal/apperr"
)

// Mongo stores each collection as a MongoDB collection of wrapper documents
// {_id, createdAt, data}. The data field holds the JSON object converted
// through relaxed Extended JSON.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

var (
	_ DocumentStore = (*Mongo)(nil)
	_ Pinger        = (*Mongo)(nil)
)

type mongoDoc struct {
	ID        string    `bson:"_id"`
	CreatedAt time.Time `bson:"createdAt"`
	Data      bson.Raw  `bson:"data"`
}

// NewMongo connects to uri and uses the named database.
func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Ping checks that the server is reachable.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (Document, error) {
	var doc mongoDoc
	err := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Document{}, apperr.NotFound(collection, id)
	}
	if err != nil {
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return doc.toDocument()
}

func (m *Mongo) Query(ctx context.Context, collection, field string, op Op, value any) ([]Document, error) {
	if err := checkQuery(field, op); err != nil {
		return nil, err
	}
	return m.find(ctx, collection, bson.D{{Key: "data." + field, Value: value}})
}

func (m *Mongo) List(ctx context.Context, collection string) ([]Document, error) {
	return m.find(ctx, collection, bson.D{})
}

func (m *Mongo) find(ctx context.Context, collection string, filter bson.D) ([]Document, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	var raw []mongoDoc
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("read %s: %w", collection, err)
	}
	docs := make([]Document, 0, len(raw))
	for _, r := range raw {
		d, err := r.toDocument()
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (m *Mongo) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	if err := checkObject(data); err != nil {
		return "", err
	}
	raw, err := jsonToBSON(data)
	if err != nil {
		return "", err
	}
	doc := mongoDoc{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Data: raw}
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return doc.ID, nil
}

// Update merges the top-level members of patch into data. A null member
// removes the field.
func (m *Mongo) Update(ctx context.Context, collection, id string, patch json.RawMessage) error {
	if err := checkObject(patch); err != nil {
		return err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(patch, &members); err != nil {
		return err
	}
	set, unset := bson.M{}, bson.M{}
	for k, v := range members {
		if string(v) == "null" {
			unset["data."+k] = ""
			continue
		}
		var wrapper bson.D
		if err := bson.UnmarshalExtJSON(wrapValue(v), false, &wrapper); err != nil || len(wrapper) != 1 {
			return fmt.Errorf("convert patch member %q: %v", k, err)
		}
		set["data."+k] = wrapper[0].Value
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		return nil
	}
	res, err := m.db.Collection(collection).UpdateByID(ctx, id, update)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound(collection, id)
	}
	return nil
}

func (d mongoDoc) toDocument() (Document, error) {
	data, err := bson.MarshalExtJSON(d.Data, false, false)
	if err != nil {
		return Document{}, fmt.Errorf("convert %s to JSON: %w", d.ID, err)
	}
	return Document{ID: d.ID, Data: data, CreatedAt: d.CreatedAt.UTC()}, nil
}

func jsonToBSON(data json.RawMessage) (bson.Raw, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, fmt.Errorf("convert JSON to BSON: %w", err)
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal BSON: %w", err)
	}
	return raw, nil
}

func wrapValue(v json.RawMessage) []byte {
	return append(append([]byte(`{"v":`), v...), '}')
}
